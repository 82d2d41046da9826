package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/nukta-be/internal/media"
	"github.com/rs/zerolog/log"
)

// MediaFiles lists and deletes stored media.
type MediaFiles interface {
	List(ctx context.Context) ([]media.File, error)
	Remove(ctx context.Context, ref string) error
}

// MediaRefs reports which media refs posts still point at.
type MediaRefs interface {
	ListMediaRefs(ctx context.Context) ([]string, error)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Scanned int
	Removed []string
}

// MediaSweeper deletes media files that no post references. Files younger
// than the grace period are kept, since a create or update may have stored
// them and not yet saved the post that points at them.
type MediaSweeper struct {
	files MediaFiles
	refs  MediaRefs
	grace time.Duration
	now   func() time.Time
}

func NewMediaSweeper(files MediaFiles, refs MediaRefs, grace time.Duration) *MediaSweeper {
	return &MediaSweeper{files: files, refs: refs, grace: grace, now: time.Now}
}

// Sweep removes orphaned media files once.
func (s *MediaSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	// Files are listed before refs so that a post saved in between still protects its file.
	files, err := s.files.List(ctx)
	if err != nil {
		return result, fmt.Errorf("list media: %w", err)
	}
	refs, err := s.refs.ListMediaRefs(ctx)
	if err != nil {
		return result, fmt.Errorf("list media refs: %w", err)
	}

	referenced := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		referenced[ref] = struct{}{}
	}

	cutoff := s.now().Add(-s.grace)
	for _, f := range files {
		result.Scanned++
		if _, ok := referenced[f.Ref]; ok || f.ModTime.After(cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.files.Remove(ctx, f.Ref); err != nil {
			log.Warn().Err(err).Str("media", f.Ref).Msg("Failed to remove orphaned media")
			continue
		}
		result.Removed = append(result.Removed, f.Ref)
	}

	log.Info().Int("scanned", result.Scanned).Int("removed", len(result.Removed)).Msg("Media sweep finished")
	return result, nil
}
