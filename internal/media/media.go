// Package media stores the featured images attached to posts.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/isdelr/nukta-be/internal/apperror"
)

const (
	MsgInvalidType = "Invalid file type. Only JPEG, PNG, GIF and WebP images are allowed."
	tempPrefix     = ".upload-"
)

var allowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Upload is an image received from a client.
type Upload struct {
	Filename string
	Content  io.Reader
}

// File describes a stored media file.
type File struct {
	Ref     string
	ModTime time.Time
}

// DiskStore keeps media files in a local directory and hands out refs
// of the form <urlPrefix>/<name>.
type DiskStore struct {
	dir       string
	urlPrefix string
	maxSize   int64
}

// NewDiskStore creates the upload directory if needed.
func NewDiskStore(dir, urlPrefix string, maxSize int64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{
		dir:       dir,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		maxSize:   maxSize,
	}, nil
}

func (s *DiskStore) Dir() string { return s.dir }

// TooLargeMessage is the client-facing message for oversized uploads.
func (s *DiskStore) TooLargeMessage() string {
	return fmt.Sprintf("File size too large. Maximum size is %s.", formatSize(s.maxSize))
}

// Store validates the upload and writes it under a fresh name. Nothing is
// written unless the content is an allowed image within the size limit.
func (s *DiskStore) Store(ctx context.Context, up Upload) (string, error) {
	data, err := io.ReadAll(io.LimitReader(up.Content, s.maxSize+1))
	if err != nil {
		return "", apperror.NewInvalidMedia("Failed to read uploaded file", err)
	}
	if int64(len(data)) > s.maxSize {
		return "", apperror.NewInvalidMedia(s.TooLargeMessage(), nil)
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedTypes...) {
		return "", apperror.NewInvalidMedia(MsgInvalidType, fmt.Errorf("detected %s in %q", mtype.String(), up.Filename))
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.New().String() + mtype.Extension()
	if err := s.writeAtomic(name, data); err != nil {
		return "", err
	}
	return s.urlPrefix + "/" + name, nil
}

func (s *DiskStore) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return fmt.Errorf("write media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close media: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("commit media: %w", err)
	}
	return nil
}

// Remove deletes the file behind ref. A missing file is not an error.
func (s *DiskStore) Remove(_ context.Context, ref string) error {
	name, ok := s.nameOf(ref)
	if !ok {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove media %s: %w", ref, err)
	}
	return nil
}

// List returns every committed media file in the upload directory.
func (s *DiskStore) List(_ context.Context) ([]File, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read upload dir: %w", err)
	}
	files := make([]File, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{Ref: s.urlPrefix + "/" + e.Name(), ModTime: info.ModTime()})
	}
	return files, nil
}

// nameOf maps a ref back to a file name inside the upload directory.
// Only the base name is used so a ref can never escape the directory.
func (s *DiskStore) nameOf(ref string) (string, bool) {
	if ref == "" {
		return "", false
	}
	name := path.Base(ref)
	if name == "." || name == "/" || name == ".." || strings.HasPrefix(name, ".") {
		return "", false
	}
	return name, true
}

func formatSize(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	if n%1024 == 0 {
		return fmt.Sprintf("%dKB", n/1024)
	}
	return fmt.Sprintf("%d bytes", n)
}
