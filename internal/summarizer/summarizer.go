// Package summarizer produces on-demand post summaries through a hosted
// text summarization model. Results are never cached.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/isdelr/nukta-be/internal/apperror"
	"github.com/isdelr/nukta-be/internal/models"
	"github.com/isdelr/nukta-be/internal/store"
	"github.com/rs/zerolog/log"
)

// PostFinder looks posts up by slug.
type PostFinder interface {
	FindBySlug(ctx context.Context, slug string) (models.Post, error)
}

// Gateway calls the inference endpoint for a post's content.
type Gateway struct {
	posts   PostFinder
	client  *http.Client
	url     string
	apiKey  string
	timeout time.Duration
}

// New creates a Gateway. An empty apiKey is reported on each call, not at startup.
func New(posts PostFinder, url, apiKey string, timeout time.Duration) *Gateway {
	return &Gateway{
		posts:   posts,
		client:  &http.Client{},
		url:     url,
		apiKey:  apiKey,
		timeout: timeout,
	}
}

type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type inferenceParameters struct {
	MaxLength int  `json:"max_length"`
	MinLength int  `json:"min_length"`
	DoSample  bool `json:"do_sample"`
}

type inferenceResult struct {
	SummaryText   string `json:"summary_text"`
	GeneratedText string `json:"generated_text"`
}

// Summarize loads the post and asks the model for a summary of its text.
//
// The upstream call is detached from the caller's cancellation and bounded
// only by the gateway timeout.
func (g *Gateway) Summarize(ctx context.Context, slug string) (models.Summary, error) {
	post, err := g.posts.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Summary{}, apperror.NewNotFound("Post not found")
		}
		return models.Summary{}, err
	}

	text := PlainText(post.Content)
	if text == "" {
		return models.Summary{}, apperror.NewValidation("Post has no content to summarize")
	}
	text = Truncate(text, Budget)

	if g.apiKey == "" {
		return models.Summary{}, apperror.NewConfiguration("Summarization service is not configured", nil)
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	summary, err := g.call(callCtx, text)
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("Summarization failed")
		return models.Summary{}, err
	}
	return models.Summary{Summary: summary, PostTitle: post.Title}, nil
}

func (g *Gateway) call(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(inferenceRequest{
		Inputs:     text,
		Parameters: inferenceParameters{MaxLength: 150, MinLength: 30, DoSample: false},
	})
	if err != nil {
		return "", fmt.Errorf("encode summarization request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", apperror.NewConfiguration("Invalid summarization endpoint", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperror.NewServiceUnavailable("Summarization timed out. Please try again.", err)
		}
		return "", apperror.NewServiceUnavailable("Summarization service is unreachable. Please try again later.", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperror.NewServiceUnavailable("Summarization service is unreachable. Please try again later.", err)
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return "", apperror.NewServiceUnavailable("Summarization model is loading. Please try again in a few moments.", upstreamStatus(resp.StatusCode, raw))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", apperror.NewConfiguration("Invalid summarization API key", upstreamStatus(resp.StatusCode, raw))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", apperror.NewUpstream("Failed to summarize text", upstreamStatus(resp.StatusCode, raw))
	}

	var results []inferenceResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return "", apperror.NewUpstream("Unexpected response format from summarization service", err)
	}
	if len(results) == 0 {
		return "", apperror.NewUpstream("Unexpected response format from summarization service", errors.New("empty result list"))
	}
	summary := results[0].SummaryText
	if summary == "" {
		summary = results[0].GeneratedText
	}
	if summary == "" {
		return "", apperror.NewUpstream("Unexpected response format from summarization service", errors.New("no summary text"))
	}
	return summary, nil
}

func upstreamStatus(code int, body []byte) error {
	const max = 200
	if len(body) > max {
		body = body[:max]
	}
	return fmt.Errorf("upstream status %d: %s", code, bytes.TrimSpace(body))
}
