// Package poster publishes the daily report as a reply thread.
package poster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/web3-frozen/akash-stats-bot/internal/metrics"
)

// ClosingText is the final reply of every thread.
const ClosingText = "Check the official Akash Stats page for more details https://stats.akash.network/"

// Entry is one reply of the thread: a narration and its chart.
type Entry struct {
	Text      string `json:"text"`
	ImagePath string `json:"image_path"`
}

// Thread is the report post, its chart replies and a closing reply.
type Thread struct {
	Report  string
	Entries []Entry
	Closing string
}

// Poster publishes a thread and returns the id of its first post.
type Poster interface {
	Post(ctx context.Context, t Thread) (string, error)
}

// Backend is a platform able to post text, optionally as a reply, and to
// upload images for later attachment. An empty replyTo starts a new thread.
type Backend interface {
	Name() string
	UploadImage(ctx context.Context, path string) (string, error)
	PostText(ctx context.Context, text, mediaID, replyTo string) (string, error)
}

// Threader posts threads through a Backend, each step replying to the
// previous post.
type Threader struct {
	backend Backend
	pause   time.Duration
	logger  *slog.Logger
}

// NewThreader wraps backend. pause is slept between consecutive posts.
func NewThreader(backend Backend, pause time.Duration, logger *slog.Logger) *Threader {
	return &Threader{backend: backend, pause: pause, logger: logger.With("backend", backend.Name())}
}

// Post publishes t. On failure the posts already made stay published and
// the error names the failing step.
func (th *Threader) Post(ctx context.Context, t Thread) (string, error) {
	rootID, err := th.post(ctx, "report", t.Report, "", "")
	if err != nil {
		return "", err
	}
	th.logger.Info("report posted", "id", rootID)

	lastID := rootID
	for i, e := range t.Entries {
		if err := th.sleep(ctx); err != nil {
			return rootID, err
		}
		mediaID := ""
		if e.ImagePath != "" {
			mediaID, err = th.backend.UploadImage(ctx, e.ImagePath)
			if err != nil {
				metrics.PostTotal.WithLabelValues("media", "error").Inc()
				return rootID, fmt.Errorf("upload image for entry %d: %w", i+1, err)
			}
			metrics.PostTotal.WithLabelValues("media", "ok").Inc()
		}
		id, err := th.post(ctx, fmt.Sprintf("entry %d", i+1), e.Text, mediaID, lastID)
		if err != nil {
			return rootID, err
		}
		th.logger.Debug("entry posted", "index", i+1, "id", id, "image", e.ImagePath)
		lastID = id
	}

	closing := t.Closing
	if closing == "" {
		closing = ClosingText
	}
	if err := th.sleep(ctx); err != nil {
		return rootID, err
	}
	if _, err := th.post(ctx, "closing", closing, "", lastID); err != nil {
		return rootID, err
	}
	th.logger.Info("thread posted", "root_id", rootID, "entries", len(t.Entries))
	return rootID, nil
}

func (th *Threader) post(ctx context.Context, step, text, mediaID, replyTo string) (string, error) {
	id, err := th.backend.PostText(ctx, text, mediaID, replyTo)
	if err != nil {
		metrics.PostTotal.WithLabelValues("text", "error").Inc()
		return "", fmt.Errorf("post %s: %w", step, err)
	}
	metrics.PostTotal.WithLabelValues("text", "ok").Inc()
	return id, nil
}

func (th *Threader) sleep(ctx context.Context) error {
	if th.pause <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(th.pause):
		return nil
	}
}
