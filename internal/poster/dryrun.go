package poster

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

// DryRun logs every step instead of posting and returns synthetic ids.
type DryRun struct {
	logger *slog.Logger
	seq    atomic.Int64
}

func NewDryRun(logger *slog.Logger) *DryRun {
	return &DryRun{logger: logger}
}

func (d *DryRun) Name() string { return "dryrun" }

func (d *DryRun) UploadImage(_ context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stat image: %w", err)
	}
	id := fmt.Sprintf("dryrun-media-%d", d.seq.Add(1))
	d.logger.Info("dry run upload", "path", path, "media_id", id)
	return id, nil
}

func (d *DryRun) PostText(_ context.Context, text, mediaID, replyTo string) (string, error) {
	id := fmt.Sprintf("dryrun-%d", d.seq.Add(1))
	d.logger.Info("dry run post", "id", id, "reply_to", replyTo, "media_id", mediaID, "text", text)
	return id, nil
}
