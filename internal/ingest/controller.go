// Package ingest owns the upload-then-poll workflow that turns raw upload
// bytes into a ready MediaHandle.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/gateway"
	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/models"
)

// Phase marks a transition in the ingestion workflow, forwarded to the
// display layer as a progress notification.
type Phase string

const (
	PhaseUploading  Phase = "uploading"
	PhaseProcessing Phase = "processing"
	PhaseReady      Phase = "ready"
	PhaseFailed     Phase = "failed"
)

// ErrProcessingFailed is returned when the remote service reports the
// failed status. The handle must not be reused; the caller retries with a
// new upload.
var ErrProcessingFailed = errors.New("remote processing failed")

const (
	defaultPollInterval  = 2 * time.Second
	defaultIngestTimeout = 10 * time.Minute
	maxPollInterval      = 10 * time.Second
)

// Controller stages uploads and drives them through the remote gateway
// until they are ready.
type Controller struct {
	dir      string
	maxBytes int64
	interval time.Duration
	timeout  time.Duration
}

func NewController(dir string, maxBytes int64, interval, timeout time.Duration) *Controller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if timeout <= 0 {
		timeout = defaultIngestTimeout
	}
	if maxBytes <= 0 {
		maxBytes = 200 << 20
	}
	return &Controller{dir: dir, maxBytes: maxBytes, interval: interval, timeout: timeout}
}

// Ingest submits the staged file and waits, bounded by the configured
// timeout and the caller's context, until the remote service reports ready
// or failed. progress fires on every phase transition.
func (c *Controller) Ingest(ctx context.Context, gw gateway.Client, staged *Staged, progress func(Phase)) (*models.MediaHandle, error) {
	notify := func(p Phase) {
		if progress != nil {
			progress(p)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	notify(PhaseUploading)
	handle, err := gw.Upload(ctx, staged.Path, staged.MIMEType, staged.Name)
	if err != nil {
		notify(PhaseFailed)
		return nil, fmt.Errorf("upload video: %w", err)
	}
	debugLog("uploaded %s as %s (%s)", staged.Name, handle.Name, handle.Status)

	if pending(handle) {
		notify(PhaseProcessing)
		handle, err = c.wait(ctx, gw, handle)
		if err != nil {
			notify(PhaseFailed)
			return nil, err
		}
	}

	if handle.Status == models.MediaFailed {
		notify(PhaseFailed)
		if handle.StatusMessage != "" {
			return nil, fmt.Errorf("%w: %s", ErrProcessingFailed, handle.StatusMessage)
		}
		return nil, ErrProcessingFailed
	}

	notify(PhaseReady)
	return handle, nil
}

// wait polls the handle until it leaves the pending states. Each poll is a
// tri-state observation (processing / ready / failed); the interval grows
// with a capped backoff so long videos do not hammer the API.
func (c *Controller) wait(ctx context.Context, gw gateway.Client, handle *models.MediaHandle) (*models.MediaHandle, error) {
	interval := c.interval
	for pending(handle) {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for processing of %s: %w", handle.Name, ctx.Err())
		case <-time.After(interval):
		}

		next, err := gw.Poll(ctx, handle.Name)
		if err != nil {
			return nil, fmt.Errorf("poll %s: %w", handle.Name, err)
		}
		debugLog("poll %s: %s", next.Name, next.Status)
		handle = next

		interval = interval * 3 / 2
		if interval > maxPollInterval {
			interval = maxPollInterval
		}
	}
	return handle, nil
}

func pending(handle *models.MediaHandle) bool {
	return handle.Status == models.MediaUploading || handle.Status == models.MediaProcessing
}
