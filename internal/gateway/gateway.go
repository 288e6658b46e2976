// Package gateway is the boundary to the remote multimodal inference
// service. The service performs all video encoding, chunking and question
// answering; this package only uploads files, polls their processing
// state and forwards prompts.
package gateway

import (
	"context"

	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/models"
)

// Client is the operation surface the rest of the system depends on.
type Client interface {
	// Upload submits a staged file and returns the initial handle. The
	// returned handle is usually still processing.
	Upload(ctx context.Context, path, mimeType, displayName string) (*models.MediaHandle, error)

	// Poll re-fetches the handle by identity and returns its current
	// status: still processing, ready, or failed.
	Poll(ctx context.Context, name string) (*models.MediaHandle, error)

	// Delete removes the remote file backing the handle.
	Delete(ctx context.Context, name string) error

	// Generate answers a prompt grounded in the given handle. The handle
	// and the prompt are the only context sent.
	Generate(ctx context.Context, model string, handle *models.MediaHandle, prompt string) (string, error)

	// CountTokens reports how many tokens the remote service accounts the
	// handle for under the given model.
	CountTokens(ctx context.Context, model string, handle *models.MediaHandle) (int64, error)
}

// Factory builds a client from a caller-supplied credential.
type Factory func(ctx context.Context, credential string) (Client, error)
