package gateway

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/models"
)

// Gemini implements Client over the Gemini Files and Models APIs.
type Gemini struct {
	client *genai.Client
}

// NewGemini builds a client authorized by the supplied API key.
func NewGemini(ctx context.Context, credential string) (Client, error) {
	if credential == "" {
		return nil, errors.New("credential is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  credential,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

// Raw exposes the underlying genai client for collaborators that build on
// the same credential, such as the title generator.
func (g *Gemini) Raw() *genai.Client {
	return g.client
}

func (g *Gemini) Upload(ctx context.Context, path, mimeType, displayName string) (*models.MediaHandle, error) {
	file, err := g.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, wrap("upload file", err)
	}
	return handleFromFile(file), nil
}

func (g *Gemini) Poll(ctx context.Context, name string) (*models.MediaHandle, error) {
	file, err := g.client.Files.Get(ctx, name, nil)
	if err != nil {
		return nil, wrap("get file", err)
	}
	return handleFromFile(file), nil
}

func (g *Gemini) Delete(ctx context.Context, name string) error {
	if _, err := g.client.Files.Delete(ctx, name, nil); err != nil {
		return wrap("delete file", err)
	}
	return nil
}

func (g *Gemini) Generate(ctx context.Context, model string, handle *models.MediaHandle, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, handleContents(handle, prompt), nil)
	if err != nil {
		return "", wrap("generate content", err)
	}
	text := resp.Text()
	if text == "" {
		return "", &RemoteError{Op: "generate content", Kind: KindContent, Err: errors.New("model returned no text")}
	}
	return text, nil
}

func (g *Gemini) CountTokens(ctx context.Context, model string, handle *models.MediaHandle) (int64, error) {
	resp, err := g.client.Models.CountTokens(ctx, model, handleContents(handle, ""), nil)
	if err != nil {
		return 0, wrap("count tokens", err)
	}
	return int64(resp.TotalTokens), nil
}

func handleContents(handle *models.MediaHandle, prompt string) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromURI(handle.URI, handle.MIMEType)}
	if prompt != "" {
		parts = append(parts, genai.NewPartFromText(prompt))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func handleFromFile(file *genai.File) *models.MediaHandle {
	handle := &models.MediaHandle{
		Name:     file.Name,
		URI:      file.URI,
		MIMEType: file.MIMEType,
		Status:   statusFromState(file.State),
	}
	if file.SizeBytes != nil {
		handle.SizeBytes = *file.SizeBytes
	}
	if file.Error != nil {
		handle.StatusMessage = file.Error.Message
	}
	return handle
}

func statusFromState(state genai.FileState) models.MediaStatus {
	switch state {
	case genai.FileStateProcessing:
		return models.MediaProcessing
	case genai.FileStateActive:
		return models.MediaReady
	case genai.FileStateFailed:
		return models.MediaFailed
	default:
		return models.MediaUploading
	}
}
