package models

// MediaStatus tracks the remote processing lifecycle of an uploaded video.
type MediaStatus string

const (
	MediaUploading  MediaStatus = "uploading"
	MediaProcessing MediaStatus = "processing"
	MediaReady      MediaStatus = "ready"
	MediaFailed     MediaStatus = "failed"
)

// MediaHandle is an opaque reference to a video the remote gateway has
// ingested, plus its processing status. Only a ready handle may be used
// in generation or token-count calls.
type MediaHandle struct {
	Name          string      `json:"name"`
	URI           string      `json:"uri"`
	MIMEType      string      `json:"mime_type"`
	SizeBytes     int64       `json:"size_bytes,omitempty"`
	Status        MediaStatus `json:"status"`
	StatusMessage string      `json:"status_message,omitempty"`
}

// Ready reports whether the handle can serve generation requests.
func (h *MediaHandle) Ready() bool {
	return h != nil && h.Status == MediaReady
}
