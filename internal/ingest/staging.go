package ingest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported media type")
)

var allowedExtensions = []string{".mp4", ".mov", ".avi"}

// Staged is an upload persisted to the transient staging directory. It
// exists for the duration of one ingest call; Remove must run on every
// exit path.
type Staged struct {
	Path     string
	Name     string
	MIMEType string
	Size     int64
	ModTime  time.Time
}

// Remove deletes the staged file. Safe to call more than once.
func (s *Staged) Remove() {
	if s == nil || s.Path == "" {
		return
	}
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		debugLog("remove staged file %s failed: %v", s.Path, err)
	}
}

// Stage persists the upload stream to disk, enforcing the size limit and
// the video type allow-list. The MIME type is sniffed from the first 512
// bytes, with the extension as a fallback for containers the sniffer does
// not recognize.
func (c *Controller) Stage(r io.Reader, nameHint string) (*Staged, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	nameHint = filepath.Base(nameHint)

	file, err := os.CreateTemp(c.dir, "upload-*"+filepath.Ext(nameHint))
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	staged := &Staged{Path: file.Name(), Name: nameHint}

	size, err := io.Copy(file, io.LimitReader(r, c.maxBytes+1))
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		staged.Remove()
		return nil, fmt.Errorf("write staging file: %w", err)
	}
	if size > c.maxBytes {
		staged.Remove()
		return nil, ErrTooLarge
	}
	staged.Size = size

	info, err := os.Stat(staged.Path)
	if err != nil {
		staged.Remove()
		return nil, fmt.Errorf("stat staging file: %w", err)
	}
	staged.ModTime = info.ModTime()

	mimeType, err := sniffType(staged.Path, nameHint)
	if err != nil {
		staged.Remove()
		return nil, err
	}
	staged.MIMEType = mimeType
	return staged, nil
}

func sniffType(path, name string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open staging file: %w", err)
	}
	defer file.Close()

	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	contentType := http.DetectContentType(buf[:n])
	if strings.HasPrefix(contentType, "video/") {
		return contentType, nil
	}
	// DetectContentType does not know every container; fall back to the
	// extension allow-list for mov/avi.
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			return extensionMIME(ext), nil
		}
	}
	return "", ErrUnsupportedType
}

func extensionMIME(ext string) string {
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	default:
		return "application/octet-stream"
	}
}
