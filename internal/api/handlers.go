package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/config"
	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/gateway"
	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/ingest"
	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/session"
	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/worker"
)

// Handler wires HTTP routes to the session manager and the ingestion
// controller, serializing per-session work through the worker manager.
type Handler struct {
	cfg      *config.Config
	sessions *session.Manager
	ingest   *ingest.Controller
	workers  *worker.Manager
}

// NewHandler constructs a Handler instance.
func NewHandler(cfg *config.Config, sessions *session.Manager, controller *ingest.Controller, workers *worker.Manager) *Handler {
	return &Handler{
		cfg:      cfg,
		sessions: sessions,
		ingest:   controller,
		workers:  workers,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/models", h.listModels)

	sessions := api.Group("/sessions")
	sessions.Use(CredentialMiddleware())
	sessions.POST("", h.createSession)
	sessions.GET("/:id", h.getSession)
	sessions.DELETE("/:id", h.deleteSession)
	sessions.POST("/:id/video", h.uploadVideo)
	sessions.POST("/:id/ask", h.ask)
	sessions.GET("/:id/inspect", h.inspect)
	sessions.POST("/:id/vision-check", h.visionCheck)
}

func (h *Handler) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models":        h.cfg.Gemini.Models,
		"default_model": h.cfg.Gemini.DefaultModel,
	})
}

type createSessionRequest struct {
	Model string `json:"model"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionRequest
	// an empty body picks the default model
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	model := req.Model
	if model == "" {
		model = h.cfg.Gemini.DefaultModel
	}
	if !h.cfg.AllowedModel(model) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("model %q is not supported", model)})
		return
	}
	se := h.sessions.Create(model, CredentialFromContext(c))
	c.JSON(http.StatusCreated, gin.H{"session": se})
}

func (h *Handler) getSession(c *gin.Context) {
	se, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": se})
}

func (h *Handler) deleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	h.workers.Purge(id)
	c.Status(http.StatusNoContent)
}

// uploadVideo accepts a multipart video, stages it, and streams ingestion
// progress back as SSE events: ack, status per phase transition, then done
// or error. A re-upload of the current video short-circuits to done with
// unchanged set.
func (h *Handler) uploadVideo(c *gin.Context) {
	id := c.Param("id")
	credential := CredentialFromContext(c)

	if _, err := h.sessions.Get(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > h.cfg.MaxUploadBytes() {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	staged, err := h.ingest.Stage(file, filepath.Base(fileHeader.Filename))
	_ = file.Close()
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		case errors.Is(err, ingest.ErrUnsupportedType):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stage file failed"})
		}
		return
	}
	defer staged.Remove()

	identity, err := h.sessions.Identity().Identity(staged)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "compute upload identity failed"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sendEvent := func(event string, payload interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if event != "" {
			if _, err := fmt.Fprintf(c.Writer, "event: %s\n", event); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := sendEvent("ack", gin.H{
		"file_name": staged.Name,
		"size":      staged.Size,
		"mime":      staged.MIMEType,
	}); err != nil {
		return
	}

	err = h.workers.Do(id, func() {
		ctx := c.Request.Context()

		decision, err := h.sessions.BeginUpload(id, staged.Name, identity)
		if err != nil {
			_ = sendEvent("error", gin.H{"message": "session not found"})
			return
		}
		if decision.Unchanged {
			se, _ := h.sessions.Get(id)
			_ = sendEvent("done", gin.H{"unchanged": true, "session": se})
			return
		}

		client, err := h.sessions.Client(ctx, id, credential)
		if err != nil {
			_ = h.sessions.FailUpload(id)
			_ = sendEvent("error", gin.H{"message": err.Error()})
			return
		}

		handle, err := h.ingest.Ingest(ctx, client, staged, func(p ingest.Phase) {
			_ = sendEvent("status", gin.H{"phase": string(p)})
		})
		if err != nil {
			_ = h.sessions.FailUpload(id)
			_ = sendEvent("error", gin.H{
				"message": err.Error(),
				"kind":    string(gateway.KindOf(err)),
			})
			return
		}

		if err := h.sessions.CompleteUpload(id, handle); err != nil {
			_ = sendEvent("error", gin.H{"message": "session not found"})
			return
		}
		h.sessions.DiscardHandle(ctx, id, decision.Replaced)

		se, _ := h.sessions.Get(id)
		_ = sendEvent("done", gin.H{"unchanged": false, "session": se})
	})
	if errors.Is(err, worker.ErrSessionBusy) {
		_ = sendEvent("error", gin.H{"message": "session is busy, please retry"})
	}
}

type askRequest struct {
	Question string `json:"question"`
}

func (h *Handler) ask(c *gin.Context) {
	id := c.Param("id")
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	err := h.workers.Do(id, func() {
		turn, err := h.sessions.Ask(c.Request.Context(), id, CredentialFromContext(c), req.Question)
		if err != nil {
			h.renderSessionError(c, err)
			return
		}
		se, _ := h.sessions.Get(id)
		c.JSON(http.StatusOK, gin.H{"answer": turn, "session": se})
	})
	if errors.Is(err, worker.ErrSessionBusy) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "session is busy, please retry"})
	}
}

func (h *Handler) inspect(c *gin.Context) {
	id := c.Param("id")
	err := h.workers.Do(id, func() {
		usage, err := h.sessions.Inspect(c.Request.Context(), id, CredentialFromContext(c))
		if err != nil {
			h.renderSessionError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"usage": usage})
	})
	if errors.Is(err, worker.ErrSessionBusy) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "session is busy, please retry"})
	}
}

func (h *Handler) visionCheck(c *gin.Context) {
	id := c.Param("id")
	err := h.workers.Do(id, func() {
		report, err := h.sessions.VisionCheck(c.Request.Context(), id, CredentialFromContext(c))
		if err != nil {
			h.renderSessionError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"report": report})
	})
	if errors.Is(err, worker.ErrSessionBusy) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "session is busy, please retry"})
	}
}

// renderSessionError maps manager errors to HTTP statuses: missing or
// not-ready sessions are client errors, remote failures map through their
// classification.
func (h *Handler) renderSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, session.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": "session has no processed video"})
	default:
		c.JSON(remoteStatus(err), gin.H{
			"error": err.Error(),
			"kind":  string(gateway.KindOf(err)),
		})
	}
}

func remoteStatus(err error) int {
	switch gateway.KindOf(err) {
	case gateway.KindAuth:
		return http.StatusUnauthorized
	case gateway.KindQuota:
		return http.StatusTooManyRequests
	case gateway.KindContent:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
