// Package session owns per-session conversation state: the current video
// handle, the ordered transcript, and the operations that drive a turn.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/gateway"
	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/models"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrNotReady = errors.New("session has no processed video")
)

const defaultTitle = "New Session"

// visionCheckPrompt is the fixed diagnostic prompt for operator
// troubleshooting; its result is display-only.
const visionCheckPrompt = "List the timestamps of the start and end of this video. " +
	"Then describe the visual content of the very first second and the very last second."

// videoTokensPerSecond is the remote service's empirical video token
// density, used only to render an estimated duration.
const videoTokensPerSecond = 263

// Titler generates a short session title from the first exchange.
type Titler interface {
	Title(ctx context.Context, question, answer string) (string, error)
}

// TitlerFactory builds a Titler sharing the session's gateway credential.
// A nil factory disables titles.
type TitlerFactory func(ctx context.Context, gw gateway.Client, model string) (Titler, error)

// Usage is the result of a token inspection.
type Usage struct {
	TotalTokens              int64   `json:"total_tokens"`
	EstimatedDurationSeconds float64 `json:"estimated_duration_seconds"`
}

// UploadDecision reports what BeginUpload did with the session.
type UploadDecision struct {
	// Unchanged means the upload identity matched the stored one: the
	// session was left untouched and no re-ingestion may happen.
	Unchanged bool
	// Replaced is the prior handle cleared by the reset, for best-effort
	// remote deletion once the new upload is through.
	Replaced *models.MediaHandle
}

// Manager holds all live sessions and their gateway resources.
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]*State
	resources map[string]*resources

	factory  gateway.Factory
	identity IdentityStrategy
	titlers  TitlerFactory
}

func NewManager(factory gateway.Factory, identity IdentityStrategy, titlers TitlerFactory) *Manager {
	if identity == nil {
		identity = nameIdentity{}
	}
	return &Manager{
		sessions:  make(map[string]*State),
		resources: make(map[string]*resources),
		factory:   factory,
		identity:  identity,
		titlers:   titlers,
	}
}

// Identity computes the upload identity under the configured strategy.
func (m *Manager) Identity() IdentityStrategy {
	return m.identity
}

// Create registers an empty session bound to a model and credential.
func (m *Manager) Create(model, credential string) models.Session {
	now := time.Now().UTC()
	st := &State{
		ID:         uuid.NewString(),
		Model:      model,
		Credential: credential,
		Title:      defaultTitle,
		Status:     models.SessionEmpty,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.mu.Lock()
	m.sessions[st.ID] = st
	m.mu.Unlock()
	return st.snapshot()
}

// Get returns a rendered copy of the session.
func (m *Manager) Get(id string) (models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[id]
	if !ok {
		return models.Session{}, ErrNotFound
	}
	return st.snapshot(), nil
}

// Client returns the gateway client for the session, rebuilding it when
// the caller supplies a different credential.
func (m *Manager) Client(ctx context.Context, id, credential string) (gateway.Client, error) {
	m.mu.Lock()
	st, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	if credential == "" {
		credential = st.Credential
	} else if credential != st.Credential {
		st.Credential = credential
	}
	if res := m.resources[id]; res != nil && res.credential == credential {
		m.mu.Unlock()
		return res.client, nil
	}
	m.mu.Unlock()

	client, err := m.factory(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("gateway client: %w", err)
	}
	m.mu.Lock()
	m.resources[id] = &resources{credential: credential, client: client}
	m.mu.Unlock()
	return client, nil
}

// BeginUpload applies the upload-identity rule: an identity equal to the
// stored one is an idempotent no-op; anything else clears the handle and
// the transcript before ingestion of the new file begins.
func (m *Manager) BeginUpload(id, sourceName, identity string) (UploadDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[id]
	if !ok {
		return UploadDecision{}, ErrNotFound
	}
	now := time.Now().UTC()
	if st.SourceIdentity != "" && st.SourceIdentity == identity {
		st.UpdatedAt = now
		return UploadDecision{Unchanged: true}, nil
	}
	replaced := st.Video
	st.Video = nil
	st.Turns = nil
	st.Title = defaultTitle
	st.SourceName = sourceName
	st.SourceIdentity = identity
	st.Status = models.SessionIngesting
	st.UpdatedAt = now
	return UploadDecision{Replaced: replaced}, nil
}

// CompleteUpload stores the ready handle and opens the session for turns.
func (m *Manager) CompleteUpload(id string, handle *models.MediaHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	st.Video = handle
	st.Status = models.SessionReady
	st.UpdatedAt = time.Now().UTC()
	return nil
}

// FailUpload marks the ingestion as failed; the session cannot answer
// questions until a new upload succeeds.
func (m *Manager) FailUpload(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	st.Video = nil
	st.Status = models.SessionFailed
	st.UpdatedAt = time.Now().UTC()
	return nil
}

// Ask runs one conversation turn. The user turn is appended before the
// remote call and stays in the transcript even when generation fails; the
// remote call carries only the handle and the current question.
func (m *Manager) Ask(ctx context.Context, id, credential, question string) (models.Turn, error) {
	m.mu.Lock()
	st, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return models.Turn{}, ErrNotFound
	}
	if st.Status != models.SessionReady || !st.Video.Ready() {
		m.mu.Unlock()
		return models.Turn{}, ErrNotReady
	}
	now := time.Now().UTC()
	st.Turns = append(st.Turns, models.Turn{Role: models.RoleUser, Content: question, CreatedAt: now})
	st.UpdatedAt = now
	video := *st.Video
	model := st.Model
	firstExchange := len(st.Turns) == 1
	m.mu.Unlock()

	gw, err := m.Client(ctx, id, credential)
	if err != nil {
		return models.Turn{}, err
	}
	answer, err := gw.Generate(ctx, model, &video, question)
	if err != nil {
		return models.Turn{}, fmt.Errorf("generate answer: %w", err)
	}

	turn := models.Turn{Role: models.RoleAssistant, Content: answer, CreatedAt: time.Now().UTC()}
	m.mu.Lock()
	st.Turns = append(st.Turns, turn)
	st.UpdatedAt = turn.CreatedAt
	m.mu.Unlock()

	if firstExchange {
		m.generateTitle(ctx, id, gw, model, question, answer)
	}
	return turn, nil
}

// Inspect reports the remote token accounting for the current video and a
// derived duration estimate. Failures carry no state impact.
func (m *Manager) Inspect(ctx context.Context, id, credential string) (Usage, error) {
	video, model, err := m.readyVideo(id)
	if err != nil {
		return Usage{}, err
	}
	gw, err := m.Client(ctx, id, credential)
	if err != nil {
		return Usage{}, err
	}
	tokens, err := gw.CountTokens(ctx, model, video)
	if err != nil {
		return Usage{}, fmt.Errorf("count tokens: %w", err)
	}
	return Usage{
		TotalTokens:              tokens,
		EstimatedDurationSeconds: float64(tokens) / videoTokensPerSecond,
	}, nil
}

// VisionCheck asks the model what it sees in the video using the fixed
// diagnostic prompt. The report is not appended to the transcript.
func (m *Manager) VisionCheck(ctx context.Context, id, credential string) (string, error) {
	video, model, err := m.readyVideo(id)
	if err != nil {
		return "", err
	}
	gw, err := m.Client(ctx, id, credential)
	if err != nil {
		return "", err
	}
	report, err := gw.Generate(ctx, model, video, visionCheckPrompt)
	if err != nil {
		return "", fmt.Errorf("vision check: %w", err)
	}
	return report, nil
}

// Delete removes the session and best-effort deletes its remote file.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	st, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	res := m.resources[id]
	delete(m.sessions, id)
	delete(m.resources, id)
	m.mu.Unlock()

	if st.Video != nil && res != nil {
		if err := res.client.Delete(ctx, st.Video.Name); err != nil {
			log.Printf("delete remote file %s: %v", st.Video.Name, err)
		}
	}
	return nil
}

// DiscardHandle best-effort deletes a remote file that a new upload
// replaced.
func (m *Manager) DiscardHandle(ctx context.Context, id string, handle *models.MediaHandle) {
	if handle == nil {
		return
	}
	gw, err := m.Client(ctx, id, "")
	if err != nil {
		return
	}
	if err := gw.Delete(ctx, handle.Name); err != nil {
		log.Printf("discard replaced file %s: %v", handle.Name, err)
	}
}

func (m *Manager) readyVideo(id string) (*models.MediaHandle, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[id]
	if !ok {
		return nil, "", ErrNotFound
	}
	if st.Status != models.SessionReady || !st.Video.Ready() {
		return nil, "", ErrNotReady
	}
	video := *st.Video
	return &video, st.Model, nil
}

func (m *Manager) generateTitle(ctx context.Context, id string, gw gateway.Client, model, question, answer string) {
	if m.titlers == nil {
		return
	}
	m.mu.Lock()
	res := m.resources[id]
	titler := (Titler)(nil)
	if res != nil {
		titler = res.titler
	}
	m.mu.Unlock()

	if titler == nil {
		built, err := m.titlers(ctx, gw, model)
		if err != nil || built == nil {
			if err != nil {
				log.Printf("title generator unavailable: %v", err)
			}
			return
		}
		titler = built
		m.mu.Lock()
		if res := m.resources[id]; res != nil {
			res.titler = titler
		}
		m.mu.Unlock()
	}

	title, err := titler.Title(ctx, question, answer)
	if err != nil {
		log.Printf("generate session title: %v", err)
		return
	}
	if title == "" {
		return
	}
	m.mu.Lock()
	if st, ok := m.sessions[id]; ok {
		st.Title = title
	}
	m.mu.Unlock()
}
