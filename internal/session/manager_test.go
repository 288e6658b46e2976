package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/config"
	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/gateway"
	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/ingest"
	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/models"
)

type fakeGateway struct {
	mu          sync.Mutex
	answer      string
	generateErr error
	tokens      int64
	tokensErr   error
	prompts     []string
	deleted     []string
}

func (f *fakeGateway) Upload(ctx context.Context, path, mimeType, displayName string) (*models.MediaHandle, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeGateway) Poll(ctx context.Context, name string) (*models.MediaHandle, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeGateway) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, name)
	f.mu.Unlock()
	return nil
}

func (f *fakeGateway) Generate(ctx context.Context, model string, handle *models.MediaHandle, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return f.answer, nil
}

func (f *fakeGateway) CountTokens(ctx context.Context, model string, handle *models.MediaHandle) (int64, error) {
	if f.tokensErr != nil {
		return 0, f.tokensErr
	}
	return f.tokens, nil
}

type fakeTitler struct {
	title string
	err   error
}

func (f *fakeTitler) Title(ctx context.Context, question, answer string) (string, error) {
	return f.title, f.err
}

func newTestManager(gw *fakeGateway, titler Titler) *Manager {
	factory := func(ctx context.Context, credential string) (gateway.Client, error) {
		return gw, nil
	}
	var titlers TitlerFactory
	if titler != nil {
		titlers = func(ctx context.Context, gw gateway.Client, model string) (Titler, error) {
			return titler, nil
		}
	}
	return NewManager(factory, nameIdentity{}, titlers)
}

func readyHandle(name string) *models.MediaHandle {
	return &models.MediaHandle{
		Name:     name,
		URI:      "https://example.invalid/" + name,
		MIMEType: "video/mp4",
		Status:   models.MediaReady,
	}
}

func readySession(t *testing.T, m *Manager, sourceName string) string {
	t.Helper()
	se := m.Create("gemini-2.5-flash", "key-1")
	if _, err := m.BeginUpload(se.ID, sourceName, sourceName); err != nil {
		t.Fatalf("begin upload: %v", err)
	}
	if err := m.CompleteUpload(se.ID, readyHandle("files/"+sourceName)); err != nil {
		t.Fatalf("complete upload: %v", err)
	}
	return se.ID
}

func TestCreateAndGet(t *testing.T) {
	m := newTestManager(&fakeGateway{}, nil)

	created := m.Create("gemini-2.5-flash", "key-1")
	if created.ID == "" || created.Status != models.SessionEmpty {
		t.Fatalf("unexpected created session: %#v", created)
	}

	got, err := m.Get(created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Model != "gemini-2.5-flash" || got.Title != defaultTitle {
		t.Fatalf("unexpected session: %#v", got)
	}
	if len(got.Turns) != 0 {
		t.Fatalf("new session should have no turns")
	}

	if _, err := m.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBeginUploadSameIdentityIsNoOp(t *testing.T) {
	m := newTestManager(&fakeGateway{answer: "an answer"}, nil)
	id := readySession(t, m, "clip.mp4")
	if _, err := m.Ask(context.Background(), id, "key-1", "what happens?"); err != nil {
		t.Fatalf("ask: %v", err)
	}

	decision, err := m.BeginUpload(id, "clip.mp4", "clip.mp4")
	if err != nil {
		t.Fatalf("begin upload: %v", err)
	}
	if !decision.Unchanged {
		t.Fatalf("expected unchanged decision")
	}

	se, _ := m.Get(id)
	if se.Status != models.SessionReady || se.Video == nil {
		t.Fatalf("session state disturbed: %#v", se)
	}
	if len(se.Turns) != 2 {
		t.Fatalf("transcript should survive a same-identity upload, got %d turns", len(se.Turns))
	}
}

func TestBeginUploadNewIdentityResetsSession(t *testing.T) {
	m := newTestManager(&fakeGateway{answer: "an answer"}, nil)
	id := readySession(t, m, "clip.mp4")
	if _, err := m.Ask(context.Background(), id, "key-1", "what happens?"); err != nil {
		t.Fatalf("ask: %v", err)
	}

	decision, err := m.BeginUpload(id, "other.mp4", "other.mp4")
	if err != nil {
		t.Fatalf("begin upload: %v", err)
	}
	if decision.Unchanged {
		t.Fatalf("expected a reset, not a no-op")
	}
	if decision.Replaced == nil || decision.Replaced.Name != "files/clip.mp4" {
		t.Fatalf("expected replaced handle, got %#v", decision.Replaced)
	}

	se, _ := m.Get(id)
	if se.Status != models.SessionIngesting {
		t.Fatalf("unexpected status: %s", se.Status)
	}
	if se.Video != nil || len(se.Turns) != 0 {
		t.Fatalf("reset should clear handle and transcript: %#v", se)
	}
	if se.SourceName != "other.mp4" {
		t.Fatalf("unexpected source name: %s", se.SourceName)
	}
}

func TestAskRequiresProcessedVideo(t *testing.T) {
	m := newTestManager(&fakeGateway{}, nil)
	se := m.Create("gemini-2.5-flash", "key-1")

	if _, err := m.Ask(context.Background(), se.ID, "key-1", "anything"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if _, err := m.BeginUpload(se.ID, "clip.mp4", "clip.mp4"); err != nil {
		t.Fatalf("begin upload: %v", err)
	}
	if _, err := m.Ask(context.Background(), se.ID, "key-1", "anything"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("ingesting session should not answer, got %v", err)
	}
	if err := m.FailUpload(se.ID); err != nil {
		t.Fatalf("fail upload: %v", err)
	}
	if _, err := m.Ask(context.Background(), se.ID, "key-1", "anything"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("failed session should not answer, got %v", err)
	}
}

func TestAskAppendsBothTurns(t *testing.T) {
	gw := &fakeGateway{answer: "the dog catches the ball"}
	m := newTestManager(gw, nil)
	id := readySession(t, m, "clip.mp4")

	turn, err := m.Ask(context.Background(), id, "key-1", "what happens at the end?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if turn.Role != models.RoleAssistant || turn.Content != "the dog catches the ball" {
		t.Fatalf("unexpected turn: %#v", turn)
	}

	se, _ := m.Get(id)
	if len(se.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(se.Turns))
	}
	if se.Turns[0].Role != models.RoleUser || se.Turns[0].Content != "what happens at the end?" {
		t.Fatalf("unexpected user turn: %#v", se.Turns[0])
	}
	if len(gw.prompts) != 1 || gw.prompts[0] != "what happens at the end?" {
		t.Fatalf("remote call should carry only the current question: %v", gw.prompts)
	}
}

func TestAskFailureLeavesUserTurn(t *testing.T) {
	gw := &fakeGateway{generateErr: errors.New("remote exploded")}
	m := newTestManager(gw, nil)
	id := readySession(t, m, "clip.mp4")

	if _, err := m.Ask(context.Background(), id, "key-1", "what happens?"); err == nil {
		t.Fatalf("expected generation error")
	}

	se, _ := m.Get(id)
	if len(se.Turns) != 1 || se.Turns[0].Role != models.RoleUser {
		t.Fatalf("expected the one-sided user turn to remain: %#v", se.Turns)
	}
	if se.Status != models.SessionReady {
		t.Fatalf("a failed turn must not change the session status: %s", se.Status)
	}
}

func TestFirstExchangeGeneratesTitle(t *testing.T) {
	m := newTestManager(&fakeGateway{answer: "an answer"}, &fakeTitler{title: "Dog Fetch Video"})
	id := readySession(t, m, "clip.mp4")

	if _, err := m.Ask(context.Background(), id, "key-1", "what happens?"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	se, _ := m.Get(id)
	if se.Title != "Dog Fetch Video" {
		t.Fatalf("unexpected title: %s", se.Title)
	}
}

func TestTitleFailureDoesNotBreakAsk(t *testing.T) {
	m := newTestManager(&fakeGateway{answer: "an answer"}, &fakeTitler{err: errors.New("no title")})
	id := readySession(t, m, "clip.mp4")

	if _, err := m.Ask(context.Background(), id, "key-1", "what happens?"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	se, _ := m.Get(id)
	if se.Title != defaultTitle {
		t.Fatalf("title should stay at the default, got %s", se.Title)
	}
}

func TestInspectDurationEstimate(t *testing.T) {
	gw := &fakeGateway{tokens: 2630}
	m := newTestManager(gw, nil)
	id := readySession(t, m, "clip.mp4")

	usage, err := m.Inspect(context.Background(), id, "key-1")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if usage.TotalTokens != 2630 {
		t.Fatalf("unexpected token count: %d", usage.TotalTokens)
	}
	if usage.EstimatedDurationSeconds != 10.0 {
		t.Fatalf("unexpected duration estimate: %f", usage.EstimatedDurationSeconds)
	}
}

func TestVisionCheckDoesNotTouchTranscript(t *testing.T) {
	gw := &fakeGateway{answer: "starts with a park, ends with a dog"}
	m := newTestManager(gw, nil)
	id := readySession(t, m, "clip.mp4")

	report, err := m.VisionCheck(context.Background(), id, "key-1")
	if err != nil {
		t.Fatalf("vision check: %v", err)
	}
	if report == "" {
		t.Fatalf("expected a report")
	}
	if len(gw.prompts) != 1 || gw.prompts[0] != visionCheckPrompt {
		t.Fatalf("vision check must use the fixed prompt: %v", gw.prompts)
	}

	se, _ := m.Get(id)
	if len(se.Turns) != 0 {
		t.Fatalf("vision check must not append turns: %#v", se.Turns)
	}
}

func TestDeleteRemovesSessionAndRemoteFile(t *testing.T) {
	gw := &fakeGateway{answer: "an answer"}
	m := newTestManager(gw, nil)
	id := readySession(t, m, "clip.mp4")
	// build the cached client so delete can reach the remote file
	if _, err := m.Ask(context.Background(), id, "key-1", "warm up"); err != nil {
		t.Fatalf("ask: %v", err)
	}

	if err := m.Delete(context.Background(), id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.Get(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("session should be gone, got %v", err)
	}
	if len(gw.deleted) != 1 || gw.deleted[0] != "files/clip.mp4" {
		t.Fatalf("remote file not deleted: %v", gw.deleted)
	}
	if err := m.Delete(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete should report not found, got %v", err)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m := newTestManager(&fakeGateway{answer: "an answer"}, nil)
	id := readySession(t, m, "clip.mp4")
	if _, err := m.Ask(context.Background(), id, "key-1", "what happens?"); err != nil {
		t.Fatalf("ask: %v", err)
	}

	se, _ := m.Get(id)
	se.Turns[0].Content = "tampered"
	se.Video.Name = "tampered"

	again, _ := m.Get(id)
	if again.Turns[0].Content == "tampered" || again.Video.Name == "tampered" {
		t.Fatalf("snapshot leaked internal state")
	}
}

func TestIdentityStrategies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("some video bytes"), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat sample: %v", err)
	}
	staged := &ingest.Staged{
		Path:    path,
		Name:    "clip.mp4",
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}

	byName, err := StrategyFor(config.IdentityByName)
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	if id, _ := byName.Identity(staged); id != "clip.mp4" {
		t.Fatalf("name identity mismatch: %s", id)
	}

	byDigest, err := StrategyFor(config.IdentityBySHA256)
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	first, err := byDigest.Identity(staged)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if err := os.WriteFile(path, []byte("different video bytes"), 0o644); err != nil {
		t.Fatalf("rewrite sample: %v", err)
	}
	second, err := byDigest.Identity(staged)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if first == second {
		t.Fatalf("digest identity should change with content")
	}

	bySizeTime, err := StrategyFor(config.IdentityBySizeTime)
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	if id, _ := bySizeTime.Identity(staged); id == "" {
		t.Fatalf("size/mtime identity empty")
	}

	if _, err := StrategyFor("inode"); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}
