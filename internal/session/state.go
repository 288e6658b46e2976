package session

import (
	"time"

	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/gateway"
	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/models"
)

// State is the explicit per-session value every operation works against.
// There is no ambient store: the manager keys states by session id and
// many sessions coexist independently.
type State struct {
	ID             string
	Model          string
	Credential     string
	Title          string
	Status         models.SessionStatus
	SourceName     string
	SourceIdentity string
	Video          *models.MediaHandle
	Turns          []models.Turn
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (st *State) snapshot() models.Session {
	s := models.Session{
		ID:         st.ID,
		Title:      st.Title,
		Model:      st.Model,
		Status:     st.Status,
		SourceName: st.SourceName,
		Turns:      make([]models.Turn, len(st.Turns)),
		CreatedAt:  st.CreatedAt,
		UpdatedAt:  st.UpdatedAt,
	}
	copy(s.Turns, st.Turns)
	if st.Video != nil {
		video := *st.Video
		s.Video = &video
	}
	return s
}

// resources caches the gateway client (and title generator) built from a
// session's credential; rebuilt whenever the credential changes.
type resources struct {
	credential string
	client     gateway.Client
	titler     Titler
}
