package session

import (
	"context"
	"log"
	"time"
)

const (
	DefaultSessionTTL      = 12 * time.Hour
	DefaultJanitorInterval = time.Hour
)

// StartJanitor launches the background loop that expires sessions idle
// longer than ttl. Each expiry removes the session, best-effort deletes
// its remote file and invokes expired (used to retire the session's
// worker).
func (m *Manager) StartJanitor(ctx context.Context, interval, ttl time.Duration, expired func(id string)) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	go m.janitorLoop(ctx, interval, ttl, expired)
}

func (m *Manager) janitorLoop(ctx context.Context, interval, ttl time.Duration, expired func(id string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.expireIdle(ctx, ttl, expired)
		}
	}
}

func (m *Manager) expireIdle(ctx context.Context, ttl time.Duration, expired func(id string)) {
	cutoff := time.Now().UTC().Add(-ttl)

	m.mu.RLock()
	var stale []string
	for id, st := range m.sessions {
		if st.UpdatedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		if err := m.Delete(ctx, id); err != nil {
			continue
		}
		log.Printf("expired idle session %s", id)
		if expired != nil {
			expired(id)
		}
	}
}
