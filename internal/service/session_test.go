package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/capitalize-ai/expat-assistant/internal/analytics"
	"github.com/capitalize-ai/expat-assistant/internal/chat"
	"github.com/capitalize-ai/expat-assistant/internal/middleware"
	"github.com/capitalize-ai/expat-assistant/internal/model"
	natsclient "github.com/capitalize-ai/expat-assistant/internal/nats"
	"github.com/capitalize-ai/expat-assistant/internal/store"
	"github.com/capitalize-ai/expat-assistant/internal/transcript"
	"github.com/capitalize-ai/expat-assistant/pkg/logger"
)

type stubSender struct {
	resp *model.QueryResponse
}

func (s stubSender) Send(_ context.Context, q model.Query) (*model.RawResponse, error) {
	return &model.RawResponse{Mode: q.Mode, Query: s.resp, Advertising: &model.AdvertisingResponse{}}, nil
}

type memJournal struct {
	mu      sync.Mutex
	records []natsclient.Record
}

func (j *memJournal) Publish(_ context.Context, sessionID string, e transcript.Entry) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	seq := uint64(len(j.records) + 1)
	j.records = append(j.records, natsclient.Record{Sequence: seq, SessionID: sessionID, Entry: e})
	return seq, nil
}

func (j *memJournal) Entries(_ context.Context, sessionID string, after uint64, limit int) ([]natsclient.Record, uint64, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []natsclient.Record
	var last uint64
	for _, r := range j.records {
		if r.SessionID == sessionID && r.Sequence > after && len(out) < limit {
			out = append(out, r)
			last = r.Sequence
		}
	}
	return out, last, false, nil
}

func newService(t *testing.T, st store.SessionStore, journal Journal) *SessionService {
	t.Helper()
	svc := NewSessionService(Config{
		JWTSecret:  "secret",
		SessionTTL: time.Hour,
		Widget:     model.WidgetConfig{Greeting: "Hi!"},
	}, stubSender{resp: &model.QueryResponse{Respuesta: "Hello"}}, analytics.Nop{}, st, journal, logger.FromZap(zaptest.NewLogger(t)))
	t.Cleanup(svc.Close)
	return svc
}

func TestCreate_LanguageResolution(t *testing.T) {
	svc := newService(t, nil, nil)

	tests := []struct {
		name   string
		req    *model.CreateSessionRequest
		header string
		want   string
	}{
		{"explicit language", &model.CreateSessionRequest{Language: "es"}, "fr-FR", "es"},
		{"browser locale", &model.CreateSessionRequest{Locale: "ca-ES"}, "", "ca"},
		{"accept-language", nil, "de-DE,de;q=0.9", "de"},
		{"default", &model.CreateSessionRequest{}, "", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created, err := svc.Create(context.Background(), tt.req, tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.want, created.Session.Language())
		})
	}
}

func TestCreate_IssuesVerifiableToken(t *testing.T) {
	svc := newService(t, nil, nil)

	created, err := svc.Create(context.Background(), nil, "")
	require.NoError(t, err)

	claims, err := middleware.ParseToken("secret", created.Token)
	require.NoError(t, err)
	assert.Equal(t, created.Session.ID(), claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), created.ExpiresAt, 5*time.Second)
}

func TestGet(t *testing.T) {
	svc := newService(t, nil, nil)
	created, err := svc.Create(context.Background(), nil, "")
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.Session.ID())
	require.NoError(t, err)
	assert.Same(t, created.Session, got)

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGet_RevivesFromSharedStore(t *testing.T) {
	shared := store.NewMemoryStore(time.Hour)
	first := newService(t, shared, nil)

	created, err := first.Create(context.Background(), &model.CreateSessionRequest{Language: "es"}, "")
	require.NoError(t, err)
	_, err = created.Session.Ask(context.Background(), "NIE", model.ModeQuery)
	require.NoError(t, err)

	second := newService(t, shared, nil)
	revived, err := second.Get(context.Background(), created.Session.ID())
	require.NoError(t, err)

	assert.Equal(t, "es", revived.Language())
	assert.Equal(t, created.Session.Transcript(), revived.Transcript())
}

func TestJournal_OnlyResolvedEntries(t *testing.T) {
	journal := &memJournal{}
	svc := newService(t, nil, journal)

	created, err := svc.Create(context.Background(), nil, "")
	require.NoError(t, err)
	_, err = created.Session.Ask(context.Background(), "NIE", model.ModeQuery)
	require.NoError(t, err)

	history, err := svc.History(context.Background(), created.Session.ID(), 0, 50)
	require.NoError(t, err)
	require.Len(t, history.Records, 2)
	assert.Equal(t, transcript.RoleUser, history.Records[0].Entry.Role)
	assert.Equal(t, transcript.RoleBot, history.Records[1].Entry.Role)
	for _, r := range history.Records {
		assert.Equal(t, transcript.StatusResolved, r.Entry.Status)
	}
	assert.Equal(t, uint64(2), history.LastSequence)
}

func TestHistory_WithoutJournal(t *testing.T) {
	svc := newService(t, nil, nil)
	assert.False(t, svc.HasJournal())

	_, err := svc.History(context.Background(), "s", 0, 10)
	assert.ErrorIs(t, err, ErrNoJournal)
}

func liveCount(svc *SessionService) int {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return len(svc.sessions)
}

func TestEvictIdle(t *testing.T) {
	svc := newService(t, nil, nil)

	var ids []string
	for i := 0; i < 3; i++ {
		created, err := svc.Create(context.Background(), nil, "")
		require.NoError(t, err)
		ids = append(ids, created.Session.ID())
	}
	assert.Zero(t, svc.evictIdle(time.Now()))

	svc.mu.RLock()
	idle := svc.sessions[ids[0]]
	svc.mu.RUnlock()
	idle.lastSeen.Store(time.Now().Add(-2 * time.Hour).UnixNano())

	assert.Equal(t, 1, svc.evictIdle(time.Now()))
	assert.Equal(t, 2, liveCount(svc))

	_, err := svc.Get(context.Background(), ids[0])
	assert.ErrorIs(t, err, ErrSessionNotFound, "snapshot is deleted with the session")

	_, err = idle.session.Ask(context.Background(), "NIE", model.ModeQuery)
	assert.ErrorIs(t, err, chat.ErrClosed)

	for _, id := range ids[1:] {
		_, err := svc.Get(context.Background(), id)
		assert.NoError(t, err)
	}
}

func TestSweeper_EvictsExpiredSessions(t *testing.T) {
	memory := store.NewMemoryStore(20 * time.Millisecond)
	svc := NewSessionService(Config{
		JWTSecret:     "secret",
		SessionTTL:    20 * time.Millisecond,
		SweepInterval: 5 * time.Millisecond,
	}, stubSender{resp: &model.QueryResponse{}}, analytics.Nop{}, memory, nil, logger.FromZap(zaptest.NewLogger(t)))
	t.Cleanup(svc.Close)

	for i := 0; i < 50; i++ {
		_, err := svc.Create(context.Background(), nil, "")
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return liveCount(svc) == 0 && memory.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClose_StopsSweeperAndIsIdempotent(t *testing.T) {
	svc := newService(t, nil, nil)
	_, err := svc.Create(context.Background(), nil, "")
	require.NoError(t, err)

	svc.Close()
	svc.Close()
	assert.Zero(t, liveCount(svc))
}
