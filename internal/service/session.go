// Package service provides the session registry behind the widget gateway.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/expat-assistant/internal/analytics"
	"github.com/capitalize-ai/expat-assistant/internal/chat"
	"github.com/capitalize-ai/expat-assistant/internal/client"
	"github.com/capitalize-ai/expat-assistant/internal/middleware"
	"github.com/capitalize-ai/expat-assistant/internal/model"
	natsclient "github.com/capitalize-ai/expat-assistant/internal/nats"
	"github.com/capitalize-ai/expat-assistant/internal/store"
	"github.com/capitalize-ai/expat-assistant/internal/transcript"
	"github.com/capitalize-ai/expat-assistant/pkg/logger"
	"github.com/capitalize-ai/expat-assistant/pkg/metrics"
)

// ErrSessionNotFound is returned for unknown or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

// ErrNoJournal is returned by History when no journal is configured.
var ErrNoJournal = errors.New("transcript journal is not configured")

// Journal records resolved transcript entries.
type Journal interface {
	Publish(ctx context.Context, sessionID string, e transcript.Entry) (uint64, error)
	Entries(ctx context.Context, sessionID string, afterSequence uint64, limit int) ([]natsclient.Record, uint64, bool, error)
}

// Config holds session settings.
type Config struct {
	JWTSecret       string
	SessionTTL      time.Duration
	DefaultLanguage string
	PageSize        int
	ChainDelay      time.Duration
	Widget          model.WidgetConfig

	// SweepInterval is how often idle sessions are evicted. Zero derives it
	// from SessionTTL.
	SweepInterval time.Duration
}

// maxSweepInterval caps the derived sweep interval.
const maxSweepInterval = time.Minute

// History is one page of journaled entries.
type History struct {
	Records      []natsclient.Record `json:"records"`
	LastSequence uint64              `json:"last_sequence"`
	HasMore      bool                `json:"has_more"`
}

// Created is a freshly opened session and its bearer token.
type Created struct {
	Session   *chat.Session
	Token     string
	ExpiresAt time.Time
}

// SessionService opens, finds and persists chat sessions.
type SessionService struct {
	cfg     Config
	sender  client.Sender
	tracker analytics.Tracker
	store   store.SessionStore
	journal Journal
	logger  *logger.Logger

	sessions map[string]*liveSession
	mu       sync.RWMutex

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// liveSession is a registry entry. lastSeen holds unix nanoseconds.
type liveSession struct {
	session  *chat.Session
	lastSeen atomic.Int64
}

func newLiveSession(session *chat.Session, now time.Time) *liveSession {
	l := &liveSession{session: session}
	l.lastSeen.Store(now.UnixNano())
	return l
}

// Purger is implemented by stores that drop expired snapshots on demand.
type Purger interface {
	Purge() int
}

// NewSessionService creates a session service. The journal may be nil.
func NewSessionService(
	cfg Config,
	sender client.Sender,
	tracker analytics.Tracker,
	sessionStore store.SessionStore,
	journal Journal,
	log *logger.Logger,
) *SessionService {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = client.DefaultLanguage
	}
	if log == nil {
		log = logger.NewNop()
	}
	if sessionStore == nil {
		sessionStore = store.NewMemoryStore(cfg.SessionTTL)
	}
	svc := &SessionService{
		cfg:      cfg,
		sender:   sender,
		tracker:  tracker,
		store:    sessionStore,
		journal:  journal,
		logger:   log,
		sessions: make(map[string]*liveSession),
		done:     make(chan struct{}),
	}

	if cfg.SessionTTL > 0 {
		interval := cfg.SweepInterval
		if interval <= 0 {
			interval = cfg.SessionTTL / 2
			if interval > maxSweepInterval {
				interval = maxSweepInterval
			}
		}
		svc.wg.Add(1)
		go svc.sweep(interval)
	}
	return svc
}

// Widget returns the widget options handed to the page.
func (s *SessionService) Widget() model.WidgetConfig {
	return s.cfg.Widget
}

// HasJournal reports whether history replay is available.
func (s *SessionService) HasJournal() bool {
	return s.journal != nil
}

// Create opens a new session. The language comes from the request, then
// from the Accept-Language header, then from the configured default.
func (s *SessionService) Create(ctx context.Context, req *model.CreateSessionRequest, acceptLanguage string) (*Created, error) {
	language := s.cfg.DefaultLanguage
	switch {
	case req != nil && req.Language != "":
		language = client.DetectLanguage(req.Language)
	case req != nil && req.Locale != "":
		language = client.DetectLanguage(req.Locale)
	case acceptLanguage != "":
		language = client.DetectLanguage(acceptLanguage)
	}

	id := uuid.Must(uuid.NewV7()).String()
	token, expiresAt, err := middleware.IssueToken(s.cfg.JWTSecret, id, language, s.cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	session := s.build(id, language)

	s.mu.Lock()
	s.sessions[id] = newLiveSession(session, time.Now())
	s.mu.Unlock()
	metrics.IncrementSessions()

	s.save(ctx, session)

	s.logger.Info("session created",
		zap.String("session_id", id),
		zap.String("language", language),
	)

	return &Created{Session: session, Token: token, ExpiresAt: expiresAt}, nil
}

// Get returns a live session, reviving it from the snapshot store when this
// process does not hold it.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*chat.Session, error) {
	s.mu.RLock()
	live, exists := s.sessions[sessionID]
	s.mu.RUnlock()
	if exists {
		live.lastSeen.Store(time.Now().UnixNano())
		return live.session, nil
	}

	snap, err := s.store.Load(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	revived := s.build(snap.ID, snap.Language)
	revived.Restore(snap)

	s.mu.Lock()
	if existing, ok := s.sessions[sessionID]; ok {
		s.mu.Unlock()
		revived.Close()
		return existing.session, nil
	}
	s.sessions[sessionID] = newLiveSession(revived, time.Now())
	s.mu.Unlock()
	metrics.IncrementSessions()

	// Restore may have settled interrupted requests.
	s.save(ctx, revived)

	s.logger.Info("session restored", zap.String("session_id", sessionID), zap.Int("entries", len(snap.Entries)))
	return revived, nil
}

// History replays journaled entries of a session.
func (s *SessionService) History(ctx context.Context, sessionID string, afterSequence uint64, limit int) (*History, error) {
	if s.journal == nil {
		return nil, ErrNoJournal
	}
	records, lastSeq, hasMore, err := s.journal.Entries(ctx, sessionID, afterSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	if records == nil {
		records = []natsclient.Record{}
	}
	return &History{Records: records, LastSequence: lastSeq, HasMore: hasMore}, nil
}

// Close stops the sweeper and releases every live session.
func (s *SessionService) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()

	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*liveSession)
	s.mu.Unlock()

	for _, live := range sessions {
		live.session.Close()
		metrics.DecrementSessions()
	}
}

func (s *SessionService) sweep(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.evictIdle(now)
		}
	}
}

// evictIdle closes and forgets sessions not used for SessionTTL and reports
// how many were evicted.
func (s *SessionService) evictIdle(now time.Time) int {
	cutoff := now.Add(-s.cfg.SessionTTL).UnixNano()

	s.mu.Lock()
	var idle []*liveSession
	for id, live := range s.sessions {
		if live.lastSeen.Load() <= cutoff {
			idle = append(idle, live)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, live := range idle {
		live.session.Close()
		metrics.DecrementSessions()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.store.Delete(ctx, live.session.ID()); err != nil {
			s.logger.Warn("failed to delete idle session snapshot",
				zap.String("session_id", live.session.ID()),
				zap.Error(err),
			)
		}
		cancel()
	}

	if p, ok := s.store.(Purger); ok {
		p.Purge()
	}
	if len(idle) > 0 {
		s.logger.Debug("evicted idle sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

func (s *SessionService) build(id, language string) *chat.Session {
	session := chat.New(chat.Config{
		ID:         id,
		Language:   language,
		PageSize:   s.cfg.PageSize,
		ChainDelay: s.cfg.ChainDelay,
	}, s.sender, s.tracker, s.logger)

	session.OnChange(func(e transcript.Entry) {
		s.save(context.Background(), session)
		if s.journal != nil && e.Status == transcript.StatusResolved {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := s.journal.Publish(ctx, id, e); err != nil {
				s.logger.Warn("failed to journal entry",
					zap.String("session_id", id),
					zap.String("entry_id", e.ID),
					zap.Error(err),
				)
			}
		}
	})
	return session
}

func (s *SessionService) save(ctx context.Context, session *chat.Session) {
	if err := s.store.Save(ctx, session.Snapshot()); err != nil {
		s.logger.Warn("failed to save session snapshot",
			zap.String("session_id", session.ID()),
			zap.Error(err),
		)
	}
}
