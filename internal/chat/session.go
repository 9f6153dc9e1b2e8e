// Package chat is the conversation engine behind one widget instance.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/expat-assistant/internal/analytics"
	"github.com/capitalize-ai/expat-assistant/internal/client"
	"github.com/capitalize-ai/expat-assistant/internal/model"
	"github.com/capitalize-ai/expat-assistant/internal/normalize"
	"github.com/capitalize-ai/expat-assistant/internal/pagination"
	"github.com/capitalize-ai/expat-assistant/internal/render"
	"github.com/capitalize-ai/expat-assistant/internal/transcript"
	"github.com/capitalize-ai/expat-assistant/pkg/logger"
	"github.com/capitalize-ai/expat-assistant/pkg/metrics"
)

// DefaultChainDelay separates chained advertising bubbles.
const DefaultChainDelay = 800 * time.Millisecond

var (
	// ErrEmptyQuery is returned for blank input.
	ErrEmptyQuery = errors.New("query text cannot be empty")
	// ErrInvalidMode is returned for an unknown query mode.
	ErrInvalidMode = errors.New("unknown query mode")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session closed")
)

// ChangeFunc is called after every transcript change with a copy of the entry.
type ChangeFunc func(e transcript.Entry)

// Config holds per-session settings.
type Config struct {
	ID         string
	Language   string
	PageSize   int
	ChainDelay time.Duration
}

// Snapshot is the persistable state of a session.
type Snapshot struct {
	ID         string             `json:"id"`
	Language   string             `json:"language"`
	Entries    []transcript.Entry `json:"entries"`
	Pagination pagination.State   `json:"pagination"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// Session owns one transcript and its pagination slot.
type Session struct {
	id         string
	language   string
	pageSize   int
	chainDelay time.Duration

	sender  client.Sender
	tracker analytics.Tracker
	entries *transcript.Store
	pager   *pagination.Controller
	logger  *logger.Logger

	mu       sync.Mutex
	onChange ChangeFunc
	closed   bool
	done     chan struct{}
	chains   sync.WaitGroup
}

// New creates a session. A nil tracker drops analytics.
func New(cfg Config, sender client.Sender, tracker analytics.Tracker, log *logger.Logger) *Session {
	if cfg.Language == "" {
		cfg.Language = client.DefaultLanguage
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = model.DefaultPageSize
	}
	if tracker == nil {
		tracker = analytics.Nop{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With(zap.String("session_id", cfg.ID))

	entries := transcript.New()
	return &Session{
		id:         cfg.ID,
		language:   cfg.Language,
		pageSize:   cfg.PageSize,
		chainDelay: cfg.ChainDelay,
		sender:     sender,
		tracker:    tracker,
		entries:    entries,
		pager:      pagination.New(sender, entries, pagination.Config{Language: cfg.Language, PageSize: cfg.PageSize}, log),
		logger:     log,
		done:       make(chan struct{}),
	}
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Language returns the ISO-639-1 code sent with every query.
func (s *Session) Language() string {
	return s.language
}

// OnChange registers the transcript change hook.
func (s *Session) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Ask posts the user's text, shows a typing placeholder and resolves it with
// the rendered answer. Upstream failures are painted into the placeholder as
// a connection error and are not returned.
func (s *Session) Ask(ctx context.Context, text string, mode model.Mode) (transcript.Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return transcript.Entry{}, ErrEmptyQuery
	}
	if mode == "" {
		mode = model.ModeQuery
	}
	if !mode.Valid() {
		return transcript.Entry{}, ErrInvalidMode
	}
	if s.isClosed() {
		return transcript.Entry{}, ErrClosed
	}

	s.emit(s.entries.Append(transcript.RoleUser, render.UserText(text)))
	placeholder := s.entries.Append(transcript.RoleBot, nil)
	s.emit(placeholder)
	metrics.TranscriptEntriesTotal.WithLabelValues(string(transcript.RoleUser)).Inc()
	metrics.TranscriptEntriesTotal.WithLabelValues(string(transcript.RoleBot)).Inc()

	q := model.Query{
		Text:     text,
		Language: s.language,
		Limit:    s.pageSize,
		Offset:   0,
		Mode:     mode,
	}
	if mode == model.ModeAdvertising {
		q.ConversationID = s.id
	}

	start := time.Now()
	raw, err := s.sender.Send(ctx, q)
	if err != nil {
		return s.fail(placeholder.ID, q, err)
	}

	if mode == model.ModeAdvertising {
		return s.resolveTurns(placeholder.ID, raw)
	}

	result := normalize.Normalize(raw)
	entry, err := s.resolve(placeholder.ID, render.Render(result))
	if err != nil {
		return transcript.Entry{}, err
	}

	state := pagination.State{LastQueryText: text, LastAgent: result.Agent, NextOffset: result.NextOffset}
	if result.ShowsMore() {
		state.EntryID = entry.ID
	}
	s.pager.Reset(state)

	advertisers := 0
	for _, it := range result.Items {
		if it.IsAdvertiser {
			advertisers++
		}
	}
	s.tracker.Track(model.EventQuerySent, s.id, map[string]any{
		"query":             text,
		"category":          result.Category,
		"response_time":     time.Since(start).Milliseconds(),
		"guides_count":      len(result.Guides),
		"advertisers_count": advertisers,
	})

	return entry, nil
}

func (s *Session) fail(entryID string, q model.Query, err error) (transcript.Entry, error) {
	fields := []zap.Field{
		zap.String("entry_id", entryID),
		zap.String("mode", string(q.Mode)),
		zap.Error(err),
	}
	kind := "error"
	if f, ok := client.AsFailure(err); ok {
		kind = string(f.Kind)
		fields = append(fields, zap.String("failure_kind", kind), zap.Int("status", f.Status))
	}
	s.logger.Error("query failed", fields...)

	s.tracker.Track(model.EventQueryError, s.id, map[string]any{
		"query": q.Text,
		"error": kind,
	})

	return s.resolve(entryID, render.ConnectionError())
}

// resolveTurns paints the first advertising bubble into the placeholder and
// appends the rest of the chain one by one after the chain delay.
func (s *Session) resolveTurns(entryID string, raw *model.RawResponse) (transcript.Entry, error) {
	var resp *model.AdvertisingResponse
	if raw != nil {
		resp = raw.Advertising
	}
	turns := normalize.Turns(resp)
	if len(turns) == 0 {
		turns = []model.AdvertisingTurn{{Result: *normalize.Advertising(nil)}}
	}

	entry, err := s.resolve(entryID, render.Turn(turns[0]))
	if err != nil {
		return transcript.Entry{}, err
	}

	rest := turns[1:]
	if len(rest) == 0 {
		return entry, nil
	}
	if s.chainDelay <= 0 {
		for _, t := range rest {
			s.appendBot(render.Turn(t))
		}
		return entry, nil
	}

	s.chains.Add(1)
	go func() {
		defer s.chains.Done()
		for _, t := range rest {
			timer := time.NewTimer(s.chainDelay)
			select {
			case <-s.done:
				timer.Stop()
				return
			case <-timer.C:
			}
			s.appendBot(render.Turn(t))
		}
	}()
	return entry, nil
}

func (s *Session) appendBot(content *render.Node) {
	s.emit(s.entries.Append(transcript.RoleBot, content))
	metrics.TranscriptEntriesTotal.WithLabelValues(string(transcript.RoleBot)).Inc()
}

func (s *Session) resolve(entryID string, content *render.Node) (transcript.Entry, error) {
	entry, err := s.entries.Resolve(entryID, content)
	if err != nil {
		return transcript.Entry{}, fmt.Errorf("resolving entry %s: %w", entryID, err)
	}
	s.emit(entry)
	return entry, nil
}

// LoadMore extends a query answer with its next page. A failed page request
// is painted into the entry; only a missing, stale or busy control is
// returned as an error.
func (s *Session) LoadMore(ctx context.Context, entryID string) (transcript.Entry, error) {
	_, err := s.pager.LoadMore(ctx, entryID)
	if err != nil && rejected(err) {
		return transcript.Entry{}, err
	}

	entry, gerr := s.entries.Get(entryID)
	if gerr != nil {
		return transcript.Entry{}, gerr
	}
	s.emit(entry)
	return entry, nil
}

func rejected(err error) bool {
	return errors.Is(err, pagination.ErrNoControl) ||
		errors.Is(err, pagination.ErrLoadInProgress) ||
		errors.Is(err, pagination.ErrStale) ||
		errors.Is(err, transcript.ErrEntryNotFound) ||
		errors.Is(err, transcript.ErrPending)
}

// ToggleFAQ flips one FAQ block of an entry and returns its new state.
func (s *Session) ToggleFAQ(entryID, faqID string) (bool, error) {
	var expanded bool
	entry, err := s.entries.Patch(entryID, func(root *render.Node) error {
		var terr error
		expanded, terr = render.ToggleFAQ(root, faqID)
		return terr
	})
	if err != nil {
		return false, err
	}
	s.emit(entry)
	return expanded, nil
}

// Track relays a page event through the session's tracker.
func (s *Session) Track(event model.EventName, data map[string]any) {
	s.tracker.Track(event, s.id, data)
}

// Transcript returns copies of all entries in order.
func (s *Session) Transcript() []transcript.Entry {
	return s.entries.List()
}

// Entry returns a copy of one entry.
func (s *Session) Entry(id string) (transcript.Entry, error) {
	return s.entries.Get(id)
}

// Pagination returns the current pagination slot.
func (s *Session) Pagination() pagination.State {
	return s.pager.Snapshot()
}

// Snapshot captures the session for persistence.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:         s.id,
		Language:   s.language,
		Entries:    s.entries.List(),
		Pagination: s.pager.Snapshot(),
		UpdatedAt:  time.Now().UTC(),
	}
}

// Restore loads a saved snapshot into an empty session. Requests that were
// in flight when the snapshot was taken cannot complete, so pending answers
// get the connection error and pending pages the load-more error.
func (s *Session) Restore(snap Snapshot) {
	s.entries.Restore(snap.Entries)
	s.pager.Reset(snap.Pagination)

	for _, e := range snap.Entries {
		if e.Status == transcript.StatusPending {
			if _, err := s.entries.Resolve(e.ID, render.ConnectionError()); err != nil {
				s.logger.Warn("failed to settle interrupted entry", zap.String("entry_id", e.ID), zap.Error(err))
			}
			continue
		}
		if e.Content.Find(render.KindTyping, render.ShowMoreID) != nil {
			if err := s.pager.Abandon(e.ID); err != nil {
				s.logger.Warn("failed to settle interrupted page", zap.String("entry_id", e.ID), zap.Error(err))
			}
		}
	}
}

// Close stops pending advertising chains and waits for them to exit.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.chains.Wait()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) emit(e transcript.Entry) {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}
