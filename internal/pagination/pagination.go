// Package pagination drives the "show more" control of a query answer.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/expat-assistant/internal/client"
	"github.com/capitalize-ai/expat-assistant/internal/model"
	"github.com/capitalize-ai/expat-assistant/internal/normalize"
	"github.com/capitalize-ai/expat-assistant/internal/render"
	"github.com/capitalize-ai/expat-assistant/internal/transcript"
	"github.com/capitalize-ai/expat-assistant/pkg/logger"
	"github.com/capitalize-ai/expat-assistant/pkg/metrics"
)

var (
	// ErrNoControl is returned when the entry has no "show more" control.
	ErrNoControl = errors.New("entry has no show more control")
	// ErrLoadInProgress is returned while the entry's next page is still loading.
	ErrLoadInProgress = errors.New("load more already in progress")
	// ErrStale is returned for a control left behind by an earlier query.
	ErrStale = errors.New("show more control belongs to an earlier query")
)

// State is the single pagination slot of a session. It only describes the
// most recent top-level query.
type State struct {
	LastQueryText string `json:"last_query_text"`
	LastAgent     string `json:"last_agent,omitempty"`
	NextOffset    int    `json:"next_offset"`
	EntryID       string `json:"entry_id"`
}

// Config holds controller settings.
type Config struct {
	Language string
	PageSize int
}

// Controller issues follow-up page requests and merges them into the entry
// that hosted the control.
type Controller struct {
	sender   client.Sender
	entries  *transcript.Store
	language string
	pageSize int
	logger   *logger.Logger

	mu    sync.Mutex
	state State
}

// New creates a controller for one session.
func New(sender client.Sender, entries *transcript.Store, cfg Config, log *logger.Logger) *Controller {
	if cfg.PageSize <= 0 {
		cfg.PageSize = model.DefaultPageSize
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Controller{
		sender:   sender,
		entries:  entries,
		language: cfg.Language,
		pageSize: cfg.PageSize,
		logger:   log,
	}
}

// PageSize returns the page size used for every request.
func (c *Controller) PageSize() int {
	return c.pageSize
}

// Reset overwrites the slot after a new top-level query.
func (c *Controller) Reset(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Snapshot returns a copy of the slot.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LoadMore fetches the next page for the entry that shows the control.
//
// While the request is outstanding the control is swapped for a typing
// indicator, so a second call finds no control and reports ErrLoadInProgress.
func (c *Controller) LoadMore(ctx context.Context, entryID string) (*model.QueryResult, error) {
	state := c.Snapshot()
	if state.EntryID == "" {
		return nil, ErrNoControl
	}
	if state.EntryID != entryID {
		return nil, ErrStale
	}

	if _, err := c.entries.Patch(entryID, startLoading); err != nil {
		return nil, err
	}

	q := model.Query{
		Text:     state.LastQueryText,
		Language: c.language,
		Limit:    c.pageSize,
		Offset:   state.NextOffset,
		Mode:     model.ModeQuery,
		Agent:    state.LastAgent,
	}

	raw, err := c.sender.Send(ctx, q)
	if err != nil {
		metrics.LoadMoreTotal.WithLabelValues("error").Inc()
		c.logger.Error("load more failed",
			zap.String("entry_id", entryID),
			zap.Int("offset", q.Offset),
			zap.Error(err),
		)
		if _, perr := c.entries.Patch(entryID, func(root *render.Node) error {
			return replacePending(root, render.LoadMoreFailed())
		}); perr != nil {
			c.logger.Warn("painting load more failure", zap.String("entry_id", entryID), zap.Error(perr))
		}
		c.advance(entryID, state, nil)
		return nil, err
	}

	result := normalize.Normalize(raw)
	if _, err := c.entries.Patch(entryID, func(root *render.Node) error {
		return appendPage(root, result)
	}); err != nil {
		return nil, fmt.Errorf("merging page into entry: %w", err)
	}

	metrics.LoadMoreTotal.WithLabelValues("success").Inc()
	c.advance(entryID, state, result)
	return result, nil
}

// Abandon paints the load-more error over a page load that will never
// complete, such as one interrupted by a restart, and retires the slot.
func (c *Controller) Abandon(entryID string) error {
	if _, err := c.entries.Patch(entryID, func(root *render.Node) error {
		return replacePending(root, render.LoadMoreFailed())
	}); err != nil {
		return err
	}

	c.mu.Lock()
	if c.state.EntryID == entryID {
		c.state.EntryID = ""
	}
	c.mu.Unlock()
	return nil
}

// advance moves the slot forward, unless a newer query took it over
// while the page was loading. A nil result retires the slot.
func (c *Controller) advance(entryID string, prev State, result *model.QueryResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.EntryID != entryID || c.state.NextOffset != prev.NextOffset {
		return
	}
	if result == nil || !result.ShowsMore() {
		c.state.EntryID = ""
		return
	}

	next := result.NextOffset
	if next <= prev.NextOffset {
		next = prev.NextOffset + len(result.Items)
	}
	c.state.NextOffset = next
	if result.Agent != "" {
		c.state.LastAgent = result.Agent
	}
}

func startLoading(root *render.Node) error {
	for i, child := range root.Children {
		if child.ID != render.ShowMoreID {
			continue
		}
		if child.Kind == render.KindTyping {
			return ErrLoadInProgress
		}
		pending := render.TypingIndicator()
		pending.ID = render.ShowMoreID
		root.Children[i] = pending
		return nil
	}
	return ErrNoControl
}

func replacePending(root *render.Node, with ...*render.Node) error {
	for i, child := range root.Children {
		if child.Kind == render.KindTyping && child.ID == render.ShowMoreID {
			tail := append(with, root.Children[i+1:]...)
			root.Children = append(root.Children[:i], tail...)
			return nil
		}
	}
	return ErrNoControl
}

func appendPage(root *render.Node, result *model.QueryResult) error {
	var tail []*render.Node
	cards := render.Cards(result.Items, root.Count(render.KindCard))
	if results := root.Find(render.KindResults, ""); results != nil {
		results.Children = append(results.Children, cards...)
	} else if len(cards) > 0 {
		tail = append(tail, &render.Node{Kind: render.KindResults, Children: cards})
	}
	if result.ShowsMore() {
		tail = append(tail, render.ShowMore())
	}
	return replacePending(root, tail...)
}
