package cachepage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
)

var (
	ErrNothingPending = errors.New("no delete is awaiting confirmation")
	ErrUnknownKey     = errors.New("key is not in the current listing")
)

// ActionKind names a destructive cache operation.
type ActionKind int

const (
	DeleteOne ActionKind = iota + 1
	DeleteAll
)

// Action is a destructive operation waiting for the operator to confirm it.
type Action struct {
	Kind ActionKind
	Key  string
}

// Prompt is the confirmation question shown for the action.
func (a Action) Prompt(total int) string {
	if a.Kind == DeleteAll {
		return fmt.Sprintf("Delete all %d keys? This cannot be undone.", total)
	}
	return fmt.Sprintf("Delete key %q?", a.Key)
}

// Row is one visible line of the listing.
type Row struct {
	Key       string
	Value     string
	TTL       string
	Expanded  bool
	Truncated bool
}

// Page holds the cache listing the operator is looking at. Entries are a
// snapshot of the last Refresh; nothing survives a reload.
type Page struct {
	svc    Service
	logger *slog.Logger

	mu       sync.Mutex
	pattern  string
	filter   string
	list     adminsdk.CacheList
	expanded map[string]bool
	pending  *Action
	err      error
}

func NewPage(svc Service, logger *slog.Logger) *Page {
	if logger == nil {
		logger = slog.Default()
	}
	return &Page{
		svc:      svc,
		logger:   logger,
		expanded: make(map[string]bool),
	}
}

// SetPattern sets the server-side pattern used by the next Refresh.
func (p *Page) SetPattern(pattern string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pattern = pattern
}

func (p *Page) Pattern() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pattern
}

// SetFilter narrows the loaded snapshot to keys with the given prefix
// without another round trip.
func (p *Page) SetFilter(prefix string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter = prefix
}

func (p *Page) Filter() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filter
}

// Refresh reloads the snapshot from the backend. On failure the previous
// snapshot is kept and the error is also available from Err.
func (p *Page) Refresh(ctx context.Context) error {
	pattern := p.Pattern()

	list, err := p.svc.List(ctx, pattern)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.err = err
		p.logger.Warn("cache list failed", "pattern", pattern, "error", err)
		return err
	}

	p.err = nil
	p.list = *list
	p.expanded = make(map[string]bool)
	if p.pending != nil && p.pending.Kind == DeleteOne && !p.hasKey(p.pending.Key) {
		p.pending = nil
	}
	return nil
}

// Err is the error from the last backend call, if any.
func (p *Page) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// TotalKeys is the count the backend reported, which may exceed the
// number of entries returned.
func (p *Page) TotalKeys() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.list.TotalKeys
}

// Visible returns the rows that match the local prefix filter.
func (p *Page) Visible() []Row {
	p.mu.Lock()
	defer p.mu.Unlock()

	rows := make([]Row, 0, len(p.list.Entries))
	for _, e := range p.list.Entries {
		if !strings.HasPrefix(e.Key, p.filter) {
			continue
		}

		full := FormatValue(e.Value)
		short, cut := Truncate(full, PreviewLength)
		row := Row{
			Key:       e.Key,
			TTL:       FormatTTL(e.TTL),
			Expanded:  p.expanded[e.Key],
			Truncated: cut,
			Value:     short,
		}
		if row.Expanded {
			row.Value = full
		}
		rows = append(rows, row)
	}
	return rows
}

// ToggleExpand flips between the truncated and full value of key.
func (p *Page) ToggleExpand(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expanded[key] = !p.expanded[key]
}

// RequestDelete stages the removal of one key. Nothing is sent until
// Confirm.
func (p *Page) RequestDelete(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.hasKey(key) {
		return ErrUnknownKey
	}
	p.pending = &Action{Kind: DeleteOne, Key: key}
	return nil
}

// RequestDeleteAll stages a flush of every key.
func (p *Page) RequestDeleteAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = &Action{Kind: DeleteAll}
}

// Pending returns the staged action, if any.
func (p *Page) Pending() (Action, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending == nil {
		return Action{}, false
	}
	return *p.pending, true
}

func (p *Page) CancelPending() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = nil
}

// Confirm runs the staged action and reloads the listing.
func (p *Page) Confirm(ctx context.Context) error {
	p.mu.Lock()
	act := p.pending
	p.pending = nil
	p.mu.Unlock()

	if act == nil {
		return ErrNothingPending
	}

	var err error
	switch act.Kind {
	case DeleteAll:
		err = p.svc.DeleteAll(ctx)
	default:
		err = p.svc.DeleteOne(ctx, act.Key)
	}
	if err != nil {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		p.logger.Warn("cache delete failed", "key", act.Key, "all", act.Kind == DeleteAll, "error", err)
		return err
	}

	p.logger.Info("cache delete", "key", act.Key, "all", act.Kind == DeleteAll)
	return p.Refresh(ctx)
}

func (p *Page) hasKey(key string) bool {
	for _, e := range p.list.Entries {
		if e.Key == key {
			return true
		}
	}
	return false
}
