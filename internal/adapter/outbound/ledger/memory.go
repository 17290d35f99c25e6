package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/seedai/server/internal/model"
	"github.com/seedai/server/internal/port/outbound"
)

// DefaultCapacity is the number of records kept when no capacity is configured.
const DefaultCapacity = 50

// MemoryLedger keeps the most recent generation requests in process memory.
// The oldest record is evicted once capacity is reached.
type MemoryLedger struct {
	mu      sync.RWMutex
	records *simplelru.LRU[string, *model.GenerationRequest]
	now     func() time.Time
	newID   func() (string, error)
}

// Option configures a MemoryLedger.
type Option func(*MemoryLedger)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *MemoryLedger) {
		l.now = now
	}
}

// WithIDGenerator overrides record id allocation.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(l *MemoryLedger) {
		l.newID = gen
	}
}

// NewMemoryLedger creates an in-memory ledger holding at most capacity records.
func NewMemoryLedger(capacity int, opts ...Option) (*MemoryLedger, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	records, err := simplelru.NewLRU[string, *model.GenerationRequest](capacity, nil)
	if err != nil {
		return nil, fmt.Errorf("create ledger storage: %w", err)
	}

	l := &MemoryLedger{
		records: records,
		now:     time.Now,
		newID:   NewRecordID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// NewRecordID returns a time-ordered UUIDv7 string.
func NewRecordID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Create inserts a pending record at the front of the history.
func (l *MemoryLedger) Create(_ context.Context, kind model.Kind, prompt string) (string, error) {
	id, err := l.newID()
	if err != nil {
		return "", fmt.Errorf("allocate record id: %w", err)
	}

	rec := &model.GenerationRequest{
		ID:        id,
		Kind:      kind,
		Prompt:    prompt,
		Status:    model.StatusPending,
		CreatedAt: l.now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records.Add(id, rec)
	return id, nil
}

// Update applies a transition. Peek is used so updates never reorder history.
func (l *MemoryLedger) Update(_ context.Context, id string, status model.Status, result string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records.Peek(id)
	if !ok {
		return nil
	}
	rec.Apply(status, result)
	return nil
}

// List returns up to limit copies, newest first.
func (l *MemoryLedger) List(_ context.Context, limit int) ([]*model.GenerationRequest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	// Keys are ordered oldest to newest.
	keys := l.records.Keys()
	if limit <= 0 || limit > len(keys) {
		limit = len(keys)
	}

	out := make([]*model.GenerationRequest, 0, limit)
	for i := len(keys) - 1; i >= 0 && len(out) < limit; i-- {
		if rec, ok := l.records.Peek(keys[i]); ok {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// Len returns the number of records held.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.records.Len()
}

// Compile-time interface check
var _ outbound.LedgerPort = (*MemoryLedger)(nil)
