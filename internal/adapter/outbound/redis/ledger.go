package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seedai/server/internal/model"
	"github.com/seedai/server/internal/port/outbound"
)

const (
	defaultLedgerKeyPrefix = "seedai:ledger:"
	defaultLedgerTTL       = 24 * time.Hour
	maxUpdateAttempts      = 5
)

// LedgerConfig configures the shared ledger.
type LedgerConfig struct {
	KeyPrefix string
	Capacity  int
	TTL       time.Duration
}

// LedgerAdapter implements LedgerPort on Redis so several replicas share one history.
// Records are JSON strings with a TTL; the index list holds ids newest first.
type LedgerAdapter struct {
	client redis.UniversalClient
	cfg    LedgerConfig
	now    func() time.Time
	newID  func() (string, error)
}

// NewLedgerAdapter creates a new Redis ledger adapter.
func NewLedgerAdapter(client redis.UniversalClient, cfg LedgerConfig, newID func() (string, error)) *LedgerAdapter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultLedgerKeyPrefix
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 50
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultLedgerTTL
	}
	return &LedgerAdapter{
		client: client,
		cfg:    cfg,
		now:    time.Now,
		newID:  newID,
	}
}

func (a *LedgerAdapter) recordKey(id string) string {
	return a.cfg.KeyPrefix + "record:" + id
}

func (a *LedgerAdapter) indexKey() string {
	return a.cfg.KeyPrefix + "index"
}

func (a *LedgerAdapter) Create(ctx context.Context, kind model.Kind, prompt string) (string, error) {
	id, err := a.newID()
	if err != nil {
		return "", fmt.Errorf("allocate record id: %w", err)
	}

	data, err := json.Marshal(&model.GenerationRequest{
		ID:        id,
		Kind:      kind,
		Prompt:    prompt,
		Status:    model.StatusPending,
		CreatedAt: a.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	_, err = a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, a.recordKey(id), data, a.cfg.TTL)
		pipe.LPush(ctx, a.indexKey(), id)
		pipe.LTrim(ctx, a.indexKey(), 0, int64(a.cfg.Capacity-1))
		pipe.Expire(ctx, a.indexKey(), a.cfg.TTL)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create record: %w", err)
	}
	return id, nil
}

// Update applies a transition inside a WATCH/MULTI transaction, retrying on contention.
func (a *LedgerAdapter) Update(ctx context.Context, id string, status model.Status, result string) error {
	key := a.recordKey(id)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		var rec model.GenerationRequest
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode record %s: %w", id, err)
		}
		if !rec.Apply(status, result) {
			return nil
		}

		data, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateAttempts; i++ {
		err := a.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		return nil
	}
	return fmt.Errorf("update record %s: too much contention", id)
}

func (a *LedgerAdapter) List(ctx context.Context, limit int) ([]*model.GenerationRequest, error) {
	if limit <= 0 || limit > a.cfg.Capacity {
		limit = a.cfg.Capacity
	}

	ids, err := a.client.LRange(ctx, a.indexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list index: %w", err)
	}
	if len(ids) == 0 {
		return []*model.GenerationRequest{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = a.recordKey(id)
	}
	vals, err := a.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	out := make([]*model.GenerationRequest, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			// Expired.
			continue
		}
		var rec model.GenerationRequest
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, nil
}

// Compile-time interface check
var _ outbound.LedgerPort = (*LedgerAdapter)(nil)
