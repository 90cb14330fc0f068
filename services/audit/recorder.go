// Package audit records every partner domain event into the audit table,
// consuming them from the bus so the write sits off the request path.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"partnerd/pkg/bus"
	"partnerd/pkg/db"
)

// Recorder subscribes to partnerd.> and persists one audit row per event.
type Recorder struct {
	pool *pgxpool.Pool
	bus  *bus.Bus
	log  zerolog.Logger

	subMu sync.Mutex
	sub   io.Closer
}

// NewRecorder builds a Recorder. Both the pool and the bus are required.
func NewRecorder(pool *pgxpool.Pool, b *bus.Bus, log zerolog.Logger) (*Recorder, error) {
	if pool == nil {
		return nil, fmt.Errorf("audit: pool is required")
	}
	if b == nil {
		return nil, fmt.Errorf("audit: bus is required")
	}
	return &Recorder{pool: pool, bus: b, log: log}, nil
}

// Start begins consuming events with a durable subscription so restarts
// resume where they left off.
func (r *Recorder) Start(ctx context.Context) error {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if r.sub != nil {
		return fmt.Errorf("audit: recorder already started")
	}

	sub, err := r.bus.Subscribe(ctx, "partnerd.>", "audit-recorder", r.handleEvent)
	if err != nil {
		return fmt.Errorf("audit: subscribe: %w", err)
	}
	r.sub = sub
	return nil
}

// Stop tears down the subscription.
func (r *Recorder) Stop() error {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if r.sub == nil {
		return nil
	}
	err := r.sub.Close()
	r.sub = nil
	return err
}

func (r *Recorder) handleEvent(ctx context.Context, subject string, data []byte) error {
	var details map[string]any
	if err := json.Unmarshal(data, &details); err != nil {
		// Unparseable events are recorded raw rather than redelivered
		// forever.
		details = map[string]any{"raw": string(data)}
	}

	if err := r.insert(ctx, subject, details); err != nil {
		r.log.Error().Err(err).Str("subject", subject).Msg("record audit event")
		return err
	}
	r.log.Debug().Str("subject", subject).Msg("audit event recorded")
	return nil
}

func (r *Recorder) insert(ctx context.Context, subject string, details map[string]any) error {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit (actor, action, obj, details, at)
		VALUES ($1, $2, $3, $4, now())`,
		"partnerd", subject, objectFromDetails(details), payload)
	if err != nil {
		return fmt.Errorf("insert audit row: %w", err)
	}
	return nil
}

func objectFromDetails(details map[string]any) string {
	for _, key := range []string{"application_id", "id"} {
		if v, ok := details[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
