package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bazarly/bazarly/internal/platform/db"
)

// Entry captures who changed what, with the before/after state. Rows are
// append-only: never updated, never deleted.
type Entry struct {
	TargetID  string
	Module    string
	Action    string
	OldState  any
	NewState  any
	ChangedBy int64
	At        time.Time
}

// Writer appends audit entries. Implementations are scoped to the
// transaction of the mutation they document; a write failure must fail
// the enclosing business transaction.
type Writer interface {
	Record(ctx context.Context, e Entry) error
}

type txWriter struct {
	dbtx db.DBTX
}

// NewTxWriter returns a Writer that appends on the supplied transaction
// or pool.
func NewTxWriter(dbtx db.DBTX) Writer {
	return &txWriter{dbtx: dbtx}
}

func (w *txWriter) Record(ctx context.Context, e Entry) error {
	if w == nil || w.dbtx == nil {
		return errors.New("audit: writer not initialised")
	}
	if e.TargetID == "" || e.Module == "" || e.Action == "" {
		return errors.New("audit: entry requires target/module/action")
	}
	oldJSON, err := marshalState(e.OldState)
	if err != nil {
		return fmt.Errorf("audit: marshal old state: %w", err)
	}
	newJSON, err := marshalState(e.NewState)
	if err != nil {
		return fmt.Errorf("audit: marshal new state: %w", err)
	}
	_, err = w.dbtx.Exec(ctx, `INSERT INTO audit_logs (target_id, module, action, old_state, new_state, changed_by, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE(NULLIF($7, '0001-01-01 00:00:00+00'::timestamptz), NOW()))`,
		e.TargetID, e.Module, e.Action, oldJSON, newJSON, e.ChangedBy, e.At)
	return err
}

func marshalState(state any) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	return json.Marshal(state)
}
