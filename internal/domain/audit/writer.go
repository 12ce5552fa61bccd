package audit

import (
	"context"
	"errors"
	"fmt"
)

var ErrNoAuditTrail = errors.New("audit: mutation completed without recording an entry")

type Recorder interface {
	Record(ctx context.Context, entry Entry) (Event, error)
}

type TxRunner interface {
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

// Trail collects the entries a mutation wants recorded.
type Trail struct {
	entries   []Entry
	unchanged bool
}

func (t *Trail) Add(entry Entry) {
	t.entries = append(t.entries, entry)
}

// Unchanged marks an idempotent no-op. Nothing is recorded and nothing may
// have been written.
func (t *Trail) Unchanged() {
	t.unchanged = true
}

func (t *Trail) Entries() []Entry {
	return t.entries
}

// Writer is the single entry point for state-changing operations: the
// mutation and its audit rows share one transaction.
type Writer struct {
	Tx       TxRunner
	Recorder Recorder
	OnCommit func(Event)
}

func NewWriter(tx TxRunner, recorder Recorder) *Writer {
	return &Writer{Tx: tx, Recorder: recorder}
}

func (w *Writer) WithAudit(ctx context.Context, fn func(ctx context.Context, trail *Trail) error) error {
	var recorded []Event
	err := w.Tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		trail := &Trail{}
		if err := fn(ctx, trail); err != nil {
			return err
		}
		if len(trail.entries) == 0 {
			if trail.unchanged {
				return nil
			}
			return ErrNoAuditTrail
		}
		recorded = recorded[:0]
		for _, entry := range trail.entries {
			evt, err := w.Recorder.Record(ctx, entry)
			if err != nil {
				return fmt.Errorf("record %s %s: %w", entry.EntityType, entry.Action, err)
			}
			recorded = append(recorded, evt)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if w.OnCommit != nil {
		for _, evt := range recorded {
			w.OnCommit(evt)
		}
	}
	return nil
}
