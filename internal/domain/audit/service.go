package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"coreops/internal/platform/clock"
	"coreops/internal/platform/db"
	"coreops/internal/requestctx"
)

var ErrIncompleteEntry = errors.New("audit: entry is missing actor, action, entity or after snapshot")

type Service struct {
	DB    db.Queryer
	Clock clock.Clock
}

func New(q db.Queryer, c clock.Clock) *Service {
	if c == nil {
		c = clock.System{}
	}
	return &Service{DB: q, Clock: c}
}

// Record appends an entry using the transaction carried by ctx, so it commits
// or rolls back together with the mutation it describes.
func (s *Service) Record(ctx context.Context, entry Entry) (Event, error) {
	if strings.TrimSpace(entry.ActorID) == "" || entry.Action == "" || entry.EntityType == "" || entry.EntityID == "" || entry.After == nil {
		return Event{}, ErrIncompleteEntry
	}

	before, err := Scrub(entry.Before)
	if err != nil {
		return Event{}, fmt.Errorf("audit: encode before: %w", err)
	}
	after, err := Scrub(entry.After)
	if err != nil {
		return Event{}, fmt.Errorf("audit: encode after: %w", err)
	}

	requestID := entry.RequestID
	if requestID == "" {
		requestID = requestctx.GetRequestID(ctx)
	}

	evt := Event{
		ID:         uuid.NewString(),
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Reason:     strings.TrimSpace(entry.Reason),
		Override:   entry.Override,
		RequestID:  requestID,
		Before:     before,
		After:      after,
		CreatedAt:  s.Clock.Now().UTC().Truncate(time.Microsecond),
	}

	q := db.QueryerFromContext(ctx, s.DB)

	// Serialises appends per entity so the chain cannot fork.
	if _, err := q.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", evt.EntityType+":"+evt.EntityID); err != nil {
		return Event{}, fmt.Errorf("audit: lock entity chain: %w", err)
	}

	err = q.QueryRow(ctx, `
    SELECT hash FROM audit_log
    WHERE entity_type = $1 AND entity_id = $2
    ORDER BY seq DESC
    LIMIT 1
  `, evt.EntityType, evt.EntityID).Scan(&evt.PrevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Event{}, fmt.Errorf("audit: read chain head: %w", err)
	}

	evt.Hash, err = ComputeHash(evt.PrevHash, evt)
	if err != nil {
		return Event{}, fmt.Errorf("audit: hash entry: %w", err)
	}

	if _, err := q.Exec(ctx, `
    INSERT INTO audit_log (id, actor_id, action, entity_type, entity_id, reason, override, request_id, before_json, after_json, prev_hash, hash, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
  `, evt.ID, evt.ActorID, evt.Action, evt.EntityType, evt.EntityID, evt.Reason, evt.Override, evt.RequestID,
		nullableJSON(evt.Before), []byte(evt.After), evt.PrevHash, evt.Hash, evt.CreatedAt); err != nil {
		return Event{}, fmt.Errorf("audit: insert: %w", err)
	}
	return evt, nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

const eventColumns = "id, actor_id, action, entity_type, entity_id, reason, override, request_id, before_json, after_json, prev_hash, hash, created_at"

func (s *Service) Count(ctx context.Context, filter Filter) (int, error) {
	query, args := buildBaseQuery("SELECT COUNT(1)", filter)
	var total int
	if err := db.QueryerFromContext(ctx, s.DB).QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Event, error) {
	query, args := buildBaseQuery("SELECT "+eventColumns, filter)
	query += fmt.Sprintf(" ORDER BY seq DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	return s.query(ctx, query, args...)
}

// Timeline returns every event of one entity, oldest first.
func (s *Service) Timeline(ctx context.Context, entityType, entityID string) ([]Event, error) {
	return s.query(ctx, "SELECT "+eventColumns+" FROM audit_log WHERE entity_type = $1 AND entity_id = $2 ORDER BY seq ASC", entityType, entityID)
}

// VerifyRecent re-hashes the chains of every entity touched since the given time.
func (s *Service) VerifyRecent(ctx context.Context, since time.Time) (VerifyReport, error) {
	rows, err := db.QueryerFromContext(ctx, s.DB).Query(ctx, `
    SELECT DISTINCT entity_type, entity_id
    FROM audit_log
    WHERE created_at >= $1
  `, since)
	if err != nil {
		return VerifyReport{}, err
	}
	type key struct{ entityType, entityID string }
	var keys []key
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.entityType, &k.entityID); err != nil {
			rows.Close()
			return VerifyReport{}, err
		}
		keys = append(keys, k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return VerifyReport{}, err
	}

	report := VerifyReport{Breaks: []Break{}}
	for _, k := range keys {
		events, err := s.Timeline(ctx, k.entityType, k.entityID)
		if err != nil {
			return report, err
		}
		report.Entities++
		report.Events += len(events)
		report.Breaks = append(report.Breaks, VerifyChain(events)...)
	}
	return report, nil
}

func (s *Service) query(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := db.QueryerFromContext(ctx, s.DB).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var evt Event
		var before, after []byte
		if err := rows.Scan(&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.Reason, &evt.Override,
			&evt.RequestID, &before, &after, &evt.PrevHash, &evt.Hash, &evt.CreatedAt); err != nil {
			return nil, err
		}
		evt.Before = before
		evt.After = after
		out = append(out, evt)
	}
	return out, rows.Err()
}

func buildBaseQuery(prefix string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_log WHERE 1=1"
	args := []any{}
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		query += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		query += fmt.Sprintf(" AND entity_id = $%d", len(args))
	}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		query += fmt.Sprintf(" AND actor_id = $%d", len(args))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	return query, args
}
