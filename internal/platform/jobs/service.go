package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"coreops/internal/domain/audit"
	"coreops/internal/platform/clock"
	"coreops/internal/platform/db"
)

const JobAuditVerify = "audit_chain_verify"

// ChainVerifier re-hashes recent audit chains.
type ChainVerifier interface {
	VerifyRecent(ctx context.Context, since time.Time) (audit.VerifyReport, error)
}

type Config struct {
	AuditVerifyInterval time.Duration
	AuditVerifyWindow   time.Duration
}

type Service struct {
	DB       db.Queryer
	Verifier ChainVerifier
	Clock    clock.Clock
	Cfg      Config
	queue    chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(q db.Queryer, verifier ChainVerifier, c clock.Clock, cfg Config) *Service {
	if c == nil {
		c = clock.System{}
	}
	return &Service{
		DB:       q,
		Verifier: verifier,
		Clock:    c,
		Cfg:      cfg,
		queue:    make(chan job, 16),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.AuditVerifyInterval > 0 && s.Verifier != nil {
		go s.scheduleAuditVerify(ctx, s.Cfg.AuditVerifyInterval)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

// VerifyAuditChains checks every entity chain touched within the configured
// window and logs each break it finds.
func (s *Service) VerifyAuditChains(ctx context.Context) (any, error) {
	window := s.Cfg.AuditVerifyWindow
	if window <= 0 {
		window = 24 * time.Hour
	}
	report, err := s.Verifier.VerifyRecent(ctx, s.Clock.Now().Add(-window))
	if err != nil {
		return nil, err
	}
	for _, br := range report.Breaks {
		slog.ErrorContext(ctx, "audit chain break",
			"entityType", br.EntityType,
			"entityId", br.EntityID,
			"eventId", br.EventID,
			"reason", br.Reason,
		)
	}
	return report, nil
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if s.DB != nil {
		id := uuid.NewString()
		if _, err := s.DB.Exec(ctx, `
      INSERT INTO job_runs (id, job_type, status)
      VALUES ($1,$2,$3)
    `, id, j.Type, "running"); err != nil {
			slog.Warn("job run insert failed", "err", err)
		} else {
			runID = id
		}
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
		details = map[string]string{"error": err.Error()}
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

func (s *Service) scheduleAuditVerify(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(JobAuditVerify, s.VerifyAuditChains)
		}
	}
}
