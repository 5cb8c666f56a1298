package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

// Fixed-width UTC timestamps sort correctly as text on both drivers.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var auditSchema = []string{
	`CREATE TABLE IF NOT EXISTS proxy_audit (
		id          TEXT PRIMARY KEY,
		occurred_at TEXT NOT NULL,
		actor       TEXT NOT NULL,
		action      TEXT NOT NULL,
		resource    TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		message     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_proxy_audit_occurred_at ON proxy_audit (occurred_at)`,
}

type auditRow struct {
	ID         string `db:"id"`
	OccurredAt string `db:"occurred_at"`
	Actor      string `db:"actor"`
	Action     string `db:"action"`
	Resource   string `db:"resource"`
	Outcome    string `db:"outcome"`
	Message    string `db:"message"`
}

// AuditRepository implements domain.AuditRepository over sqlx.
type AuditRepository struct {
	db *sqlx.DB
}

var _ domain.AuditRepository = (*AuditRepository)(nil)

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Migrate creates the table if it does not exist yet.
func (r *AuditRepository) Migrate(ctx context.Context) error {
	for _, stmt := range auditSchema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate audit schema: %w", err)
		}
	}
	return nil
}

// Record fills in ID and OccurredAt when they are zero.
func (r *AuditRepository) Record(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	query := `
		INSERT INTO proxy_audit (id, occurred_at, actor, action, resource, outcome, message)
		VALUES (:id, :occurred_at, :actor, :action, :resource, :outcome, :message)
	`
	_, err := r.db.NamedExecContext(ctx, query, auditRow{
		ID:         event.ID.String(),
		OccurredAt: event.OccurredAt.UTC().Format(timeLayout),
		Actor:      event.Actor,
		Action:     event.Action,
		Resource:   event.Resource,
		Outcome:    event.Outcome,
		Message:    event.Message,
	})
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// List returns the most recent events first. limit is clamped to 1..500.
func (r *AuditRepository) List(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := r.db.Rebind(`
		SELECT id, occurred_at, actor, action, resource, outcome, message
		FROM proxy_audit
		ORDER BY occurred_at DESC
		LIMIT ?
	`)

	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}

	events := make([]domain.AuditEvent, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return nil, fmt.Errorf("corrupt audit id %q: %w", row.ID, err)
		}
		at, err := time.Parse(timeLayout, row.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("corrupt audit timestamp %q: %w", row.OccurredAt, err)
		}
		events = append(events, domain.AuditEvent{
			ID:         id,
			OccurredAt: at,
			Actor:      row.Actor,
			Action:     row.Action,
			Resource:   row.Resource,
			Outcome:    row.Outcome,
			Message:    row.Message,
		})
	}
	return events, nil
}

// NopAuditRepository is used when no audit DSN is configured.
type NopAuditRepository struct{}

func (NopAuditRepository) Record(context.Context, *domain.AuditEvent) error { return nil }

func (NopAuditRepository) List(context.Context, int) ([]domain.AuditEvent, error) {
	return []domain.AuditEvent{}, nil
}
