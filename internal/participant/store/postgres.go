package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"custodia/internal/participant/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// Postgres persists participants in PostgreSQL. The schema keeps
// certifications and operating regions as text arrays; everything else is
// scalar columns so the registry can be queried directly by ops tooling.
//
// Expected schema:
//
//	CREATE TABLE participants (
//	    id             UUID PRIMARY KEY,
//	    name           TEXT NOT NULL,
//	    role           TEXT NOT NULL,
//	    public_key     TEXT NOT NULL,
//	    certifications TEXT[] NOT NULL DEFAULT '{}',
//	    regions        TEXT[] NOT NULL DEFAULT '{}',
//	    risk_rating    INT NOT NULL DEFAULT 0,
//	    last_audit_at  TIMESTAMPTZ,
//	    active         BOOLEAN NOT NULL DEFAULT TRUE,
//	    created_at     TIMESTAMPTZ NOT NULL,
//	    updated_at     TIMESTAMPTZ NOT NULL
//	);
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Upsert(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (id, name, role, public_key, certifications, regions, risk_rating, last_audit_at, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			public_key = EXCLUDED.public_key,
			certifications = EXCLUDED.certifications,
			regions = EXCLUDED.regions,
			risk_rating = EXCLUDED.risk_rating,
			last_audit_at = EXCLUDED.last_audit_at,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(p.ID), p.Name, string(p.Role), p.PublicKey,
		pq.Array(p.Certifications), pq.Array(p.Regions),
		p.RiskRating, nullTime(p.LastAuditAt), p.Active, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, participantID id.ParticipantID) (*models.Participant, error) {
	query := `
		SELECT id, name, role, public_key, certifications, regions, risk_rating, last_audit_at, active, created_at, updated_at
		FROM participants WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(participantID))
	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find participant: %w", err)
	}
	return p, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Participant, error) {
	query := `
		SELECT id, name, role, public_key, certifications, regions, risk_rating, last_audit_at, active, created_at, updated_at
		FROM participants ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []*models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (*models.Participant, error) {
	var (
		p         models.Participant
		rawID     uuid.UUID
		role      string
		lastAudit sql.NullTime
	)
	err := row.Scan(&rawID, &p.Name, &role, &p.PublicKey,
		pq.Array(&p.Certifications), pq.Array(&p.Regions),
		&p.RiskRating, &lastAudit, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ID = id.ParticipantID(rawID)
	p.Role = id.Role(role)
	if lastAudit.Valid {
		p.LastAuditAt = lastAudit.Time
	}
	return &p, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
