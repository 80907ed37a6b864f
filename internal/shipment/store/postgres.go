package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"custodia/internal/shipment/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// Postgres persists each shipment as a JSONB document plus a few scalar
// columns for indexing. Execute holds a row lock (SELECT ... FOR UPDATE)
// across validate and apply, which gives the per-shipment single-writer
// guarantee without a process-wide lock; the version column is a belt-and-
// braces check against lost updates from outside the Execute path.
//
// Expected schema:
//
//	CREATE TABLE shipments (
//	    id              UUID PRIMARY KEY,
//	    tracking_number TEXT NOT NULL UNIQUE,
//	    status          TEXT NOT NULL,
//	    custodian       UUID NOT NULL,
//	    risk_score      INT NOT NULL DEFAULT 0,
//	    version         BIGINT NOT NULL DEFAULT 0,
//	    state           JSONB NOT NULL,
//	    created_at      TIMESTAMPTZ NOT NULL,
//	    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, sh *models.Shipment) error {
	state, err := json.Marshal(sh)
	if err != nil {
		return fmt.Errorf("encode shipment: %w", err)
	}
	query := `
		INSERT INTO shipments (id, tracking_number, status, custodian, risk_score, version, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(sh.ID), sh.TrackingNumber, string(sh.Status),
		uuid.UUID(sh.CurrentCustodian), sh.RiskScore, sh.Version, state, sh.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create shipment: %w", err)
	}
	return nil
}

// Delete removes a shipment row. Only the creation rollback path uses it.
func (s *Postgres) Delete(ctx context.Context, shipmentID id.ShipmentID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM shipments WHERE id = $1`, uuid.UUID(shipmentID))
	if err != nil {
		return fmt.Errorf("delete shipment: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, shipmentID id.ShipmentID) (*models.Shipment, error) {
	return s.findBy(ctx, `SELECT state FROM shipments WHERE id = $1`, uuid.UUID(shipmentID))
}

func (s *Postgres) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	return s.findBy(ctx, `SELECT state FROM shipments WHERE tracking_number = $1`, trackingNumber)
}

func (s *Postgres) findBy(ctx context.Context, query string, arg any) (*models.Shipment, error) {
	var state []byte
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&state)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find shipment: %w", err)
	}
	var sh models.Shipment
	if err := json.Unmarshal(state, &sh); err != nil {
		return nil, fmt.Errorf("decode shipment: %w", err)
	}
	return &sh, nil
}

// Execute loads the shipment under a row lock, runs validate-then-apply, and
// writes the result back in the same transaction. A validate error aborts
// with no write and is returned untouched.
func (s *Postgres) Execute(ctx context.Context, shipmentID id.ShipmentID, validate func(*models.Shipment) error, apply func(*models.Shipment)) (*models.Shipment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin shipment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var (
		state   []byte
		version int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT state, version FROM shipments WHERE id = $1 FOR UPDATE`,
		uuid.UUID(shipmentID),
	).Scan(&state, &version)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock shipment: %w", err)
	}

	var sh models.Shipment
	if err := json.Unmarshal(state, &sh); err != nil {
		return nil, fmt.Errorf("decode shipment: %w", err)
	}
	sh.Version = version

	if err := validate(&sh); err != nil {
		return nil, err
	}
	apply(&sh)
	sh.Version = version + 1

	next, err := json.Marshal(&sh)
	if err != nil {
		return nil, fmt.Errorf("encode shipment: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE shipments
		SET state = $1, status = $2, custodian = $3, risk_score = $4, version = $5, updated_at = now()
		WHERE id = $6 AND version = $7
	`, next, string(sh.Status), uuid.UUID(sh.CurrentCustodian), sh.RiskScore, sh.Version, uuid.UUID(shipmentID), version)
	if err != nil {
		return nil, fmt.Errorf("update shipment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update shipment: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrConflict
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit shipment tx: %w", err)
	}
	return &sh, nil
}
