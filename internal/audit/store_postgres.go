package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "custodia/pkg/domain"
)

// PostgresStore persists the audit log in PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE audit_events (
//	    id          UUID PRIMARY KEY,
//	    shipment_id UUID NOT NULL,
//	    actor       UUID NOT NULL,
//	    action      TEXT NOT NULL,
//	    decision    TEXT NOT NULL,
//	    reason      TEXT NOT NULL,
//	    request_id  TEXT NOT NULL DEFAULT '',
//	    client_ip   TEXT NOT NULL DEFAULT '',
//	    user_agent  TEXT NOT NULL DEFAULT '',
//	    created_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX audit_events_shipment_idx ON audit_events (shipment_id, created_at);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (id, shipment_id, actor, action, decision, reason, request_id, client_ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New(), uuid.UUID(event.ShipmentID), uuid.UUID(event.Actor),
		event.Action, event.Decision, event.Reason,
		event.RequestID, event.ClientIP, event.UserAgent, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByShipment(ctx context.Context, shipmentID id.ShipmentID) ([]Event, error) {
	query := `
		SELECT shipment_id, actor, action, decision, reason, request_id, client_ip, user_agent, created_at
		FROM audit_events
		WHERE shipment_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(shipmentID))
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			shipID, actorID uuid.UUID
			event           Event
		)
		if err := rows.Scan(&shipID, &actorID, &event.Action, &event.Decision, &event.Reason,
			&event.RequestID, &event.ClientIP, &event.UserAgent, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.ShipmentID = id.ShipmentID(shipID)
		event.Actor = id.ParticipantID(actorID)
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
