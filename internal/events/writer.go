package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types written by the report service.
const (
	ReportSubmitted  = "report.submitted"
	ReportValidated  = "report.validated"
	ReportsCleared   = "reports.cleared"
	NotificationRead = "notification.read"
)

// Entity kinds.
const (
	KindReport       = "report"
	KindNotification = "notification"
)

// Record is one audit row. EntityID is empty for bulk operations.
type Record struct {
	Type       string
	EntityKind string
	EntityID   string
	ActorID    string
	Payload    map[string]any
}

// Writer appends audit rows inside the caller's transaction so an event
// exists exactly when its change commits.
type Writer struct {
	Now func() time.Time
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, rec Record) error {
	if rec.Type == "" || rec.EntityKind == "" {
		return fmt.Errorf("event needs a type and an entity kind")
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	payload := rec.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", rec.Type, err)
	}
	var entityID any
	if rec.EntityID != "" {
		entityID = rec.EntityID
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), rec.Type, rec.EntityKind, entityID, rec.ActorID, string(data))
	if err != nil {
		return fmt.Errorf("append %s event: %w", rec.Type, err)
	}
	return nil
}
