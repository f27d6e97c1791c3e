package server

import (
	"encoding/json"

	"shiftdesk/internal/domain"
)

type ReportListResponse struct {
	Reports []domain.Report `json:"reports"`
}

type SubmitResponse struct {
	Success  bool            `json:"success"`
	ReportID domain.ReportID `json:"report_id"`
	Message  string          `json:"message,omitempty"`
}

type ValidateResponse struct {
	Success bool                `json:"success"`
	Status  domain.ReportStatus `json:"status" enum:"pending,approved,rejected"`
}

type ClearResponse struct {
	Success bool  `json:"success"`
	Deleted int64 `json:"deleted"`
}

type MarkReadResponse struct {
	Success     bool `json:"success"`
	UnreadCount int  `json:"unread_count"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type SummaryResponse struct {
	Totals map[string]int `json:"totals"`
}

// Conversion helpers

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}
