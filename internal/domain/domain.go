package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type ReportType string

const (
	ReportActivity ReportType = "activity"
	ReportAnalysis ReportType = "analysis"
)

func (t ReportType) Valid() bool {
	return t == ReportActivity || t == ReportAnalysis
}

type ReportStatus string

const (
	StatusPending  ReportStatus = "pending"
	StatusApproved ReportStatus = "approved"
	StatusRejected ReportStatus = "rejected"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Display returns the human label the backend uses for status_display.
func (s ReportStatus) Display() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	}
	return string(s)
}

// Action is a reviewer decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

func (a Action) Valid() bool {
	return a == ActionApprove || a == ActionReject
}

// Outcome maps a decision onto the report status it produces.
func (a Action) Outcome() ReportStatus {
	if a == ActionApprove {
		return StatusApproved
	}
	return StatusRejected
}

type Role string

const (
	RoleForeman Role = "foreman"
	RoleLeader  Role = "leader"
	RoleAdmin   Role = "admin"
)

// ReportID is opaque. Backends send it as a JSON number or string.
type ReportID string

func (id *ReportID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ReportID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("report id: %w", err)
	}
	*id = ReportID(n.String())
	return nil
}

// MarshalJSON writes canonical integers as numbers; anything else, "007"
// included, stays a string.
func (id ReportID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ReportID) String() string { return string(id) }

type Report struct {
	ID            ReportID     `json:"id"`
	Type          ReportType   `json:"type" enum:"activity,analysis"`
	Date          string       `json:"date" format:"date"`
	Title         string       `json:"title"`
	Details       string       `json:"details,omitempty"`
	Status        ReportStatus `json:"status" enum:"pending,approved,rejected"`
	StatusDisplay string       `json:"status_display"`
	Foreman       string       `json:"foreman"`
	ForemanID     string       `json:"foreman_id,omitempty"`
	Feedback      string       `json:"feedback,omitempty"`
	CreatedAt     string       `json:"created_at,omitempty" format:"date-time"`

	Shift        string          `json:"shift,omitempty"`
	UnitCode     string          `json:"unit_code,omitempty"`
	SectionTrack string          `json:"section_track,omitempty"`
	Problem      string          `json:"problem,omitempty"`
	ValidatedBy  string          `json:"validated_by,omitempty"`
	ValidatedAt  string          `json:"validated_at,omitempty"`
	Entries      []ActivityEntry `json:"entries,omitempty"`
}

// ActivityEntry is one repeated sub-record of an activity report.
type ActivityEntry struct {
	Index      int    `json:"index"`
	Component  string `json:"component"`
	Activities string `json:"activities"`
	SC         int    `json:"sc"`
	USC        int    `json:"usc"`
	ACD        int    `json:"acd"`
}

type Person struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type Notification struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	Message          string `json:"message"`
	IsRead           bool   `json:"is_read"`
	CreatedAt        string `json:"created_at"`
	NotificationType string `json:"notification_type"`
}

type Inbox struct {
	UnreadCount   int            `json:"unread_count"`
	Notifications []Notification `json:"notifications"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// RejectedError is an application-level refusal: the server answered with
// success set to false. Message is the server's text, possibly empty.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "request rejected"
	}
	return "request rejected: " + e.Message
}

// Text returns the server message, or fallback when the server sent none.
func (e *RejectedError) Text(fallback string) string {
	if e.Message == "" {
		return fallback
	}
	return e.Message
}
