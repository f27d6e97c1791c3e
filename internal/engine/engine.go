// Package engine is the report service behind the reference backend. It owns
// every write: submissions, reviewer decisions, clearing and inbox state.
package engine

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"shiftdesk/internal/config"
	"shiftdesk/internal/domain"
	"shiftdesk/internal/events"
	"shiftdesk/internal/repo"
)

var (
	ErrAlreadyValidated = errors.New("report already validated")
	ErrForbidden        = errors.New("reviewers cannot validate their own reports")
)

// ValidationError is a rejected input; Field names the offending form field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) audit() events.Writer {
	return events.Writer{Now: e.now}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) config() *config.Config {
	if e.Config == nil {
		return config.Default()
	}
	return e.Config
}

// ActivityInput is a decoded activity form.
type ActivityInput struct {
	Foreman  domain.Person
	Date     string
	Shift    string
	UnitCode string
	Entries  []domain.ActivityEntry
}

// AnalysisInput is a decoded analysis form.
type AnalysisInput struct {
	Foreman      domain.Person
	SectionTrack string
	Date         string
	UnitCode     string
	Problem      string
	Title        string
	Details      string
}

func checkDate(v string) error {
	if strings.TrimSpace(v) == "" {
		return invalid("date", "is required")
	}
	if _, err := time.Parse("2006-01-02", v); err != nil {
		return invalid("date", "must be YYYY-MM-DD")
	}
	return nil
}

// SubmitActivity stores a pending activity report with its entries.
func (e Engine) SubmitActivity(ctx context.Context, in ActivityInput) (domain.Report, error) {
	if err := checkDate(in.Date); err != nil {
		return domain.Report{}, err
	}
	if len(in.Entries) == 0 {
		return domain.Report{}, invalid("", "at least one activity entry is required")
	}
	cfg := e.config()
	for _, en := range in.Entries {
		if !cfg.HasComponent(en.Component) {
			return domain.Report{}, invalid(fmt.Sprintf("component_%d", en.Index), fmt.Sprintf("unknown component %q", en.Component))
		}
		if strings.TrimSpace(en.Activities) == "" {
			return domain.Report{}, invalid(fmt.Sprintf("activities_%d", en.Index), "is required")
		}
	}
	rp := domain.Report{
		Type:      domain.ReportActivity,
		Date:      in.Date,
		Title:     activityTitle(in),
		Details:   activitySummary(in.Entries),
		Shift:     in.Shift,
		UnitCode:  in.UnitCode,
		Status:    domain.StatusPending,
		ForemanID: in.Foreman.ID,
		Foreman:   in.Foreman.Name,
		Entries:   in.Entries,
	}
	return e.insert(ctx, rp)
}

func activityTitle(in ActivityInput) string {
	title := "Activity Report " + in.Date
	if in.Shift != "" {
		title += " (Shift " + in.Shift + ")"
	}
	return title
}

func activitySummary(entries []domain.ActivityEntry) string {
	lines := make([]string, 0, len(entries))
	for _, en := range entries {
		lines = append(lines, fmt.Sprintf("%s: %s (SC %d, USC %d, ACD %d)", en.Component, en.Activities, en.SC, en.USC, en.ACD))
	}
	return strings.Join(lines, "\n")
}

// SubmitAnalysis stores a pending analysis report for one section track.
func (e Engine) SubmitAnalysis(ctx context.Context, in AnalysisInput) (domain.Report, error) {
	if !e.config().HasTrack(in.SectionTrack) {
		return domain.Report{}, invalid("section_track_input", fmt.Sprintf("unknown section track %q", in.SectionTrack))
	}
	if err := checkDate(in.Date); err != nil {
		return domain.Report{}, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return domain.Report{}, invalid("title", "is required")
	}
	rp := domain.Report{
		Type:         domain.ReportAnalysis,
		Date:         in.Date,
		Title:        strings.TrimSpace(in.Title),
		Details:      in.Details,
		UnitCode:     in.UnitCode,
		SectionTrack: in.SectionTrack,
		Problem:      in.Problem,
		Status:       domain.StatusPending,
		ForemanID:    in.Foreman.ID,
		Foreman:      in.Foreman.Name,
	}
	return e.insert(ctx, rp)
}

func (e Engine) insert(ctx context.Context, rp domain.Report) (domain.Report, error) {
	if rp.ForemanID == "" {
		return rp, invalid("", "foreman is required")
	}
	rp.CreatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return rp, err
	}
	defer tx.Rollback()
	id, err := e.Repo.InsertReportTx(ctx, tx, rp)
	if err != nil {
		return rp, fmt.Errorf("insert report: %w", err)
	}
	rp.ID = domain.ReportID(strconv.FormatInt(id, 10))
	rp.StatusDisplay = rp.Status.Display()
	if err := e.audit().Append(ctx, tx, events.Record{
		Type:       events.ReportSubmitted,
		EntityKind: events.KindReport,
		EntityID:   rp.ID.String(),
		ActorID:    rp.ForemanID,
		Payload:    map[string]any{"type": rp.Type, "date": rp.Date, "entries": len(rp.Entries)},
	}); err != nil {
		return rp, err
	}
	if err := tx.Commit(); err != nil {
		return rp, err
	}
	return rp, nil
}

// ValidateReport records a reviewer decision and notifies the foreman.
func (e Engine) ValidateReport(ctx context.Context, id int64, action domain.Action, feedback string, reviewer domain.Person) (domain.Report, error) {
	if !action.Valid() {
		return domain.Report{}, invalid("action", fmt.Sprintf("must be approve or reject (got %q)", action))
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Report{}, err
	}
	defer tx.Rollback()
	rp, err := e.Repo.GetReportTx(ctx, tx, id)
	if err != nil {
		return rp, err
	}
	if rp.ForemanID == reviewer.ID {
		return rp, ErrForbidden
	}
	next := action.Outcome()
	if err := ensureReportTransition(rp.Status, next); err != nil {
		return rp, err
	}
	at := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateValidationTx(ctx, tx, id, next, feedback, reviewer.ID, at); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return rp, ErrAlreadyValidated
		}
		return rp, err
	}
	title, message := decisionNotice(rp, next, feedback, reviewer)
	if _, err := e.Repo.InsertNotificationTx(ctx, tx, repo.NewNotification{
		RecipientID: rp.ForemanID,
		ReportID:    id,
		Type:        "report_" + string(next),
		Title:       title,
		Message:     message,
		CreatedAt:   at,
	}); err != nil {
		return rp, fmt.Errorf("insert notification: %w", err)
	}
	if err := e.audit().Append(ctx, tx, events.Record{
		Type:       events.ReportValidated,
		EntityKind: events.KindReport,
		EntityID:   rp.ID.String(),
		ActorID:    reviewer.ID,
		Payload:    map[string]any{"from": rp.Status, "to": next, "feedback": feedback},
	}); err != nil {
		return rp, err
	}
	if err := tx.Commit(); err != nil {
		return rp, err
	}
	rp.Status = next
	rp.StatusDisplay = next.Display()
	rp.Feedback = feedback
	rp.ValidatedBy = reviewer.ID
	rp.ValidatedAt = at
	return rp, nil
}

func decisionNotice(rp domain.Report, status domain.ReportStatus, feedback string, reviewer domain.Person) (string, string) {
	title := fmt.Sprintf("Report %s", strings.ToLower(status.Display()))
	by := reviewer.Name
	if by == "" {
		by = reviewer.ID
	}
	msg := fmt.Sprintf("%q (%s) was %s by %s.", rp.Title, rp.Date, status, by)
	if feedback != "" {
		msg += " Feedback: " + feedback
	}
	return title, msg
}

// ensureReportTransition allows a decision only on a pending report.
func ensureReportTransition(from, to domain.ReportStatus) error {
	switch from {
	case domain.StatusPending:
		if to == domain.StatusApproved || to == domain.StatusRejected {
			return nil
		}
	case domain.StatusApproved, domain.StatusRejected:
		return ErrAlreadyValidated
	}
	return fmt.Errorf("invalid report transition %s -> %s", from, to)
}

// ClearReports deletes every report; entries and notification links follow
// through the schema.
func (e Engine) ClearReports(ctx context.Context, actorID string) (int64, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	n, err := e.Repo.DeleteReportsTx(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("delete reports: %w", err)
	}
	rec := events.Record{Type: events.ReportsCleared, EntityKind: events.KindReport, ActorID: actorID, Payload: map[string]any{"deleted": n}}
	if err := e.audit().Append(ctx, tx, rec); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// ExportHeader is the column row of the CSV export.
var ExportHeader = []string{"ID", "Date", "Type", "Foreman", "Title", "Status", "Unit", "Shift", "Section Track", "Feedback", "Created At"}

// ExportCSV writes every report as CSV, newest first.
func (e Engine) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	reports, err := e.Repo.ListReports(ctx, repo.ReportFilters{})
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return 0, err
	}
	for _, rp := range reports {
		if err := cw.Write([]string{
			rp.ID.String(), rp.Date, string(rp.Type), rp.Foreman, rp.Title, rp.StatusDisplay,
			rp.UnitCode, rp.Shift, rp.SectionTrack, rp.Feedback, rp.CreatedAt,
		}); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return len(reports), cw.Error()
}

// Inbox returns the unread count and the latest notifications of recipientID.
func (e Engine) Inbox(ctx context.Context, recipientID string, limit int) (domain.Inbox, error) {
	unread, err := e.Repo.CountUnread(ctx, recipientID)
	if err != nil {
		return domain.Inbox{}, err
	}
	list, err := e.Repo.ListNotifications(ctx, recipientID, limit)
	if err != nil {
		return domain.Inbox{}, err
	}
	return domain.Inbox{UnreadCount: unread, Notifications: list}, nil
}

// MarkRead flags a notification read and returns the remaining unread count.
func (e Engine) MarkRead(ctx context.Context, id int64, recipientID string) (int, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	if err := e.Repo.MarkReadTx(ctx, tx, id, recipientID); err != nil {
		return 0, err
	}
	rec := events.Record{Type: events.NotificationRead, EntityKind: events.KindNotification, EntityID: strconv.FormatInt(id, 10), ActorID: recipientID}
	if err := e.audit().Append(ctx, tx, rec); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return e.Repo.CountUnread(ctx, recipientID)
}
