package shiftdesksdk

import (
	"context"
	"fmt"
	"net/url"

	"shiftdesk/internal/domain"
	"shiftdesk/internal/transport"
	"shiftdesk/internal/wire"
)

// Transport is the subset of transport.Client the SDK needs.
type Transport interface {
	Post(ctx context.Context, endpoint string, data map[string]any) (transport.Response, error)
	Get(ctx context.Context, endpoint string, params map[string]string) (transport.Response, error)
	Download(ctx context.Context, endpoint string) ([]byte, string, error)
}

// Client is a typed client for the shift report API.
type Client struct {
	t Transport
}

// New creates a client over a fresh transport.
func New(opts transport.Options) *Client {
	return &Client{t: transport.New(opts)}
}

// NewWithTransport wraps an existing transport.
func NewWithTransport(t Transport) *Client {
	return &Client{t: t}
}

// Filter narrows the report listing. Empty fields are omitted.
type Filter struct {
	ForemanID string
	Type      domain.ReportType
	Status    domain.ReportStatus
}

func (f Filter) params() map[string]string {
	out := map[string]string{}
	if f.ForemanID != "" {
		out["foreman_id"] = f.ForemanID
	}
	if f.Type != "" {
		out["type"] = string(f.Type)
	}
	if f.Status != "" {
		out["status"] = string(f.Status)
	}
	return out
}

// ActivityDraft is an activity report ready to submit.
type ActivityDraft struct {
	Date     string
	Shift    string
	UnitCode string
	Entries  []domain.ActivityEntry
}

func (d ActivityDraft) Fields() map[string]any {
	out := map[string]any{wire.FieldDate: d.Date}
	if d.Shift != "" {
		out[wire.FieldShift] = d.Shift
	}
	if d.UnitCode != "" {
		out[wire.FieldUnitCode] = d.UnitCode
	}
	for _, e := range d.Entries {
		for k, v := range wire.EntryFields(e) {
			out[k] = v
		}
	}
	return out
}

// AnalysisDraft is an analysis report for one section track.
type AnalysisDraft struct {
	SectionTrack string
	Date         string
	UnitCode     string
	Problem      string
	Title        string
	Details      string
}

func (d AnalysisDraft) Fields() map[string]any {
	return map[string]any{
		wire.FieldSectionTrack: d.SectionTrack,
		wire.FieldDate:         d.Date,
		wire.FieldUnitCode:     d.UnitCode,
		wire.FieldProblem:      d.Problem,
		wire.FieldTitle:        d.Title,
		wire.FieldDetails:      d.Details,
	}
}

// ListReports returns the reports matching f.
func (c *Client) ListReports(ctx context.Context, f Filter) ([]domain.Report, error) {
	resp, err := c.t.Get(ctx, "/api/reports/", f.params())
	if err != nil {
		return nil, err
	}
	if err := rejection(resp); err != nil {
		return nil, err
	}
	var out struct {
		Reports []domain.Report `json:"reports"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode report list: %w", err)
	}
	return out.Reports, nil
}

// GetReport fetches one report including its details.
func (c *Client) GetReport(ctx context.Context, id domain.ReportID) (domain.Report, error) {
	var rep domain.Report
	resp, err := c.t.Get(ctx, reportPath(id, ""), nil)
	if err != nil {
		return rep, err
	}
	if err := rejection(resp); err != nil {
		return rep, err
	}
	if err := resp.Decode(&rep); err != nil {
		return rep, fmt.Errorf("decode report %s: %w", id, err)
	}
	return rep, nil
}

// Validate records a reviewer decision.
func (c *Client) Validate(ctx context.Context, id domain.ReportID, action domain.Action, feedback string) error {
	resp, err := c.t.Post(ctx, reportPath(id, "validate/"), map[string]any{
		wire.FieldAction:   string(action),
		wire.FieldFeedback: feedback,
	})
	if err != nil {
		return err
	}
	return outcome(resp)
}

// SubmitActivity posts an activity report.
func (c *Client) SubmitActivity(ctx context.Context, d ActivityDraft) error {
	return c.submit(ctx, "/api/reports/activity/", d.Fields())
}

// SubmitAnalysis posts an analysis report.
func (c *Client) SubmitAnalysis(ctx context.Context, d AnalysisDraft) error {
	return c.submit(ctx, "/api/reports/analysis/", d.Fields())
}

// submit posts already collected form fields to endpoint.
func (c *Client) submit(ctx context.Context, endpoint string, fields map[string]any) error {
	resp, err := c.t.Post(ctx, endpoint, fields)
	if err != nil {
		return err
	}
	return outcome(resp)
}

// Inbox returns the unread count and latest notifications.
func (c *Client) Inbox(ctx context.Context) (domain.Inbox, error) {
	var inbox domain.Inbox
	resp, err := c.t.Get(ctx, "/api/notifications/", nil)
	if err != nil {
		return inbox, err
	}
	if err := rejection(resp); err != nil {
		return inbox, err
	}
	if err := resp.Decode(&inbox); err != nil {
		return inbox, fmt.Errorf("decode notifications: %w", err)
	}
	return inbox, nil
}

// MarkRead marks a notification read and returns the new unread count.
func (c *Client) MarkRead(ctx context.Context, id int64) (int, error) {
	resp, err := c.t.Post(ctx, fmt.Sprintf("/api/notifications/%d/read/", id), map[string]any{})
	if err != nil {
		return 0, err
	}
	if err := outcome(resp); err != nil {
		return 0, err
	}
	var out struct {
		UnreadCount int `json:"unread_count"`
	}
	_ = resp.Decode(&out)
	return out.UnreadCount, nil
}

// ExportCSV downloads every report as CSV.
func (c *Client) ExportCSV(ctx context.Context) ([]byte, error) {
	data, _, err := c.t.Download(ctx, "/api/reports/export/csv/")
	return data, err
}

// ClearAll deletes every report.
func (c *Client) ClearAll(ctx context.Context) error {
	return c.submit(ctx, "/api/reports/clear/", map[string]any{})
}

func reportPath(id domain.ReportID, suffix string) string {
	return fmt.Sprintf("/api/reports/%s/%s", url.PathEscape(string(id)), suffix)
}

// outcome maps a POST response onto nil or *domain.RejectedError.
func outcome(resp transport.Response) error {
	if resp.Success() {
		return nil
	}
	return &domain.RejectedError{Message: resp.ErrorText()}
}

// rejection only fires for GET bodies that explicitly carry success=false.
func rejection(resp transport.Response) error {
	v, ok := resp.Fields["success"].(bool)
	if ok && !v {
		return &domain.RejectedError{Message: resp.ErrorText()}
	}
	return nil
}
