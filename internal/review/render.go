package review

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const ellipsis = "…"

// Preview cuts s to at most n code points and appends an ellipsis when
// anything was cut.
func Preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + ellipsis
}

var listingTmpl = template.Must(template.New("listing").Parse(
	`{{range .Rows}}<tr>` +
		`<td>{{.Date}}</td>` +
		`<td>{{.TypeLabel}}</td>` +
		`<td>{{.Title}}</td>` +
		`<td><span class="status-badge status-{{.Status}}">{{.StatusDisplay}}</span></td>` +
		`<td><button class="btn btn-primary validate-btn" data-report-id="{{.ID}}">{{$.ValidateLabel}}</button></td>` +
		`</tr>{{end}}`))

var summaryTmpl = template.Must(template.New("summary").Parse(
	`<div class="p-3 rounded border">` +
		`<div class="mb-1"><strong>{{.S.TypeLabel}}</strong> · {{.S.Title}}</div>` +
		`<div class="text-sm text-gray-700">{{.DateLabel}}: {{.S.Date}} · {{.ForemanLabel}}: {{.S.Foreman}}</div>` +
		`<div class="text-sm mt-1">{{.S.Preview}}</div>` +
		`</div>`))

// ListingHTML renders the listing table body. Every interpolated value is
// escaped.
func (e *Engine) ListingHTML() (string, error) {
	var buf bytes.Buffer
	err := listingTmpl.Execute(&buf, struct {
		Rows          []Row
		ValidateLabel string
	}{e.Rows(), e.cfg.Labels.Validate})
	if err != nil {
		return "", fmt.Errorf("render listing: %w", err)
	}
	return buf.String(), nil
}

// SummaryHTML renders the decision dialog header.
func (e *Engine) SummaryHTML() (string, error) {
	s, ok := e.Summary()
	if !ok {
		return "", ErrNoReport
	}
	var buf bytes.Buffer
	err := summaryTmpl.Execute(&buf, struct {
		S            Summary
		DateLabel    string
		ForemanLabel string
	}{s, e.cfg.Labels.Date, e.cfg.Labels.Foreman})
	if err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return buf.String(), nil
}

// ListingTable renders the listing for a terminal.
func (e *Engine) ListingTable() string {
	tw := table.NewWriter()
	if t, ok := e.Target(); ok && t.ForemanName != "" {
		tw.SetTitle(t.ForemanName)
	}
	tw.AppendHeader(table.Row{"ID", e.cfg.Labels.Date, "Type", "Title", "Status"})
	for _, r := range e.Rows() {
		tw.AppendRow(table.Row{r.ID, r.Date, r.TypeLabel, r.Title, r.StatusDisplay})
	}
	return tw.Render()
}

// SummaryText renders the decision dialog header for a terminal.
func (e *Engine) SummaryText() string {
	s, ok := e.Summary()
	if !ok {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s · %s\n", text.Bold.Sprint(s.TypeLabel), s.Title)
	fmt.Fprintf(&b, "%s: %s · %s: %s\n", e.cfg.Labels.Date, s.Date, e.cfg.Labels.Foreman, s.Foreman)
	if s.Preview != "" {
		b.WriteString(text.WrapSoft(s.Preview, 72))
		b.WriteString("\n")
	}
	return b.String()
}
