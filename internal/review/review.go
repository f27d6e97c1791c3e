// Package review drives the leader's report review: list a foreman's pending
// reports, open one for a summary, then approve or reject it.
package review

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"shiftdesk/internal/clock"
	"shiftdesk/internal/config"
	"shiftdesk/internal/dialog"
	"shiftdesk/internal/domain"
	"shiftdesk/internal/logging"
	"shiftdesk/internal/workflow"
	shiftdesksdk "shiftdesk/sdk/go"
)

type State string

const (
	Idle     State = "idle"
	Listing  State = "listing"
	Detail   State = "detail"
	Deciding State = "deciding"
)

var (
	ErrUnboundReport = errors.New("report is not in the current listing")
	ErrNoReport      = errors.New("no report selected")
)

// API is the part of the report API the engine talks to.
type API interface {
	ListReports(ctx context.Context, f shiftdesksdk.Filter) ([]domain.Report, error)
	GetReport(ctx context.Context, id domain.ReportID) (domain.Report, error)
	Validate(ctx context.Context, id domain.ReportID, action domain.Action, feedback string) error
}

// Target identifies the listing a view button asks for.
type Target struct {
	ForemanID   string
	ForemanName string
	Type        domain.ReportType
}

// Row is one rendered listing line. Its ID is what the validate control is
// bound to.
type Row struct {
	ID            domain.ReportID
	Date          string
	TypeLabel     string
	Title         string
	Status        domain.ReportStatus
	StatusDisplay string
}

// Summary is the decision dialog header.
type Summary struct {
	ReportID  domain.ReportID
	TypeLabel string
	Title     string
	Date      string
	Foreman   string
	Preview   string
}

type Options struct {
	API      API
	Notifier workflow.Notifier
	Clock    clock.Clock
	Config   *config.Config
	Logger   *zap.Logger
	// Refresh is the page-level refresher run after the engine reloaded its
	// own listing, typically pending counts and the inbox badge.
	Refresh workflow.Refresher
}

type Engine struct {
	api      API
	notify   workflow.Notifier
	cfg      *config.Config
	logger   *zap.Logger
	onReload workflow.Refresher
	reload   *workflow.Scheduler

	listing  *dialog.Dialog
	decision *dialog.Dialog

	mu       sync.Mutex
	target   *Target
	reloadOf *Target
	rows     []Row
	bound    map[domain.ReportID]bool
	summary  *Summary
	reportID domain.ReportID
	feedback string
	inFlight int
}

func New(opts Options) *Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	e := &Engine{
		api:      opts.API,
		notify:   opts.Notifier,
		cfg:      cfg,
		logger:   logging.OrNop(opts.Logger).Named("review"),
		onReload: opts.Refresh,
		listing:  dialog.New("modal-reports"),
		decision: dialog.New("modal-validate"),
		bound:    map[domain.ReportID]bool{},
	}
	e.reload = workflow.NewScheduler(clk, cfg.Timing.RefreshDelay, e.Refresh, e.logger)
	e.decision.OnClose(e.resetDecision)
	e.listing.OnClose(e.resetListing)
	return e
}

// resetDecision forgets the report and comment of a closed decision dialog.
func (e *Engine) resetDecision() {
	e.mu.Lock()
	e.reportID = ""
	e.summary = nil
	e.feedback = ""
	e.mu.Unlock()
}

// resetListing drops the rendered rows and their bindings.
func (e *Engine) resetListing() {
	e.mu.Lock()
	e.target = nil
	e.rows = nil
	e.bound = map[domain.ReportID]bool{}
	e.mu.Unlock()
}

func (e *Engine) ListingDialog() *dialog.Dialog  { return e.listing }
func (e *Engine) DecisionDialog() *dialog.Dialog { return e.decision }

// State derives the workflow state from the dialogs and in-flight decisions.
func (e *Engine) State() State {
	e.mu.Lock()
	inFlight := e.inFlight
	e.mu.Unlock()
	switch {
	case inFlight > 0:
		return Deciding
	case e.decision.IsOpen():
		return Detail
	case e.listing.IsOpen():
		return Listing
	}
	return Idle
}

func ensureTransition(from, to State) error {
	switch from {
	case Idle:
		if to == Listing {
			return nil
		}
	case Listing:
		if to == Listing || to == Detail {
			return nil
		}
	case Detail:
		if to == Listing || to == Detail || to == Deciding {
			return nil
		}
	case Deciding:
		if to == Detail || to == Deciding || to == Idle {
			return nil
		}
	}
	return fmt.Errorf("invalid review transition %s -> %s", from, to)
}

// ViewReports loads the pending reports of target and opens the listing.
// On failure the dialogs are left as they were.
func (e *Engine) ViewReports(ctx context.Context, target Target) error {
	if err := ensureTransition(e.State(), Listing); err != nil {
		return err
	}
	reports, err := e.api.ListReports(ctx, shiftdesksdk.Filter{
		ForemanID: target.ForemanID,
		Type:      target.Type,
		Status:    domain.StatusPending,
	})
	if err != nil {
		e.logger.Warn("list reports failed", zap.String("foreman_id", target.ForemanID), zap.Error(err))
		e.notify.Error(e.cfg.Messages.ListFailed)
		return fmt.Errorf("list reports: %w", err)
	}
	e.mu.Lock()
	t := target
	e.target = &t
	e.setRowsLocked(reports)
	e.mu.Unlock()
	e.listing.Open()
	return nil
}

// setRowsLocked replaces the rows and drops the bindings of the previous
// render.
func (e *Engine) setRowsLocked(reports []domain.Report) {
	e.rows = make([]Row, 0, len(reports))
	e.bound = make(map[domain.ReportID]bool, len(reports))
	for _, r := range reports {
		e.rows = append(e.rows, Row{
			ID:            r.ID,
			Date:          r.Date,
			TypeLabel:     e.cfg.Labels.TypeLabel(r.Type),
			Title:         r.Title,
			Status:        r.Status,
			StatusDisplay: r.StatusDisplay,
		})
		e.bound[r.ID] = true
	}
}

// OpenDetail fetches one report and opens the decision dialog for it. A
// second call while a decision dialog is open overwrites it.
func (e *Engine) OpenDetail(ctx context.Context, id domain.ReportID) error {
	if err := ensureTransition(e.State(), Detail); err != nil {
		return err
	}
	e.mu.Lock()
	bound := e.bound[id]
	e.mu.Unlock()
	if !bound {
		return fmt.Errorf("%s: %w", id, ErrUnboundReport)
	}
	rep, err := e.api.GetReport(ctx, id)
	if err != nil {
		e.logger.Warn("load report failed", zap.String("report_id", id.String()), zap.Error(err))
		e.notify.Error(e.cfg.Messages.DetailFailed)
		return fmt.Errorf("get report %s: %w", id, err)
	}
	e.mu.Lock()
	e.reportID = id
	e.summary = &Summary{
		ReportID:  id,
		TypeLabel: e.cfg.Labels.TypeLabel(rep.Type),
		Title:     rep.Title,
		Date:      rep.Date,
		Foreman:   rep.Foreman,
		Preview:   Preview(rep.Details, e.cfg.PreviewLength),
	}
	e.mu.Unlock()
	e.decision.Open()
	return nil
}

// SetFeedback fills the reviewer comment field.
func (e *Engine) SetFeedback(text string) {
	e.mu.Lock()
	e.feedback = text
	e.mu.Unlock()
}

func (e *Engine) Feedback() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feedback
}

// Decide submits action for the report currently in the decision dialog.
//
// On success both dialogs close, the form is cleared, a success message is
// shown and one refresh is scheduled. A rejection shows the server text (or
// the fallback) and a transport failure shows the generic message; neither
// closes anything.
func (e *Engine) Decide(ctx context.Context, action domain.Action) error {
	if !action.Valid() {
		return fmt.Errorf("unknown action %q", action)
	}
	if err := ensureTransition(e.State(), Deciding); err != nil {
		return err
	}
	e.mu.Lock()
	id := e.reportID
	comment := e.feedback
	if id == "" {
		e.mu.Unlock()
		return ErrNoReport
	}
	e.inFlight++
	e.mu.Unlock()

	err := e.api.Validate(ctx, id, action, comment)

	e.mu.Lock()
	e.inFlight--
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("decision failed", zap.String("report_id", id.String()), zap.Error(err))
		workflow.Failure(e.notify, err, e.cfg.Messages.ValidateFailed, e.cfg.Messages.ValidateError)
		return fmt.Errorf("validate report %s: %w", id, err)
	}

	e.mu.Lock()
	reloadOf := e.target
	e.mu.Unlock()
	e.decision.Close()
	e.listing.Close()
	e.mu.Lock()
	e.reloadOf = reloadOf
	e.mu.Unlock()
	if action == domain.ActionApprove {
		e.notify.Success(e.cfg.Messages.Approved)
	} else {
		e.notify.Success(e.cfg.Messages.Rejected)
	}
	e.logger.Info("report validated", zap.String("report_id", id.String()), zap.String("action", string(action)))
	e.reload.Schedule()
	return nil
}

// Refresh reloads the open listing, or the one a decision just closed,
// without opening anything, then runs the page-level refresher. Rows are only
// re-bound while the listing is open.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	var target *Target
	switch {
	case e.target != nil:
		t := *e.target
		target = &t
	case e.reloadOf != nil:
		t := *e.reloadOf
		target = &t
	}
	e.reloadOf = nil
	e.mu.Unlock()
	if target != nil {
		reports, err := e.api.ListReports(ctx, shiftdesksdk.Filter{
			ForemanID: target.ForemanID,
			Type:      target.Type,
			Status:    domain.StatusPending,
		})
		if err != nil {
			return fmt.Errorf("reload reports: %w", err)
		}
		if e.listing.IsOpen() {
			e.mu.Lock()
			e.setRowsLocked(reports)
			e.mu.Unlock()
		}
	}
	if e.onReload != nil {
		return e.onReload(ctx)
	}
	return nil
}

// Target returns the last requested listing, if any.
func (e *Engine) Target() (Target, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.target == nil {
		return Target{}, false
	}
	return *e.target, true
}

func (e *Engine) Rows() []Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Row(nil), e.rows...)
}

// Summary returns the decision dialog content, if a report was opened.
func (e *Engine) Summary() (Summary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.summary == nil {
		return Summary{}, false
	}
	return *e.summary, true
}

// ReportID is the hidden id field of the decision form.
func (e *Engine) ReportID() domain.ReportID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reportID
}

// Close stops scheduled refreshes.
func (e *Engine) Close() {
	e.reload.Stop()
}
