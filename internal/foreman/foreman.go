// Package foreman implements the foreman page: the activity report dialog with
// its repeated entries, the analysis dialog with its section track step, and
// the notification dropdown.
package foreman

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"shiftdesk/internal/clock"
	"shiftdesk/internal/config"
	"shiftdesk/internal/dialog"
	"shiftdesk/internal/domain"
	"shiftdesk/internal/editor"
	"shiftdesk/internal/logging"
	"shiftdesk/internal/workflow"
	shiftdesksdk "shiftdesk/sdk/go"
)

var ErrInvalidForm = errors.New("form is incomplete")

type API interface {
	SubmitActivity(ctx context.Context, d shiftdesksdk.ActivityDraft) error
	SubmitAnalysis(ctx context.Context, d shiftdesksdk.AnalysisDraft) error
	Inbox(ctx context.Context) (domain.Inbox, error)
	MarkRead(ctx context.Context, id int64) (int, error)
}

// ActivityHeader holds the non-repeated fields of the activity form.
type ActivityHeader struct {
	Date     string
	Shift    string
	UnitCode string
}

// AnalysisForm holds the analysis fields shown once a track is chosen.
type AnalysisForm struct {
	Date     string
	UnitCode string
	Problem  string
	Title    string
	Details  string
}

type Options struct {
	API      API
	Notifier workflow.Notifier
	Clock    clock.Clock
	Config   *config.Config
	Logger   *zap.Logger
	Refresh  workflow.Refresher
}

type Handlers struct {
	api    API
	notify workflow.Notifier
	clock  clock.Clock
	cfg    *config.Config
	logger *zap.Logger
	reload *workflow.Scheduler

	activity *dialog.Dialog
	analysis *dialog.TrackDialog
	inboxDD  *dialog.Dropdown
	entries  *editor.Editor

	mu       sync.Mutex
	header   ActivityHeader
	form     AnalysisForm
	inbox    domain.Inbox
	inboxSet bool
}

func New(opts Options) *Handlers {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	logger := logging.OrNop(opts.Logger).Named("foreman")
	h := &Handlers{
		api:      opts.API,
		notify:   opts.Notifier,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
		reload:   workflow.NewScheduler(clk, cfg.Timing.RefreshDelay, opts.Refresh, logger),
		activity: dialog.New("modal-activity"),
		analysis: dialog.NewTrack("modal-analysis"),
		inboxDD:  dialog.NewDropdown(nil),
		entries:  editor.New(cfg.HasComponent),
	}
	return h
}

func (h *Handlers) ActivityDialog() *dialog.Dialog      { return h.activity }
func (h *Handlers) AnalysisDialog() *dialog.TrackDialog { return h.analysis }
func (h *Handlers) InboxDropdown() *dialog.Dropdown     { return h.inboxDD }

// Entries is the repeated-entry editor of the activity form.
func (h *Handlers) Entries() *editor.Editor { return h.entries }

// OpenActivity defaults the date to today and shows the activity dialog.
func (h *Handlers) OpenActivity() {
	h.mu.Lock()
	h.header.Date = h.today()
	h.mu.Unlock()
	h.activity.Open()
}

func (h *Handlers) today() string {
	return h.clock.Now().UTC().Format("2006-01-02")
}

func (h *Handlers) SetActivityHeader(hdr ActivityHeader) {
	h.mu.Lock()
	h.header = hdr
	h.mu.Unlock()
}

func (h *Handlers) ActivityHeader() ActivityHeader {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.header
}

// SubmitActivity posts the activity form. Incomplete forms are refused
// locally and nothing is sent.
func (h *Handlers) SubmitActivity(ctx context.Context) error {
	hdr := h.ActivityHeader()
	if strings.TrimSpace(hdr.Date) == "" {
		return fmt.Errorf("date is required: %w", ErrInvalidForm)
	}
	if err := h.entries.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidForm)
	}
	draft := shiftdesksdk.ActivityDraft{
		Date:     hdr.Date,
		Shift:    hdr.Shift,
		UnitCode: hdr.UnitCode,
		Entries:  h.entries.Entries(),
	}
	if err := h.api.SubmitActivity(ctx, draft); err != nil {
		h.logger.Warn("activity submit failed", zap.Error(err))
		workflow.Failure(h.notify, err, h.cfg.Messages.SaveFailed, h.cfg.Messages.SaveError)
		return fmt.Errorf("submit activity: %w", err)
	}
	h.activity.Close()
	h.mu.Lock()
	h.header = ActivityHeader{}
	h.mu.Unlock()
	h.entries.Reset()
	h.notify.Success(h.cfg.Messages.ActivitySaved)
	h.logger.Info("activity report submitted", zap.String("date", draft.Date), zap.Int("entries", len(draft.Entries)))
	h.reload.Schedule()
	return nil
}

// OpenAnalysis shows the analysis dialog on its track selection pane with
// the date defaulted to today.
func (h *Handlers) OpenAnalysis() {
	h.mu.Lock()
	if h.form.Date == "" {
		h.form.Date = h.today()
	}
	h.mu.Unlock()
	h.analysis.Open()
}

// SelectTrack moves the analysis dialog to its form pane.
func (h *Handlers) SelectTrack(track string) error {
	if !h.cfg.HasTrack(track) {
		return fmt.Errorf("unknown section track %q", track)
	}
	return h.analysis.SelectTrack(track)
}

// BackToSelection returns the analysis dialog to its track list.
func (h *Handlers) BackToSelection() {
	h.analysis.Back()
}

func (h *Handlers) SetAnalysis(f AnalysisForm) {
	h.mu.Lock()
	h.form = f
	h.mu.Unlock()
}

func (h *Handlers) Analysis() AnalysisForm {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.form
}

// SubmitAnalysis posts the analysis form for the chosen track.
func (h *Handlers) SubmitAnalysis(ctx context.Context) error {
	if h.analysis.Pane() != dialog.Filling || h.analysis.Track() == "" {
		return fmt.Errorf("no section track selected: %w", ErrInvalidForm)
	}
	f := h.Analysis()
	if strings.TrimSpace(f.Date) == "" || strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("date and title are required: %w", ErrInvalidForm)
	}
	draft := shiftdesksdk.AnalysisDraft{
		SectionTrack: h.analysis.Track(),
		Date:         f.Date,
		UnitCode:     f.UnitCode,
		Problem:      f.Problem,
		Title:        f.Title,
		Details:      f.Details,
	}
	if err := h.api.SubmitAnalysis(ctx, draft); err != nil {
		h.logger.Warn("analysis submit failed", zap.String("track", draft.SectionTrack), zap.Error(err))
		workflow.Failure(h.notify, err, h.cfg.Messages.SaveFailed, h.cfg.Messages.SaveError)
		return fmt.Errorf("submit analysis: %w", err)
	}
	h.analysis.Close()
	h.mu.Lock()
	h.form = AnalysisForm{}
	h.mu.Unlock()
	h.analysis.Reset()
	h.notify.Success(h.cfg.Messages.AnalysisSaved)
	h.logger.Info("analysis report submitted", zap.String("track", draft.SectionTrack))
	h.reload.Schedule()
	return nil
}

// ToggleInbox flips the dropdown and loads the notifications when it opens.
func (h *Handlers) ToggleInbox(ctx context.Context) (bool, error) {
	if !h.inboxDD.Toggle() {
		return false, nil
	}
	_, err := h.LoadInbox(ctx)
	return true, err
}

// LoadInbox fetches the unread count and latest notifications.
func (h *Handlers) LoadInbox(ctx context.Context) (domain.Inbox, error) {
	inbox, err := h.api.Inbox(ctx)
	if err != nil {
		h.logger.Warn("inbox load failed", zap.Error(err))
		h.notify.Error(h.cfg.Messages.InboxError)
		return inbox, fmt.Errorf("load inbox: %w", err)
	}
	h.mu.Lock()
	h.inbox = inbox
	h.inboxSet = true
	h.mu.Unlock()
	return inbox, nil
}

// MarkRead marks one notification read and updates the badge.
func (h *Handlers) MarkRead(ctx context.Context, id int64) error {
	unread, err := h.api.MarkRead(ctx, id)
	if err != nil {
		h.logger.Warn("mark read failed", zap.Int64("notification_id", id), zap.Error(err))
		workflow.Failure(h.notify, err, h.cfg.Messages.InboxError, h.cfg.Messages.InboxError)
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	h.mu.Lock()
	h.inbox.UnreadCount = unread
	for i := range h.inbox.Notifications {
		if h.inbox.Notifications[i].ID == id {
			h.inbox.Notifications[i].IsRead = true
		}
	}
	h.mu.Unlock()
	return nil
}

// Inbox returns the last loaded notifications.
func (h *Handlers) Inbox() (domain.Inbox, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inbox, h.inboxSet
}

// Close stops scheduled refreshes.
func (h *Handlers) Close() {
	h.reload.Stop()
}
