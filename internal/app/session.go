// Package app wires one page session: it resolves the page context, builds
// the handlers of the session's role and owns their shared resources.
package app

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sort"
	"sync"

	"go.uber.org/zap"

	"shiftdesk/internal/admin"
	"shiftdesk/internal/clock"
	"shiftdesk/internal/config"
	"shiftdesk/internal/dialog"
	"shiftdesk/internal/domain"
	"shiftdesk/internal/feedback"
	"shiftdesk/internal/foreman"
	"shiftdesk/internal/logging"
	"shiftdesk/internal/review"
	"shiftdesk/internal/transport"
	shiftdesksdk "shiftdesk/sdk/go"
)

// Overview is what the page shows outside any dialog and what a refresh
// reloads.
type Overview struct {
	Pending map[string]int              `json:"pending,omitempty"`
	Totals  map[domain.ReportStatus]int `json:"totals,omitempty"`
	Unread  int                         `json:"unread"`
}

type Options struct {
	Config     *config.Config
	Clock      clock.Clock
	Logger     *zap.Logger
	HTTPClient *http.Client
	// API replaces the client built from the config, mostly for tests.
	API *shiftdesksdk.Client
}

type Session struct {
	ctx    PageContext
	cfg    *config.Config
	clock  clock.Clock
	logger *zap.Logger
	api    *shiftdesksdk.Client

	Feedback *feedback.Channel
	Profile  *dialog.Dialog
	Settings *dialog.Dialog

	Foreman *foreman.Handlers
	Review  *review.Engine
	Admin   *admin.Handlers

	mu       sync.Mutex
	overview Overview
	closed   bool
}

type initializer func(s *Session)

// initializers maps each role onto the handlers its page carries.
var initializers = map[domain.Role]initializer{
	domain.RoleForeman: initForeman,
	domain.RoleLeader:  initLeader,
	domain.RoleAdmin:   initAdmin,
}

// NewSession builds the session for pc. The role decides which handlers
// exist; an unknown role is an error.
func NewSession(pc PageContext, opts Options) (*Session, error) {
	setup, ok := initializers[pc.Role]
	if !ok {
		return nil, fmt.Errorf("unknown role %q", pc.Role)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	logger := logging.OrNop(opts.Logger).With(zap.String("role", string(pc.Role)), zap.String("user_id", pc.User.ID))
	api := opts.API
	if api == nil {
		api = shiftdesksdk.New(transport.Options{
			BaseURL:    cfg.Server.BaseURL,
			CSRFToken:  pc.CSRFToken,
			ActorID:    pc.User.ID,
			HTTPClient: opts.HTTPClient,
			Logger:     logger,
		})
	}
	s := &Session{
		ctx:    pc,
		cfg:    cfg,
		clock:  clk,
		logger: logger,
		api:    api,
		Feedback: feedback.New(feedback.Options{
			Clock:      clk,
			SuccessTTL: cfg.Timing.SuccessTTL,
			ErrorTTL:   cfg.Timing.ErrorTTL,
			Logger:     logger,
		}),
		Profile:  dialog.New("modal-profile"),
		Settings: dialog.New("modal-settings"),
	}
	setup(s)
	logger.Debug("session ready")
	return s, nil
}

func initForeman(s *Session) {
	s.Foreman = foreman.New(foreman.Options{
		API:      s.api,
		Notifier: s.Feedback,
		Clock:    s.clock,
		Config:   s.cfg,
		Logger:   s.logger,
		Refresh:  s.Refresh,
	})
}

func initLeader(s *Session) {
	s.Review = review.New(review.Options{
		API:      s.api,
		Notifier: s.Feedback,
		Clock:    s.clock,
		Config:   s.cfg,
		Logger:   s.logger,
		Refresh:  s.Refresh,
	})
}

func initAdmin(s *Session) {
	s.Admin = admin.New(admin.Options{
		API:      s.api,
		Notifier: s.Feedback,
		Clock:    s.clock,
		Config:   s.cfg,
		Logger:   s.logger,
		Refresh:  s.Refresh,
	})
}

func (s *Session) Context() PageContext      { return s.ctx }
func (s *Session) Config() *config.Config    { return s.cfg }
func (s *Session) API() *shiftdesksdk.Client { return s.api }
func (s *Session) Logger() *zap.Logger       { return s.logger }

// Dispatch runs one handler. A panic inside fn is logged, surfaces as the
// unexpected-error notification and comes back as an error, so one workflow
// cannot take the others down.
func (s *Session) Dispatch(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panicked",
				zap.String("handler", name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			s.Feedback.Error(s.cfg.Messages.Unexpected)
			err = fmt.Errorf("%s: panic: %v", name, r)
		}
	}()
	if err := fn(); err != nil {
		s.logger.Debug("handler failed", zap.String("handler", name), zap.Error(err))
		return err
	}
	return nil
}

// Refresh reloads the overview of the page: pending counts per foreman for a
// leader, totals per status for an admin, the inbox badge for a foreman.
func (s *Session) Refresh(ctx context.Context) error {
	var ov Overview
	switch s.ctx.Role {
	case domain.RoleLeader:
		ov.Pending = map[string]int{}
		for _, p := range s.ctx.Foremen() {
			reports, err := s.api.ListReports(ctx, shiftdesksdk.Filter{ForemanID: p.ID, Status: domain.StatusPending})
			if err != nil {
				return fmt.Errorf("pending reports of %s: %w", p.ID, err)
			}
			ov.Pending[p.ID] = len(reports)
		}
	case domain.RoleAdmin:
		reports, err := s.api.ListReports(ctx, shiftdesksdk.Filter{})
		if err != nil {
			return fmt.Errorf("list reports: %w", err)
		}
		ov.Totals = map[domain.ReportStatus]int{}
		for _, r := range reports {
			ov.Totals[r.Status]++
		}
	case domain.RoleForeman:
		inbox, err := s.api.Inbox(ctx)
		if err != nil {
			return fmt.Errorf("inbox: %w", err)
		}
		ov.Unread = inbox.UnreadCount
	}
	s.mu.Lock()
	s.overview = ov
	s.mu.Unlock()
	s.logger.Debug("overview refreshed")
	return nil
}

// Overview returns the last refreshed overview.
func (s *Session) Overview() Overview {
	s.mu.Lock()
	defer s.mu.Unlock()
	ov := Overview{Unread: s.overview.Unread}
	if s.overview.Pending != nil {
		ov.Pending = make(map[string]int, len(s.overview.Pending))
		for k, v := range s.overview.Pending {
			ov.Pending[k] = v
		}
	}
	if s.overview.Totals != nil {
		ov.Totals = make(map[domain.ReportStatus]int, len(s.overview.Totals))
		for k, v := range s.overview.Totals {
			ov.Totals[k] = v
		}
	}
	return ov
}

// PendingForemen lists foremen with pending reports, sorted by id.
func (s *Session) PendingForemen() []string {
	ov := s.Overview()
	out := make([]string, 0, len(ov.Pending))
	for id, n := range ov.Pending {
		if n > 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// ProfileView is the content of the profile dialog.
type ProfileView struct {
	User    domain.Person `json:"user"`
	Role    domain.Role   `json:"role"`
	Foremen int           `json:"foremen,omitempty"`
}

// SettingsView is the content of the settings dialog.
type SettingsView struct {
	BaseURL       string `json:"base_url"`
	SuccessTTL    string `json:"success_ttl"`
	ErrorTTL      string `json:"error_ttl"`
	RefreshDelay  string `json:"refresh_delay"`
	PreviewLength int    `json:"preview_length"`
}

// ShowProfile opens the profile dialog and returns what it displays. The
// settings dialog is closed first; only one of the two is shown at a time.
func (s *Session) ShowProfile() ProfileView {
	s.Settings.Close()
	s.Profile.Open()
	v := ProfileView{User: s.ctx.User, Role: s.ctx.Role}
	if s.ctx.Role == domain.RoleLeader {
		v.Foremen = len(s.ctx.Foremen())
	}
	return v
}

// ShowSettings opens the settings dialog and returns what it displays.
func (s *Session) ShowSettings() SettingsView {
	s.Profile.Close()
	s.Settings.Open()
	return SettingsView{
		BaseURL:       s.cfg.Server.BaseURL,
		SuccessTTL:    s.cfg.Timing.SuccessTTL.String(),
		ErrorTTL:      s.cfg.Timing.ErrorTTL.String(),
		RefreshDelay:  s.cfg.Timing.RefreshDelay.String(),
		PreviewLength: s.cfg.PreviewLength,
	}
}

// Close stops every timer the session owns. It is safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.Profile.Close()
	s.Settings.Close()
	if s.Foreman != nil {
		s.Foreman.Close()
	}
	if s.Review != nil {
		s.Review.Close()
	}
	if s.Admin != nil {
		s.Admin.Close()
	}
	s.Feedback.Close()
}
