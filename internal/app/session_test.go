package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shiftdesk/internal/clock"
	"shiftdesk/internal/config"
	"shiftdesk/internal/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.FromYAML([]byte(`
session: {role: leader, user_id: "9", csrf_token: tok}
roster:
  - {id: "9", name: Lead}
  - {id: "12", name: Budi}
  - {id: "13", name: Sari}
`))
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestResolvePageContext(t *testing.T) {
	cfg := testConfig(t)
	pc, err := ResolvePageContext(cfg, Overrides{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if pc.Role != domain.RoleLeader || pc.User.Name != "Lead" || pc.CSRFToken != "tok" {
		t.Fatalf("unexpected context %+v", pc)
	}
	if got := pc.Foremen(); len(got) != 2 || got[0].ID != "12" {
		t.Fatalf("foremen must exclude the user, got %+v", got)
	}
	pc, err = ResolvePageContext(cfg, Overrides{Role: "foreman", UserID: "12", CSRFToken: "other"})
	if err != nil || pc.Role != domain.RoleForeman || pc.User.Name != "Budi" || pc.CSRFToken != "other" {
		t.Fatalf("overrides not applied: %+v %v", pc, err)
	}
	if _, err := ResolvePageContext(cfg, Overrides{UserID: "77"}); err == nil {
		t.Fatalf("user outside the roster must fail")
	}
	if _, err := ResolvePageContext(cfg, Overrides{Role: "guest"}); err == nil {
		t.Fatalf("unknown role must fail")
	}
}

func TestRoleDispatchTable(t *testing.T) {
	cfg := testConfig(t)
	cases := map[domain.Role]func(s *Session) bool{
		domain.RoleForeman: func(s *Session) bool { return s.Foreman != nil && s.Review == nil && s.Admin == nil },
		domain.RoleLeader:  func(s *Session) bool { return s.Review != nil && s.Foreman == nil && s.Admin == nil },
		domain.RoleAdmin:   func(s *Session) bool { return s.Admin != nil && s.Foreman == nil && s.Review == nil },
	}
	for role, check := range cases {
		s, err := NewSession(PageContext{Role: role}, Options{Config: cfg})
		if err != nil {
			t.Fatalf("%s: %v", role, err)
		}
		if !check(s) || s.Profile == nil || s.Settings == nil {
			t.Fatalf("%s: wrong handlers", role)
		}
		s.Close()
		s.Close()
	}
	if _, err := NewSession(PageContext{Role: "guest"}, Options{Config: cfg}); err == nil {
		t.Fatalf("unknown role must fail")
	}
}

func TestDispatchRecoversPanics(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	s, err := NewSession(PageContext{Role: domain.RoleAdmin}, Options{Config: testConfig(t), Clock: clk})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	err = s.Dispatch("broken", func() error {
		var m map[string]int
		m["x"] = 1
		return nil
	})
	if err == nil {
		t.Fatalf("panic must surface as an error")
	}
	vis := s.Feedback.Visible()
	if len(vis) != 1 || vis[0].Text != s.Config().Messages.Unexpected {
		t.Fatalf("expected unexpected-error notification, got %+v", vis)
	}
	sentinel := errors.New("boom")
	if err := s.Dispatch("plain", func() error { return sentinel }); !errors.Is(err, sentinel) {
		t.Fatalf("errors must pass through, got %v", err)
	}
	if err := s.Dispatch("ok", func() error { return nil }); err != nil {
		t.Fatal(err)
	}
}

func TestLeaderRefreshCountsPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Actor-Id") != "9" {
			t.Errorf("actor header missing")
		}
		switch r.URL.Query().Get("foreman_id") {
		case "12":
			w.Write([]byte(`{"reports":[{"id":1,"status":"pending"},{"id":2,"status":"pending"}]}`))
		default:
			w.Write([]byte(`{"reports":[]}`))
		}
	}))
	defer srv.Close()
	cfg := testConfig(t)
	cfg.Server.BaseURL = srv.URL
	pc, err := ResolvePageContext(cfg, Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewSession(pc, Options{Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	ov := s.Overview()
	if ov.Pending["12"] != 2 || ov.Pending["13"] != 0 {
		t.Fatalf("unexpected overview %+v", ov)
	}
	if got := s.PendingForemen(); len(got) != 1 || got[0] != "12" {
		t.Fatalf("unexpected pending foremen %v", got)
	}
}

func TestProfileAndSettingsDialogs(t *testing.T) {
	cfg := testConfig(t)
	pc, err := ResolvePageContext(cfg, Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewSession(pc, Options{Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	p := s.ShowProfile()
	if !s.Profile.IsOpen() || p.User.Name != "Lead" || p.Role != domain.RoleLeader || p.Foremen != 2 {
		t.Fatalf("unexpected profile %+v open=%v", p, s.Profile.IsOpen())
	}
	st := s.ShowSettings()
	if s.Profile.IsOpen() || !s.Settings.IsOpen() {
		t.Fatalf("settings must replace the profile dialog")
	}
	if st.RefreshDelay != cfg.Timing.RefreshDelay.String() || st.PreviewLength != cfg.PreviewLength {
		t.Fatalf("unexpected settings %+v", st)
	}
	s.Close()
	if s.Settings.IsOpen() {
		t.Fatalf("close must hide the dialogs")
	}
}
