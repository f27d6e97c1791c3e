package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"shiftdesk/internal/config"
	"shiftdesk/internal/db"
	"shiftdesk/internal/domain"
	"shiftdesk/internal/engine"
	"shiftdesk/internal/migrate"
	"shiftdesk/internal/transport"
	"shiftdesk/internal/wire"
	shiftdesksdk "shiftdesk/sdk/go"
)

const testToken = "tok-123"

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	cfg, err := config.FromYAML([]byte(`
roster:
  - {id: "1", name: Admin}
  - {id: "9", name: Lead}
  - {id: "12", name: Budi}
`))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	e.Now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	handler, err := New(Config{Engine: e, Auth: AuthConfig{CSRFToken: testToken}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func (s *testServer) sdk(actorID, token string) *shiftdesksdk.Client {
	return shiftdesksdk.New(transport.Options{BaseURL: s.URL, CSRFToken: token, ActorID: actorID})
}

func doForm(t *testing.T, client *http.Client, method, target string, form url.Values, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, target, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestReportLifecycleThroughSDK(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	foreman := srv.sdk("12", testToken)
	leader := srv.sdk("9", testToken)

	err := foreman.SubmitActivity(ctx, shiftdesksdk.ActivityDraft{
		Date:  "2024-05-01",
		Shift: "1",
		Entries: []domain.ActivityEntry{
			{Index: 1, Component: "1000", Activities: "Ganti filter", SC: 1},
			{Index: 3, Component: "7000", Activities: "Cek wiring"},
			{Index: 4, Component: "9000", Activities: "PS 500", ACD: 2},
		},
	})
	if err != nil {
		t.Fatalf("submit activity: %v", err)
	}

	pending, err := leader.ListReports(ctx, shiftdesksdk.Filter{ForemanID: "12", Status: domain.StatusPending})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0].Foreman != "Budi" || pending[0].StatusDisplay != "Pending" {
		t.Fatalf("unexpected listing %+v", pending)
	}
	detail, err := leader.GetReport(ctx, pending[0].ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(detail.Entries) != 3 || detail.Entries[1].Index != 3 || detail.Entries[2].ACD != 2 {
		t.Fatalf("entries lost in transit: %+v", detail.Entries)
	}

	if err := foreman.Validate(ctx, detail.ID, domain.ActionApprove, ""); err == nil {
		t.Fatalf("a foreman must not validate their own report")
	}
	if err := leader.Validate(ctx, detail.ID, domain.ActionReject, "Lengkapi data"); err != nil {
		t.Fatalf("validate: %v", err)
	}
	err = leader.Validate(ctx, detail.ID, domain.ActionApprove, "")
	var rejected *domain.RejectedError
	if !errors.As(err, &rejected) || rejected.Message != engine.ErrAlreadyValidated.Error() {
		t.Fatalf("second decision must be rejected with server text, got %v", err)
	}

	inbox, err := foreman.Inbox(ctx)
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if inbox.UnreadCount != 1 || len(inbox.Notifications) != 1 {
		t.Fatalf("unexpected inbox %+v", inbox)
	}
	unread, err := foreman.MarkRead(ctx, inbox.Notifications[0].ID)
	if err != nil || unread != 0 {
		t.Fatalf("mark read: %d %v", unread, err)
	}

	data, err := srv.sdk("1", testToken).ExportCSV(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil || len(records) != 2 || records[1][5] != "Rejected" {
		t.Fatalf("unexpected export %v %v", records, err)
	}

	if err := srv.sdk("1", testToken).ClearAll(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	all, err := leader.ListReports(ctx, shiftdesksdk.Filter{})
	if err != nil || len(all) != 0 {
		t.Fatalf("reports must be gone: %v %v", all, err)
	}
}

func TestAnalysisValidationError(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	err := srv.sdk("12", testToken).SubmitAnalysis(context.Background(), shiftdesksdk.AnalysisDraft{
		SectionTrack: "NOT-A-TRACK",
		Date:         "2024-05-01",
		Title:        "Leak",
	})
	var rejected *domain.RejectedError
	if !errors.As(err, &rejected) || !strings.Contains(rejected.Message, "section track") {
		t.Fatalf("expected server rejection, got %v", err)
	}
}

func TestCSRFAndActorChecks(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	form := url.Values{wire.FieldCSRF: {testToken}}

	res, body := doForm(t, client, http.MethodPost, srv.URL+"/api/reports/clear/", form, map[string]string{wire.HeaderActor: "1"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("missing header token must be refused, got %d %s", res.StatusCode, body)
	}
	var env struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Success || env.Code != "csrf_failed" || env.Error == "" {
		t.Fatalf("unexpected envelope %s", body)
	}

	res, body = doForm(t, client, http.MethodPost, srv.URL+"/api/reports/clear/", form, map[string]string{
		wire.HeaderActor: "1",
		wire.HeaderCSRF:  testToken,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("urlencoded form with both tokens must pass, got %d %s", res.StatusCode, body)
	}

	err := srv.sdk("12", "wrong").ClearAll(context.Background())
	var rejected *domain.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("wrong token must surface as rejection, got %v", err)
	}

	if _, err := srv.sdk("77", testToken).ListReports(context.Background(), shiftdesksdk.Filter{}); !errors.As(err, &rejected) {
		t.Fatalf("unknown actor must be rejected, got %v", err)
	}

	res, body = doForm(t, client, http.MethodGet, srv.URL+"/health", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), "ok") {
		t.Fatalf("health must not need an actor: %d %s", res.StatusCode, body)
	}
}

func TestGetReportNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	_, err := srv.sdk("9", testToken).GetReport(context.Background(), "404")
	var rejected *domain.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("missing report must be rejected, got %v", err)
	}
	res, body := doForm(t, srv.Client(), http.MethodGet, srv.URL+"/api/reports/abc/", nil, map[string]string{wire.HeaderActor: "9"})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("non-numeric id must be 404, got %d %s", res.StatusCode, body)
	}
}
