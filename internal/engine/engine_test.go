package engine_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strconv"
	"testing"
	"time"

	"shiftdesk/internal/config"
	"shiftdesk/internal/db"
	"shiftdesk/internal/domain"
	"shiftdesk/internal/engine"
	"shiftdesk/internal/migrate"
	"shiftdesk/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

var (
	budi = domain.Person{ID: "12", Name: "Budi"}
	lead = domain.Person{ID: "9", Name: "Lead"}
)

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func (env testEnv) activity(t *testing.T) domain.Report {
	t.Helper()
	rp, err := env.Engine.SubmitActivity(env.Ctx, engine.ActivityInput{
		Foreman: budi,
		Date:    "2024-05-01",
		Shift:   "1",
		Entries: []domain.ActivityEntry{
			{Index: 1, Component: "1000", Activities: "Ganti filter", SC: 1},
			{Index: 3, Component: "7000", Activities: "Cek wiring", USC: 2},
			{Index: 4, Component: "9000", Activities: "PS 500", ACD: 1},
		},
	})
	if err != nil {
		t.Fatalf("submit activity: %v", err)
	}
	return rp
}

func reportID(t *testing.T, rp domain.Report) int64 {
	t.Helper()
	id, err := strconv.ParseInt(rp.ID.String(), 10, 64)
	if err != nil {
		t.Fatalf("report id %q: %v", rp.ID, err)
	}
	return id
}

func TestSubmitActivityKeepsEntryIndices(t *testing.T) {
	env := newTestEnv(t)
	rp := env.activity(t)
	got, err := env.Engine.Repo.GetReport(env.Ctx, reportID(t, rp))
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if got.Status != domain.StatusPending || got.Foreman != "Budi" || got.StatusDisplay != "Pending" {
		t.Fatalf("unexpected report %+v", got)
	}
	if len(got.Entries) != 3 || got.Entries[0].Index != 1 || got.Entries[1].Index != 3 || got.Entries[2].Index != 4 {
		t.Fatalf("entries must keep their indices, got %+v", got.Entries)
	}
	if got.Entries[1].USC != 2 {
		t.Fatalf("counter lost: %+v", got.Entries[1])
	}
}

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv(t)
	var verr *engine.ValidationError
	_, err := env.Engine.SubmitActivity(env.Ctx, engine.ActivityInput{Foreman: budi, Date: "2024-05-01"})
	if !errors.As(err, &verr) {
		t.Fatalf("empty entries must be a validation error, got %v", err)
	}
	_, err = env.Engine.SubmitActivity(env.Ctx, engine.ActivityInput{
		Foreman: budi, Date: "2024-05-01",
		Entries: []domain.ActivityEntry{{Index: 2, Component: "1234", Activities: "x"}},
	})
	if !errors.As(err, &verr) || verr.Field != "component_2" {
		t.Fatalf("unknown component must name its field, got %v", err)
	}
	_, err = env.Engine.SubmitAnalysis(env.Ctx, engine.AnalysisInput{Foreman: budi, SectionTrack: "NOPE", Date: "2024-05-01", Title: "x"})
	if !errors.As(err, &verr) {
		t.Fatalf("unknown track must fail, got %v", err)
	}
	_, err = env.Engine.SubmitAnalysis(env.Ctx, engine.AnalysisInput{Foreman: budi, SectionTrack: "PC1250", Date: "01/05/2024", Title: "x"})
	if !errors.As(err, &verr) || verr.Field != "date" {
		t.Fatalf("bad date must fail, got %v", err)
	}
	rp, err := env.Engine.SubmitAnalysis(env.Ctx, engine.AnalysisInput{Foreman: budi, SectionTrack: "PC1250", Date: "2024-05-01", Title: "Leak", Problem: "Hydraulic"})
	if err != nil || rp.Type != domain.ReportAnalysis || rp.SectionTrack != "PC1250" {
		t.Fatalf("analysis: %+v %v", rp, err)
	}
}

func TestValidateReportTransitions(t *testing.T) {
	env := newTestEnv(t)
	rp := env.activity(t)
	id := reportID(t, rp)

	if _, err := env.Engine.ValidateReport(env.Ctx, id, "maybe", "", lead); err == nil {
		t.Fatalf("unknown action must fail")
	}
	got, err := env.Engine.ValidateReport(env.Ctx, id, domain.ActionReject, "Lengkapi data", lead)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != domain.StatusRejected || got.Feedback != "Lengkapi data" || got.ValidatedBy != "9" {
		t.Fatalf("unexpected report %+v", got)
	}
	if _, err := env.Engine.ValidateReport(env.Ctx, id, domain.ActionApprove, "", lead); !errors.Is(err, engine.ErrAlreadyValidated) {
		t.Fatalf("second decision must conflict, got %v", err)
	}
	if _, err := env.Engine.ValidateReport(env.Ctx, 999, domain.ActionApprove, "", lead); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("missing report must be not found, got %v", err)
	}

	inbox, err := env.Engine.Inbox(env.Ctx, "12", 10)
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if inbox.UnreadCount != 1 || len(inbox.Notifications) != 1 || inbox.Notifications[0].NotificationType != "report_rejected" {
		t.Fatalf("foreman must be notified once, got %+v", inbox)
	}
	unread, err := env.Engine.MarkRead(env.Ctx, inbox.Notifications[0].ID, "12")
	if err != nil || unread != 0 {
		t.Fatalf("mark read: %d %v", unread, err)
	}
	if _, err := env.Engine.MarkRead(env.Ctx, inbox.Notifications[0].ID, "13"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("someone else's notification must be not found, got %v", err)
	}

	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, 0, "report.validated", "report", rp.ID.String())
	if err != nil || len(evts) != 1 || evts[0].ActorID != "9" {
		t.Fatalf("expected one validation event, got %+v %v", evts, err)
	}
}

func TestExportAndClear(t *testing.T) {
	env := newTestEnv(t)
	env.activity(t)
	env.activity(t)

	var buf bytes.Buffer
	n, err := env.Engine.ExportCSV(env.Ctx, &buf)
	if err != nil || n != 2 {
		t.Fatalf("export: %d %v", n, err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 || records[0][0] != "ID" || records[1][3] != "Budi" {
		t.Fatalf("unexpected csv %v", records)
	}

	deleted, err := env.Engine.ClearReports(env.Ctx, "1")
	if err != nil || deleted != 2 {
		t.Fatalf("clear: %d %v", deleted, err)
	}
	counts, err := env.Engine.Repo.CountReportsByStatus(env.Ctx)
	if err != nil || len(counts) != 0 {
		t.Fatalf("reports must be gone, got %v %v", counts, err)
	}
	var entries int
	if err := env.Engine.DB.QueryRow(`SELECT COUNT(*) FROM activity_entries`).Scan(&entries); err != nil || entries != 0 {
		t.Fatalf("entries must cascade, got %d %v", entries, err)
	}
}
