package admin

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"shiftdesk/internal/clock"
	"shiftdesk/internal/config"
	"shiftdesk/internal/domain"
	"shiftdesk/internal/feedback"
)

const sampleCSV = "Date,Type,Foreman,Title,Status\n2024-05-01,activity,Budi,Shift 1,pending\n2024-05-02,analysis,Sari,\"Leak, seal\",approved\n"

type fakeAPI struct {
	csv     []byte
	err     error
	cleared int
}

func (f *fakeAPI) ExportCSV(ctx context.Context) ([]byte, error) { return f.csv, f.err }

func (f *fakeAPI) ClearAll(ctx context.Context) error {
	f.cleared++
	return f.err
}

func setup(t *testing.T) (*Handlers, *fakeAPI, *clock.Manual, *feedback.Channel, *int) {
	api := &fakeAPI{csv: []byte(sampleCSV)}
	clk := clock.NewManual(time.Unix(0, 0))
	ch := feedback.New(feedback.Options{Clock: clk})
	refreshes := 0
	h := New(Options{API: api, Notifier: ch, Clock: clk, Config: config.Default(), Refresh: func(ctx context.Context) error {
		refreshes++
		return nil
	}})
	t.Cleanup(h.Close)
	return h, api, clk, ch, &refreshes
}

func TestExportCSVAndXLSX(t *testing.T) {
	h, _, _, _, _ := setup(t)
	dir := t.TempDir()

	res, err := h.Export(context.Background(), filepath.Join(dir, "reports.csv"))
	if err != nil {
		t.Fatalf("export csv: %v", err)
	}
	if res.Format != FormatCSV || res.Rows != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	got, _ := os.ReadFile(res.Path)
	if string(got) != sampleCSV {
		t.Fatalf("csv must be written untouched")
	}

	res, err = h.Export(context.Background(), filepath.Join(dir, "out", "reports.xlsx"))
	if err != nil {
		t.Fatalf("export xlsx: %v", err)
	}
	data, _ := os.ReadFile(res.Path)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Reports")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 || rows[2][3] != "Leak, seal" || rows[0][0] != "Date" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestExportFailureNotifies(t *testing.T) {
	h, api, _, ch, _ := setup(t)
	api.err = errors.New("connection refused")
	if _, err := h.Export(context.Background(), filepath.Join(t.TempDir(), "x.csv")); err == nil {
		t.Fatalf("expected error")
	}
	if vis := ch.Visible(); len(vis) != 1 || vis[0].Text != config.Default().Messages.ExportError {
		t.Fatalf("unexpected notifications %+v", vis)
	}
}

func TestClearRequiresConfirmation(t *testing.T) {
	h, api, clk, ch, refreshes := setup(t)
	var asked string
	err := h.Clear(context.Background(), ConfirmFunc(func(p string) bool {
		asked = p
		return false
	}))
	if !errors.Is(err, ErrCancelled) || api.cleared != 0 || len(ch.Visible()) != 0 {
		t.Fatalf("declined clear must send and show nothing: %v %d", err, api.cleared)
	}
	if asked != config.Default().Messages.ClearConfirm {
		t.Fatalf("unexpected prompt %q", asked)
	}

	yes := ConfirmFunc(func(string) bool { return true })
	if err := h.Clear(context.Background(), yes); err != nil {
		t.Fatalf("clear: %v", err)
	}
	clk.Advance(time.Second)
	if api.cleared != 1 || *refreshes != 1 {
		t.Fatalf("expected one clear and one refresh, got %d/%d", api.cleared, *refreshes)
	}

	api.err = &domain.RejectedError{Message: "tidak diizinkan"}
	_ = h.Clear(context.Background(), yes)
	vis := ch.Visible()
	if vis[len(vis)-1].Text != "tidak diizinkan" {
		t.Fatalf("server text expected, got %+v", vis)
	}
}
