// Package admin implements the administrator page: exporting every report and
// clearing the report store.
package admin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"shiftdesk/internal/clock"
	"shiftdesk/internal/config"
	"shiftdesk/internal/logging"
	"shiftdesk/internal/workflow"
)

// ErrCancelled means the user declined a confirmation; nothing was sent.
var ErrCancelled = errors.New("cancelled by user")

type API interface {
	ExportCSV(ctx context.Context) ([]byte, error)
	ClearAll(ctx context.Context) error
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFor picks the export format from the destination extension.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// Export describes a written export file.
type Export struct {
	Path   string `json:"path"`
	Format Format `json:"format"`
	Rows   int    `json:"rows"`
	Bytes  int    `json:"bytes"`
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
	cfg    *config.Config
	logger *zap.Logger
	reload *workflow.Scheduler
}

func New(opts Options) *Handlers {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := logging.OrNop(opts.Logger).Named("admin")
	return &Handlers{
		api:    opts.API,
		notify: opts.Notifier,
		cfg:    cfg,
		logger: logger,
		reload: workflow.NewScheduler(opts.Clock, cfg.Timing.RefreshDelay, opts.Refresh, logger),
	}
}

// Export downloads the CSV export and writes it to path, converting it to a
// workbook when path ends in .xlsx.
func (h *Handlers) Export(ctx context.Context, path string) (Export, error) {
	out := Export{Path: path, Format: FormatFor(path)}
	data, err := h.api.ExportCSV(ctx)
	if err != nil {
		h.logger.Warn("export download failed", zap.Error(err))
		h.notify.Error(h.cfg.Messages.ExportError)
		return out, fmt.Errorf("download export: %w", err)
	}
	rows, err := countRows(data)
	if err != nil {
		h.notify.Error(h.cfg.Messages.ExportError)
		return out, err
	}
	out.Rows = rows
	if out.Format == FormatXLSX {
		data, err = CSVToXLSX(data, "Reports")
		if err != nil {
			h.notify.Error(h.cfg.Messages.ExportError)
			return out, err
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			h.notify.Error(h.cfg.Messages.ExportError)
			return out, err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		h.notify.Error(h.cfg.Messages.ExportError)
		return out, fmt.Errorf("write export: %w", err)
	}
	out.Bytes = len(data)
	h.notify.Success(h.cfg.Messages.Exported)
	h.logger.Info("reports exported", zap.String("path", path), zap.String("format", string(out.Format)), zap.Int("rows", rows))
	return out, nil
}

// Clear deletes every report after confirmation. Declining sends nothing and
// shows nothing.
func (h *Handlers) Clear(ctx context.Context, c Confirmer) error {
	if c == nil || !c.Confirm(h.cfg.Messages.ClearConfirm) {
		return ErrCancelled
	}
	if err := h.api.ClearAll(ctx); err != nil {
		h.logger.Warn("clear failed", zap.Error(err))
		workflow.Failure(h.notify, err, h.cfg.Messages.ClearFailed, h.cfg.Messages.ClearError)
		return fmt.Errorf("clear reports: %w", err)
	}
	h.notify.Success(h.cfg.Messages.Cleared)
	h.logger.Info("reports cleared")
	h.reload.Schedule()
	return nil
}

// Close stops scheduled refreshes.
func (h *Handlers) Close() {
	h.reload.Stop()
}
