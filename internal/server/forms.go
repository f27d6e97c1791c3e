package server

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"shiftdesk/internal/domain"
	"shiftdesk/internal/engine"
	"shiftdesk/internal/repo"
	"shiftdesk/internal/wire"
)

// registerForms mounts the form endpoints. They take flat multipart or
// urlencoded fields and answer {success, ...}; the CSRF middleware has
// already parsed the form.
func registerForms(r chi.Router, e engine.Engine, logger *zap.Logger) {
	r.Post("/api/reports/activity/", submitActivity(e, logger))
	r.Post("/api/reports/analysis/", submitAnalysis(e, logger))
	r.Post("/api/reports/clear/", clearReports(e, logger))
	r.Post("/api/reports/{id}/validate/", validateReport(e, logger))
	r.Post("/api/notifications/{id}/read/", markRead(e))
	r.Get("/api/reports/export/csv/", exportCSV(e, logger))
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}

func submitActivity(e engine.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, authErr := requireActor(r.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		entries, err := wire.DecodeActivityEntries(r.PostForm)
		if err != nil {
			respondStatusError(w, handleError(&engine.ValidationError{Msg: err.Error()}))
			return
		}
		rp, err := e.SubmitActivity(r.Context(), engine.ActivityInput{
			Foreman:  actor,
			Date:     formValue(r, wire.FieldDate),
			Shift:    formValue(r, wire.FieldShift),
			UnitCode: formValue(r, wire.FieldUnitCode),
			Entries:  entries,
		})
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		logger.Info("activity report stored", zap.String("report_id", rp.ID.String()), zap.String("foreman_id", actor.ID), zap.Int("entries", len(entries)))
		respondJSON(w, http.StatusOK, SubmitResponse{Success: true, ReportID: rp.ID})
	}
}

func submitAnalysis(e engine.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, authErr := requireActor(r.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		rp, err := e.SubmitAnalysis(r.Context(), engine.AnalysisInput{
			Foreman:      actor,
			SectionTrack: formValue(r, wire.FieldSectionTrack),
			Date:         formValue(r, wire.FieldDate),
			UnitCode:     formValue(r, wire.FieldUnitCode),
			Problem:      formValue(r, wire.FieldProblem),
			Title:        formValue(r, wire.FieldTitle),
			Details:      r.PostFormValue(wire.FieldDetails),
		})
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		logger.Info("analysis report stored", zap.String("report_id", rp.ID.String()), zap.String("section_track", rp.SectionTrack))
		respondJSON(w, http.StatusOK, SubmitResponse{Success: true, ReportID: rp.ID})
	}
}

func validateReport(e engine.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, authErr := requireActor(r.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			respondStatusError(w, handleError(repo.ErrNotFound))
			return
		}
		action := domain.Action(formValue(r, wire.FieldAction))
		rp, err := e.ValidateReport(r.Context(), id, action, formValue(r, wire.FieldFeedback), actor)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		logger.Info("report validated", zap.Int64("report_id", id), zap.String("status", string(rp.Status)), zap.String("reviewer_id", actor.ID))
		respondJSON(w, http.StatusOK, ValidateResponse{Success: true, Status: rp.Status})
	}
}

func clearReports(e engine.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, authErr := requireActor(r.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		n, err := e.ClearReports(r.Context(), actor.ID)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		logger.Warn("reports cleared", zap.Int64("deleted", n), zap.String("actor_id", actor.ID))
		respondJSON(w, http.StatusOK, ClearResponse{Success: true, Deleted: n})
	}
}

func markRead(e engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, authErr := requireActor(r.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			respondStatusError(w, handleError(repo.ErrNotFound))
			return
		}
		unread, err := e.MarkRead(r.Context(), id, actor.ID)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		respondJSON(w, http.StatusOK, MarkReadResponse{Success: true, UnreadCount: unread})
	}
}

func exportCSV(e engine.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, authErr := requireActor(r.Context()); authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		var buf bytes.Buffer
		n, err := e.ExportCSV(r.Context(), &buf)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		logger.Info("reports exported", zap.Int("rows", n))
		now := time.Now
		if e.Now != nil {
			now = e.Now
		}
		writeCSV(w, exportFilename(now()), &buf)
	}
}
