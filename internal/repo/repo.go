package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"shiftdesk/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const reportColumns = `id,type,date,title,details,shift,unit_code,section_track,problem,status,foreman_id,foreman_name,feedback,validated_by,validated_at,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (domain.Report, error) {
	var rp domain.Report
	var id int64
	var shift, unit, track, problem, feedback, validatedBy, validatedAt sql.NullString
	err := row.Scan(&id, &rp.Type, &rp.Date, &rp.Title, &rp.Details, &shift, &unit, &track, &problem, &rp.Status,
		&rp.ForemanID, &rp.Foreman, &feedback, &validatedBy, &validatedAt, &rp.CreatedAt)
	if err == sql.ErrNoRows {
		return rp, ErrNotFound
	}
	if err != nil {
		return rp, err
	}
	rp.ID = domain.ReportID(fmt.Sprint(id))
	rp.Shift = shift.String
	rp.UnitCode = unit.String
	rp.SectionTrack = track.String
	rp.Problem = problem.String
	rp.Feedback = feedback.String
	rp.ValidatedBy = validatedBy.String
	rp.ValidatedAt = validatedAt.String
	rp.StatusDisplay = rp.Status.Display()
	return rp, nil
}

// InsertReportTx stores rp and its entries and returns the new id.
func (r Repo) InsertReportTx(ctx context.Context, tx *sql.Tx, rp domain.Report) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO reports(type,date,title,details,shift,unit_code,section_track,problem,status,foreman_id,foreman_name,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		rp.Type, rp.Date, rp.Title, rp.Details, nullable(rp.Shift), nullable(rp.UnitCode), nullable(rp.SectionTrack), nullable(rp.Problem),
		rp.Status, rp.ForemanID, rp.Foreman, rp.CreatedAt)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, e := range rp.Entries {
		if _, err := tx.ExecContext(ctx, `INSERT INTO activity_entries(report_id,idx,component,activities,sc,usc,acd) VALUES (?,?,?,?,?,?,?)`,
			id, e.Index, e.Component, e.Activities, e.SC, e.USC, e.ACD); err != nil {
			return 0, fmt.Errorf("entry %d: %w", e.Index, err)
		}
	}
	return id, nil
}

func (r Repo) GetReport(ctx context.Context, id int64) (domain.Report, error) {
	return r.getReport(ctx, r.DB, id)
}

func (r Repo) GetReportTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Report, error) {
	return r.getReport(ctx, tx, id)
}

func (r Repo) getReport(ctx context.Context, q querier, id int64) (domain.Report, error) {
	rp, err := scanReport(q.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id=?`, id))
	if err != nil {
		return rp, err
	}
	entries, err := listEntries(ctx, q, id)
	if err != nil {
		return rp, err
	}
	rp.Entries = entries
	return rp, nil
}

func listEntries(ctx context.Context, q querier, reportID int64) ([]domain.ActivityEntry, error) {
	rows, err := q.QueryContext(ctx, `SELECT idx,component,activities,sc,usc,acd FROM activity_entries WHERE report_id=? ORDER BY idx`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		if err := rows.Scan(&e.Index, &e.Component, &e.Activities, &e.SC, &e.USC, &e.ACD); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

type ReportFilters struct {
	ForemanID string
	Type      string
	Status    string
	Limit     int
}

// ListReports returns matching reports, newest first, without entries.
func (r Repo) ListReports(ctx context.Context, f ReportFilters) ([]domain.Report, error) {
	var clauses []string
	var args []any
	if f.ForemanID != "" {
		clauses = append(clauses, "foreman_id=?")
		args = append(args, f.ForemanID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + reportColumns + ` FROM reports ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Report{}
	for rows.Next() {
		rp, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rp)
	}
	return res, rows.Err()
}

// UpdateValidationTx records a decision on a pending report. It reports
// ErrNotFound when the report is gone or no longer pending.
func (r Repo) UpdateValidationTx(ctx context.Context, tx *sql.Tx, id int64, status domain.ReportStatus, feedback, validatedBy, at string) error {
	res, err := tx.ExecContext(ctx, `UPDATE reports SET status=?, feedback=?, validated_by=?, validated_at=? WHERE id=? AND status='pending'`,
		status, nullable(feedback), validatedBy, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteReportsTx removes every report and returns how many went.
func (r Repo) DeleteReportsTx(ctx context.Context, tx *sql.Tx) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM reports`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountReportsByStatus returns report totals keyed by status.
func (r Repo) CountReportsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM reports GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		res[status] = n
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
