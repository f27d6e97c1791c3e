package repo

import (
	"context"
	"database/sql"

	"shiftdesk/internal/domain"
)

// NewNotification is what the service stores for a recipient.
type NewNotification struct {
	RecipientID string
	ReportID    int64
	Type        string
	Title       string
	Message     string
	CreatedAt   string
}

func (r Repo) InsertNotificationTx(ctx context.Context, tx *sql.Tx, n NewNotification) (int64, error) {
	var reportID any
	if n.ReportID > 0 {
		reportID = n.ReportID
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO notifications(recipient_id,report_id,notification_type,title,message,is_read,created_at) VALUES (?,?,?,?,?,0,?)`,
		n.RecipientID, reportID, n.Type, n.Title, n.Message, n.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListNotifications returns the newest notifications of a recipient.
func (r Repo) ListNotifications(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,message,is_read,created_at,notification_type FROM notifications WHERE recipient_id=? ORDER BY id DESC LIMIT ?`, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt, &n.NotificationType); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient_id=? AND is_read=0`, recipientID).Scan(&n)
	return n, err
}

// MarkReadTx flags one notification of recipientID as read.
func (r Repo) MarkReadTx(ctx context.Context, tx *sql.Tx, id int64, recipientID string) error {
	res, err := tx.ExecContext(ctx, `UPDATE notifications SET is_read=1 WHERE id=? AND recipient_id=?`, id, recipientID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
