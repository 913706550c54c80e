package postgres

import (
	"context"
	"encoding/json"
	"time"

	"medstock/internal/core/appctx"
	"medstock/internal/core/id"
	"medstock/internal/domain/notification"
	"medstock/pkg/logger"
)

var _ notification.Notifier = (*Notifier)(nil)

// Notifier persists notifications to an outbox table for delivery by
// an external channel. Notify never blocks the caller and never
// returns an error; failures are logged and dropped.
type Notifier struct {
	pool *Pool
}

func NewNotifier(pool *Pool) *Notifier {
	return &Notifier{pool: pool}
}

func (n *Notifier) Notify(ctx context.Context, msg notification.Notification) {
	// Detach from the request: its context may be cancelled before the
	// insert lands, and the insert must not join an open transaction.
	trace := appctx.GetTrace(ctx)
	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if trace != nil {
			bg = appctx.WithTrace(bg, trace)
		}

		payload, err := json.Marshal(msg.Payload)
		if err != nil {
			logger.Warn(bg, "notification payload marshal failed",
				"kind", msg.Kind, "error", err)
			return
		}

		const sql = `
			INSERT INTO sys_notifications (id, kind, recipient_id, subject, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		_, err = n.pool.Exec(bg, sql,
			msg.ID, msg.Kind, msg.RecipientID, msg.Subject, payload, msg.CreatedAt)
		if err != nil {
			logger.Warn(bg, "notification enqueue failed",
				"kind", msg.Kind, "recipient_id", msg.RecipientID, "error", err)
		}
	}()
}

// ListPending returns unsent notifications, oldest first. Used by the
// delivery relay.
func (n *Notifier) ListPending(ctx context.Context, limit int) ([]notification.Notification, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	const sql = `
		SELECT id, kind, recipient_id, subject, payload, created_at, sent_at
		FROM sys_notifications
		WHERE sent_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := n.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notification.Notification
	for rows.Next() {
		var (
			msg     notification.Notification
			payload []byte
		)
		if err := rows.Scan(&msg.ID, &msg.Kind, &msg.RecipientID, &msg.Subject,
			&payload, &msg.CreatedAt, &msg.SentAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &msg.Payload); err != nil {
				return nil, err
			}
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// MarkSent stamps notifications as delivered.
func (n *Notifier) MarkSent(ctx context.Context, ids []any) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := n.pool.Exec(ctx,
		"UPDATE sys_notifications SET sent_at = now() WHERE id = ANY($1)", ids)
	return err
}

// ListByRecipient returns a recipient's notifications, newest first.
func (n *Notifier) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	sql := `
		SELECT id, kind, recipient_id, subject, payload, created_at, sent_at, read_at
		FROM sys_notifications
		WHERE recipient_id = $1
	`
	if unreadOnly {
		sql += " AND read_at IS NULL"
	}
	sql += " ORDER BY created_at DESC LIMIT $2"

	rows, err := n.pool.Query(ctx, sql, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notification.Notification
	for rows.Next() {
		var (
			msg     notification.Notification
			payload []byte
		)
		if err := rows.Scan(&msg.ID, &msg.Kind, &msg.RecipientID, &msg.Subject,
			&payload, &msg.CreatedAt, &msg.SentAt, &msg.ReadAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &msg.Payload); err != nil {
				return nil, err
			}
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// MarkRead stamps a recipient's notifications as read. The recipient
// filter keeps one user from acking another's messages.
func (n *Notifier) MarkRead(ctx context.Context, recipientID string, ids []id.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := n.pool.Exec(ctx, `
		UPDATE sys_notifications SET read_at = now()
		WHERE recipient_id = $1 AND id = ANY($2) AND read_at IS NULL
	`, recipientID, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
