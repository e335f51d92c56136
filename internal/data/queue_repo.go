package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/data/pgxutil"
	"github.com/target/brandpulse/internal/domain/model"
	apperrors "github.com/target/brandpulse/internal/errors"
)

// QueueNotifyChannel is the NOTIFY channel raised by the queue_messages insert trigger.
const QueueNotifyChannel = "queue_message_added"

const defaultVisibilityTimeout = 15 * time.Minute

// QueueRepoOptions configures a QueueRepo.
type QueueRepoOptions struct {
	// VisibilityTimeout is how long a received message stays hidden before it is redelivered.
	VisibilityTimeout time.Duration
	Logger            *slog.Logger
	TimeProvider      TimeProvider
	// WaitForMessage blocks until a message may be available or ctx ends.
	// Defaults to LISTEN on QueueNotifyChannel.
	WaitForMessage func(ctx context.Context) error
}

// QueueDepth summarizes the Postgres queue tables.
type QueueDepth struct {
	Visible     int64 `json:"visible"`
	InFlight    int64 `json:"inFlight"`
	DeadLetters int64 `json:"deadLetters"`
}

// QueueRepo is the Postgres queue transport. Rows are leased with FOR UPDATE SKIP LOCKED so
// several consumers can share the table; an unacknowledged lease expires after the visibility timeout.
type QueueRepo struct {
	DB           *sql.DB
	visibility   time.Duration
	logger       *slog.Logger
	timeProvider TimeProvider
	wait         func(ctx context.Context) error
}

var (
	_ core.QueueTransport   = (*QueueRepo)(nil)
	_ core.DeadLetterer     = (*QueueRepo)(nil)
	_ core.DeadLetterPruner = (*QueueRepo)(nil)
)

// NewQueueRepo creates a new QueueRepo.
func NewQueueRepo(db *sql.DB, opts QueueRepoOptions) *QueueRepo {
	r := &QueueRepo{
		DB:           db,
		visibility:   opts.VisibilityTimeout,
		logger:       opts.Logger,
		timeProvider: providerOrDefault(opts.TimeProvider),
		wait:         opts.WaitForMessage,
	}
	if r.visibility <= 0 {
		r.visibility = defaultVisibilityTimeout
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "queue_repo")
	if r.wait == nil {
		r.wait = r.WaitForNotification
	}
	return r
}

// Send inserts a message that is immediately visible and returns its id.
func (r *QueueRepo) Send(ctx context.Context, req model.SendRequest) (string, error) {
	if len(req.Body) == 0 {
		return "", ErrEmptyMessageBody
	}
	attrs, err := json.Marshal(nonNilAttributes(req.Attributes))
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}

	id := uuid.New()
	now := r.timeProvider.Now().UTC()
	if _, err := r.DB.ExecContext(ctx, `
		INSERT INTO queue_messages (id, body, attributes, visible_at, created_at)
		VALUES ($1, $2, $3::jsonb, $4, $4)
	`, id.String(), req.Body, string(attrs), now); err != nil {
		return "", fmt.Errorf("insert queue message: %w", apperrors.MapDBError(err))
	}
	return id.String(), nil
}

// Receive leases up to MaxBatch visible messages. When none are visible it waits for an insert
// notification until Wait elapses, then returns whatever is available (possibly nothing).
func (r *QueueRepo) Receive(ctx context.Context, req model.ReceiveRequest) ([]model.QueueMessage, error) {
	batch := req.MaxBatch
	if batch <= 0 {
		batch = 1
	}

	msgs, err := r.lease(ctx, batch)
	if err != nil || len(msgs) > 0 || req.Wait <= 0 {
		return msgs, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, req.Wait)
	defer cancel()
	for waitCtx.Err() == nil {
		if werr := r.wait(waitCtx); werr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// wait deadline reached or the listener failed; one last look before giving up
			if !errors.Is(werr, context.DeadlineExceeded) {
				r.logger.WarnContext(ctx, "queue wait failed", "error", werr)
			}
			return r.lease(ctx, batch)
		}
		msgs, err = r.lease(ctx, batch)
		if err != nil || len(msgs) > 0 {
			return msgs, err
		}
	}
	return msgs, nil
}

func (r *QueueRepo) lease(ctx context.Context, batch int) ([]model.QueueMessage, error) {
	now := r.timeProvider.Now().UTC()
	var out []leasedMessage
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx *sql.Tx) error {
			rows, err := tx.QueryContext(ctx, `
				UPDATE queue_messages q
				SET visible_at = $2,
				    receive_count = q.receive_count + 1,
				    receipt_handle = gen_random_uuid()
				FROM (
					SELECT id FROM queue_messages
					WHERE visible_at <= $1
					ORDER BY created_at, id
					LIMIT $3
					FOR UPDATE SKIP LOCKED
				) picked
				WHERE q.id = picked.id
				RETURNING q.id, q.receipt_handle, q.body, q.receive_count, q.attributes, q.created_at
			`, now, now.Add(r.visibility), batch)
			if err != nil {
				return fmt.Errorf("lease queue messages: %w", err)
			}
			defer rows.Close()

			for rows.Next() {
				msg, scanErr := scanQueueMessage(rows)
				if scanErr != nil {
					return scanErr
				}
				out = append(out, msg)
			}
			return rows.Err()
		},
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	sortByCreated(out)
	return stripCreated(out), nil
}

type leasedMessage struct {
	model.QueueMessage
	createdAt time.Time
}

func scanQueueMessage(s rowScanner) (leasedMessage, error) {
	var (
		m     leasedMessage
		attrs []byte
	)
	if err := s.Scan(&m.ID, &m.ReceiptHandle, &m.Body, &m.ReceiveCount, &attrs, &m.createdAt); err != nil {
		return m, fmt.Errorf("scan queue message: %w", err)
	}
	m.Attributes = map[string]string{}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &m.Attributes); err != nil {
			return m, fmt.Errorf("decode attributes of message %s: %w", m.ID, err)
		}
	}
	return m, nil
}

// RETURNING does not preserve the subquery order.
func sortByCreated(msgs []leasedMessage) {
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].createdAt.Before(msgs[j].createdAt) })
}

func stripCreated(msgs []leasedMessage) []model.QueueMessage {
	out := make([]model.QueueMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.QueueMessage)
	}
	return out
}

// Delete acknowledges a message. A receipt handle from an expired lease matches nothing and is a no-op.
func (r *QueueRepo) Delete(ctx context.Context, receiptHandle string) error {
	handle, err := parseReceipt(receiptHandle)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM queue_messages WHERE receipt_handle = $1`, handle)
	if err != nil {
		return fmt.Errorf("delete queue message: %w", apperrors.MapDBError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.logger.DebugContext(ctx, "stale receipt handle", "receipt_handle", handle)
	}
	return nil
}

// DeadLetter moves a leased message to queue_dead_letters in one transaction.
func (r *QueueRepo) DeadLetter(ctx context.Context, msg model.QueueMessage, reason string) error {
	handle, err := parseReceipt(msg.ReceiptHandle)
	if err != nil {
		return err
	}
	now := r.timeProvider.Now().UTC()
	return pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO queue_dead_letters (message_id, body, attributes, receive_count, reason, dead_lettered_at)
				SELECT id, body, attributes, receive_count, $2, $3
				FROM queue_messages
				WHERE receipt_handle = $1
			`, handle, reason, now)
			if err != nil {
				return fmt.Errorf("insert dead letter: %w", apperrors.MapDBError(err))
			}
			if n, _ := res.RowsAffected(); n == 0 {
				// lease expired and someone else holds the message now
				return nil
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM queue_messages WHERE receipt_handle = $1`, handle); err != nil {
				return fmt.Errorf("delete dead-lettered message: %w", apperrors.MapDBError(err))
			}
			return nil
		},
	})
}

// DeleteDeadLetters removes up to BatchSize dead letters parked before OlderThan.
func (r *QueueRepo) DeleteDeadLetters(ctx context.Context, params core.DeleteDeadLettersParams) (int64, error) {
	if params.BatchSize <= 0 {
		return 0, ErrInvalidBatchSize
	}
	if params.OlderThan.IsZero() {
		return 0, ErrInvalidCutoff
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			locked, err := tryAdvisoryLock(ctx, tx, advisoryLockCleanupDeadLetters)
			if err != nil || !locked {
				return err
			}
			res, err := tx.ExecContext(ctx, `
				DELETE FROM queue_dead_letters
				WHERE id IN (
					SELECT id FROM queue_dead_letters
					WHERE dead_lettered_at < $1
					ORDER BY dead_lettered_at
					LIMIT $2
				)
			`, params.OlderThan.UTC(), params.BatchSize)
			if err != nil {
				return fmt.Errorf("delete dead letters: %w", err)
			}
			rowsAffected, err = res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// ListDeadLetters returns the most recent dead letters.
func (r *QueueRepo) ListDeadLetters(ctx context.Context, limit int) ([]model.DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, message_id, body, receive_count, reason, dead_lettered_at
		FROM queue_dead_letters
		ORDER BY dead_lettered_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	out := []model.DeadLetter{}
	for rows.Next() {
		var dl model.DeadLetter
		if err := rows.Scan(&dl.ID, &dl.MessageID, &dl.Body, &dl.ReceiveCount, &dl.Reason, &dl.DeadLetteredAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		dl.DeadLetteredAt = dl.DeadLetteredAt.UTC()
		out = append(out, dl)
	}
	return out, rows.Err()
}

// Depth counts visible, leased and dead-lettered messages.
func (r *QueueRepo) Depth(ctx context.Context) (QueueDepth, error) {
	var d QueueDepth
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM queue_messages WHERE visible_at <= $1),
			(SELECT count(*) FROM queue_messages WHERE visible_at > $1),
			(SELECT count(*) FROM queue_dead_letters)
	`, r.timeProvider.Now().UTC()).Scan(&d.Visible, &d.InFlight, &d.DeadLetters)
	if err != nil {
		return d, fmt.Errorf("queue depth: %w", apperrors.MapDBError(err))
	}
	return d, nil
}

// MessagesInQueue counts messages visible for delivery now.
func (r *QueueRepo) MessagesInQueue(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM queue_messages WHERE visible_at <= $1`,
		r.timeProvider.Now().UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count queue messages: %w", apperrors.MapDBError(err))
	}
	return n, nil
}

// WaitForNotification blocks until a row is inserted into queue_messages or ctx ends.
func (r *QueueRepo) WaitForNotification(ctx context.Context) error {
	return pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		quoted := pgx.Identifier{QueueNotifyChannel}.Sanitize()
		if _, err := conn.Exec(ctx, "LISTEN "+quoted); err != nil {
			return fmt.Errorf("listen %s: %w", QueueNotifyChannel, err)
		}
		defer func() {
			// the connection goes back to the pool, so drop the subscription even after ctx ends
			_, _ = conn.Exec(context.WithoutCancel(ctx), "UNLISTEN "+quoted)
		}()

		_, err := conn.WaitForNotification(ctx)
		return err
	})
}

func parseReceipt(receiptHandle string) (string, error) {
	if receiptHandle == "" {
		return "", ErrReceiptRequired
	}
	id, err := uuid.Parse(receiptHandle)
	if err != nil {
		return "", fmt.Errorf("invalid receipt handle %q: %w", receiptHandle, err)
	}
	return id.String(), nil
}

func nonNilAttributes(attrs map[string]string) map[string]string {
	if attrs == nil {
		return map[string]string{}
	}
	return attrs
}
