package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/data/pgxutil"
	"github.com/target/brandpulse/internal/domain/model"
	apperrors "github.com/target/brandpulse/internal/errors"
)

// Advisory lock namespace for cleanup operations.
// Major key 2000 is reserved for brandpulse cleanup; minor keys identify the step.
const (
	advisoryLockCleanupMajor       = 2000
	advisoryLockCleanupStatistics  = 1
	advisoryLockCleanupDeadLetters = 2
)

const statisticColumns = `id, "questionId", chatgpt, gemini, "createdAt"`

// StatisticRepoOptions configures a StatisticRepo.
type StatisticRepoOptions struct {
	TimeProvider TimeProvider
}

// StatisticRepo is the append-only Postgres store of positioning statistics.
type StatisticRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var (
	_ core.StatisticRepository = (*StatisticRepo)(nil)
	_ core.StatisticPruner     = (*StatisticRepo)(nil)
)

// NewStatisticRepo creates a new StatisticRepo.
func NewStatisticRepo(db *sql.DB, opts StatisticRepoOptions) *StatisticRepo {
	return &StatisticRepo{DB: db, timeProvider: providerOrDefault(opts.TimeProvider)}
}

// Append inserts a new statistic row. Rows are never updated.
func (r *StatisticRepo) Append(ctx context.Context, req model.CreateStatisticRequest) (*model.Statistic, error) {
	if req.QuestionID <= 0 {
		return nil, ErrQuestionIDRequired
	}

	chatgpt, err := encodeRecord(req.ChatGPT)
	if err != nil {
		return nil, fmt.Errorf("encode chatgpt record: %w", err)
	}
	gemini, err := encodeRecord(req.Gemini)
	if err != nil {
		return nil, fmt.Errorf("encode gemini record: %w", err)
	}

	now := r.timeProvider.Now().UTC()
	st := &model.Statistic{
		QuestionID: req.QuestionID,
		ChatGPT:    normalizeRecord(req.ChatGPT),
		Gemini:     normalizeRecord(req.Gemini),
	}
	err = r.DB.QueryRowContext(ctx, `
		INSERT INTO "Statistics" ("questionId", chatgpt, gemini, "createdAt", "updatedAt")
		VALUES ($1, $2::jsonb, $3::jsonb, $4, $4)
		RETURNING id, "createdAt"
	`, req.QuestionID, chatgpt, gemini, now).Scan(&st.ID, &st.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert statistic: %w", apperrors.MapDBError(err))
	}
	st.CreatedAt = st.CreatedAt.UTC()
	return st, nil
}

// ByQuestion returns all statistics of a question, newest first.
func (r *StatisticRepo) ByQuestion(ctx context.Context, questionID int64) ([]model.Statistic, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+statisticColumns+`
		FROM "Statistics"
		WHERE "questionId" = $1
		ORDER BY "createdAt" DESC, id DESC
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("query statistics by question: %w", apperrors.MapDBError(err))
	}
	return collectStatistics(rows)
}

// ByQuestions returns the statistics of every given question in one query.
// An empty id list returns an empty result without touching the database.
func (r *StatisticRepo) ByQuestions(ctx context.Context, questionIDs []int64) ([]model.Statistic, error) {
	if len(questionIDs) == 0 {
		return []model.Statistic{}, nil
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+statisticColumns+`
		FROM "Statistics"
		WHERE "questionId" = ANY($1::int[])
	`, int64ArrayLiteral(questionIDs))
	if err != nil {
		return nil, fmt.Errorf("query statistics by questions: %w", apperrors.MapDBError(err))
	}
	return collectStatistics(rows)
}

// DeleteSuperseded deletes up to BatchSize statistics created before OlderThan that have a newer
// row for the same question. The newest row of each question is never deleted.
// Concurrent cleanup runs are serialized with an advisory lock; a run that cannot take it deletes nothing.
func (r *StatisticRepo) DeleteSuperseded(ctx context.Context, params core.DeleteSupersededParams) (int64, error) {
	if params.BatchSize <= 0 {
		return 0, ErrInvalidBatchSize
	}
	if params.OlderThan.IsZero() {
		return 0, ErrInvalidCutoff
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			locked, err := tryAdvisoryLock(ctx, tx, advisoryLockCleanupStatistics)
			if err != nil || !locked {
				return err
			}

			res, err := tx.ExecContext(ctx, `
				DELETE FROM "Statistics"
				WHERE id IN (
					SELECT s.id FROM "Statistics" s
					WHERE s."createdAt" < $1
					  AND EXISTS (
						SELECT 1 FROM "Statistics" n
						WHERE n."questionId" = s."questionId"
						  AND (n."createdAt" > s."createdAt" OR (n."createdAt" = s."createdAt" AND n.id > s.id))
					  )
					ORDER BY s."createdAt"
					LIMIT $2
				)
			`, params.OlderThan.UTC(), params.BatchSize)
			if err != nil {
				return fmt.Errorf("delete superseded statistics: %w", err)
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

func tryAdvisoryLock(ctx context.Context, tx *sql.Tx, minor int) (bool, error) {
	var locked bool
	if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
		advisoryLockCleanupMajor, minor).Scan(&locked); err != nil {
		return false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	return locked, nil
}

func collectStatistics(rows *sql.Rows) ([]model.Statistic, error) {
	defer rows.Close()

	out := []model.Statistic{}
	for rows.Next() {
		st, err := scanStatistic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statistics: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatistic(s rowScanner) (model.Statistic, error) {
	var (
		st              model.Statistic
		chatgpt, gemini []byte
	)
	if err := s.Scan(&st.ID, &st.QuestionID, &chatgpt, &gemini, &st.CreatedAt); err != nil {
		return st, fmt.Errorf("scan statistic: %w", err)
	}
	var err error
	if st.ChatGPT, err = decodeRecord(chatgpt); err != nil {
		return st, fmt.Errorf("decode chatgpt record of statistic %d: %w", st.ID, err)
	}
	if st.Gemini, err = decodeRecord(gemini); err != nil {
		return st, fmt.Errorf("decode gemini record of statistic %d: %w", st.ID, err)
	}
	st.CreatedAt = st.CreatedAt.UTC()
	return st, nil
}

func encodeRecord(rec model.PositioningRecord) (string, error) {
	b, err := json.Marshal(normalizeRecord(rec))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeRecord treats NULL and empty JSON objects as the zero record.
func decodeRecord(raw []byte) (model.PositioningRecord, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return model.ZeroPositioning(), nil
	}
	var rec model.PositioningRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.ZeroPositioning(), err
	}
	return rec, nil
}

func normalizeRecord(rec model.PositioningRecord) model.PositioningRecord {
	if rec.Positioning == nil {
		rec.Positioning = map[string]float64{}
	}
	if rec.Density == nil {
		rec.Density = map[string]float64{}
	}
	return rec
}

// int64ArrayLiteral renders ids as a Postgres array literal so the query works through any database/sql driver.
func int64ArrayLiteral(ids []int64) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	b.WriteByte('}')
	return b.String()
}
