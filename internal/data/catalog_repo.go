package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/domain/model"
	apperrors "github.com/target/brandpulse/internal/errors"
)

// CatalogRepoOptions configures a CatalogRepo.
type CatalogRepoOptions struct {
	TimeProvider TimeProvider
}

// CatalogRepo reads the brand, question and user tables owned by the CRUD service.
// The only write it performs is storing regenerated answers on a question.
type CatalogRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var (
	_ core.CatalogRepository  = (*CatalogRepo)(nil)
	_ core.QuestionRepository = (*CatalogRepo)(nil)
)

// NewCatalogRepo creates a new CatalogRepo.
func NewCatalogRepo(db *sql.DB, opts CatalogRepoOptions) *CatalogRepo {
	return &CatalogRepo{DB: db, timeProvider: providerOrDefault(opts.TimeProvider)}
}

// BrandName returns the name of a brand or model.ErrBrandNotFound.
func (r *CatalogRepo) BrandName(ctx context.Context, brandID int64) (string, error) {
	var name string
	err := r.DB.QueryRowContext(ctx, `SELECT name FROM "Brands" WHERE id = $1`, brandID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", model.ErrBrandNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get brand name: %w", apperrors.MapDBError(err))
	}
	return name, nil
}

// QuestionIDs returns the ids of every question attached to a brand.
func (r *CatalogRepo) QuestionIDs(ctx context.Context, brandID int64) ([]int64, error) {
	return r.queryIDs(ctx, "list brand questions",
		`SELECT id FROM "Questions" WHERE "brandId" = $1 ORDER BY id`, brandID)
}

// ActiveUserIDs returns the ids of verified users.
func (r *CatalogRepo) ActiveUserIDs(ctx context.Context) ([]int64, error) {
	return r.queryIDs(ctx, "list active users",
		`SELECT id FROM "Users" WHERE "isVerified" = true ORDER BY id`)
}

// QuestionIDsForUser returns the user's questions that are attached to a brand, newest id first.
func (r *CatalogRepo) QuestionIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return r.queryIDs(ctx, "list user questions",
		`SELECT id FROM "Questions" WHERE "userId" = $1 AND "brandId" IS NOT NULL ORDER BY id DESC`, userID)
}

// BrandIDs returns every brand id.
func (r *CatalogRepo) BrandIDs(ctx context.Context) ([]int64, error) {
	return r.queryIDs(ctx, "list brands", `SELECT id FROM "Brands" ORDER BY id`)
}

// GetQuestion loads a question or returns model.ErrQuestionNotFound.
func (r *CatalogRepo) GetQuestion(ctx context.Context, questionID int64) (*model.Question, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, "userId", "brandId", text, COALESCE(answer, ''), COALESCE("geminiAnswer", ''), "updatedAt"
		FROM "Questions"
		WHERE id = $1
	`, questionID)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", apperrors.MapDBError(err))
	}
	return q, nil
}

// UpdateAnswers stores both providers' answers on a question.
func (r *CatalogRepo) UpdateAnswers(ctx context.Context, req model.UpdateAnswersRequest) (*model.Question, error) {
	row := r.DB.QueryRowContext(ctx, `
		UPDATE "Questions"
		SET answer = $2, "geminiAnswer" = $3, "updatedAt" = $4
		WHERE id = $1
		RETURNING id, "userId", "brandId", text, COALESCE(answer, ''), COALESCE("geminiAnswer", ''), "updatedAt"
	`, req.QuestionID, req.Answer, req.GeminiAnswer, r.timeProvider.Now().UTC())
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update answers: %w", apperrors.MapDBError(err))
	}
	return q, nil
}

func scanQuestion(s rowScanner) (*model.Question, error) {
	var (
		q       model.Question
		brandID sql.NullInt64
	)
	if err := s.Scan(&q.ID, &q.UserID, &brandID, &q.Text, &q.Answer, &q.GeminiAnswer, &q.UpdatedAt); err != nil {
		return nil, err
	}
	if brandID.Valid {
		id := brandID.Int64
		q.BrandID = &id
	}
	q.UpdatedAt = q.UpdatedAt.UTC()
	return &q, nil
}

func (r *CatalogRepo) queryIDs(ctx context.Context, op, query string, args ...any) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperrors.MapDBError(err))
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, scanErr)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperrors.MapDBError(err))
	}
	return ids, nil
}
