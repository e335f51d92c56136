// Package testutil provides database, Redis and fixture helpers for brandpulse tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/target/brandpulse/internal/domain/model"
)

var seedCounter atomic.Int64

// SeedUser inserts a user and returns its id.
func SeedUser(t TestingTB, db *sql.DB, verified bool) int64 {
	t.Helper()
	n := seedCounter.Add(1)
	return insertID(t, db, `
		INSERT INTO "Users" (email, password, "isVerified")
		VALUES ($1, 'x', $2)
		RETURNING id
	`, fmt.Sprintf("user%d-%d@example.com", time.Now().UnixNano(), n), verified)
}

// SeedBrand inserts a brand owned by userID and returns its id.
func SeedBrand(t TestingTB, db *sql.DB, userID int64, name string) int64 {
	t.Helper()
	return insertID(t, db, `INSERT INTO "Brands" (name, "userId") VALUES ($1, $2) RETURNING id`, name, userID)
}

// QuestionSeed describes a question fixture.
type QuestionSeed struct {
	UserID  int64
	BrandID *int64
	Text    string
	Answer  string
}

// SeedQuestion inserts a question and returns its id.
func SeedQuestion(t TestingTB, db *sql.DB, q QuestionSeed) int64 {
	t.Helper()
	if q.Text == "" {
		q.Text = "What is the best running shoe?"
	}
	var brandID sql.NullInt64
	if q.BrandID != nil {
		brandID = sql.NullInt64{Int64: *q.BrandID, Valid: true}
	}
	return insertID(t, db, `
		INSERT INTO "Questions" ("userId", "brandId", text, answer)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, q.UserID, brandID, q.Text, q.Answer)
}

func insertID(t TestingTB, db *sql.DB, query string, args ...any) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var id int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}
	return id
}

// Record builds a positioning record with non-nil maps.
func Record(positioning, density map[string]float64, repetition int) model.PositioningRecord {
	rec := model.ZeroPositioning()
	for k, v := range positioning {
		rec.Positioning[k] = v
	}
	for k, v := range density {
		rec.Density[k] = v
	}
	rec.Repetition = repetition
	return rec
}
