package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/target/brandpulse/internal/domain/model"
	apperrors "github.com/target/brandpulse/internal/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline", fmt.Errorf("generate: %w", context.DeadlineExceeded), "timeout"},
		{"canceled", context.Canceled, "canceled"},
		{"delivery", &model.DeliveryError{JobType: model.JobTypeCleanup, Err: goerrors.New("sqs down")}, "delivery"},
		{
			"postgres class",
			fmt.Errorf("lease: %w", &pgconn.PgError{Code: pgerrcode.SerializationFailure}),
			"postgres_40",
		},
		{
			"app code",
			apperrors.Wrapf(goerrors.New("missing"), apperrors.ErrCodeNotFound, "brand %d", 3),
			"not_found",
		},
		{"plain error", goerrors.New("boom"), "errors_errorstring"},
		{"wrapped plain error", fmt.Errorf("outer: %w", goerrors.New("boom")), "errors_errorstring"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
