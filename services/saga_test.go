package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunSagaCompensatesInReverseOrder(t *testing.T) {
	var trail []string
	step := func(name string, err error) sagaStep {
		return sagaStep{
			name:     name,
			required: true,
			run: func(ctx context.Context) error {
				trail = append(trail, "run:"+name)
				return err
			},
			compensate: func(ctx context.Context) {
				trail = append(trail, "undo:"+name)
			},
		}
	}

	err := runSaga(context.Background(), zap.NewNop(), []sagaStep{
		step("first", nil),
		step("second", nil),
		step("third", errors.New("boom")),
	})
	require.Error(t, err)
	assert.Equal(t, []string{
		"run:first", "run:second", "run:third",
		"undo:second", "undo:first",
	}, trail)
}

func TestRunSagaOptionalFailureContinues(t *testing.T) {
	var trail []string

	err := runSaga(context.Background(), zap.NewNop(), []sagaStep{
		{
			name: "optional",
			run: func(ctx context.Context) error {
				trail = append(trail, "optional")
				return errors.New("ignored")
			},
		},
		{
			name:     "required",
			required: true,
			run: func(ctx context.Context) error {
				trail = append(trail, "required")
				return nil
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"optional", "required"}, trail)
}

func TestRunSagaFailedOptionalStepIsNotCompensated(t *testing.T) {
	var undone []string

	err := runSaga(context.Background(), zap.NewNop(), []sagaStep{
		{
			name: "optional",
			run:  func(ctx context.Context) error { return errors.New("failed") },
			compensate: func(ctx context.Context) {
				undone = append(undone, "optional")
			},
		},
		{
			name:     "required",
			required: true,
			run:      func(ctx context.Context) error { return errors.New("boom") },
		},
	})
	require.Error(t, err)
	assert.Empty(t, undone)
}
