package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"munin/internal/models"
)

func TestExecute_AllStepsInOrder(t *testing.T) {
	var order []string
	step := func(name string) Step {
		return Step{
			Name:  name,
			Class: models.FailureClassSetup,
			Run: func(ctx context.Context) error {
				order = append(order, name)
				return nil
			},
		}
	}

	results, err := Execute(context.Background(), []Step{step("one"), step("two"), step("three")})
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two", "three"}, order, "steps must run strictly in order")
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, models.StepStatusOK, r.Status)
	}
}

func TestExecute_FailureIsABarrier(t *testing.T) {
	var ran []string
	boom := errors.New("resolution failed")

	steps := []Step{
		{Name: "checkout", Class: models.FailureClassSetup, Run: func(ctx context.Context) error {
			ran = append(ran, "checkout")
			return nil
		}},
		{Name: "install-deps", Class: models.FailureClassSetup, Run: func(ctx context.Context) error {
			ran = append(ran, "install-deps")
			return boom
		}},
		{Name: "categorize", Class: models.FailureClassSubprocess, Run: func(ctx context.Context) error {
			ran = append(ran, "categorize")
			return nil
		}},
		{Name: "publish", Class: models.FailureClassPublish, Run: func(ctx context.Context) error {
			ran = append(ran, "publish")
			return nil
		}},
	}

	results, err := Execute(context.Background(), steps)

	// 1. Later steps never ran
	assert.Equal(t, []string{"checkout", "install-deps"}, ran)

	// 2. The error names the step and carries its class
	require.Error(t, err)
	var stepErr *models.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "install-deps", stepErr.Step)
	assert.Equal(t, models.FailureClassSetup, stepErr.Class)
	assert.ErrorIs(t, err, boom)

	// 3. Results mark the failure and the skipped remainder
	require.Len(t, results, 4)
	assert.Equal(t, models.StepStatusOK, results[0].Status)
	assert.Equal(t, models.StepStatusFailed, results[1].Status)
	assert.Contains(t, results[1].Error, "resolution failed")
	assert.Equal(t, models.StepStatusSkipped, results[2].Status)
	assert.Equal(t, models.StepStatusSkipped, results[3].Status)
}

func TestExecute_FailureClassPropagation(t *testing.T) {
	testCases := []struct {
		name  string
		class string
	}{
		{name: "setup failure", class: models.FailureClassSetup},
		{name: "subprocess failure", class: models.FailureClassSubprocess},
		{name: "publish failure", class: models.FailureClassPublish},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			steps := []Step{{
				Name:  "failing",
				Class: tc.class,
				Run:   func(ctx context.Context) error { return errors.New("nope") },
			}}

			_, err := Execute(context.Background(), steps)
			require.Error(t, err)
			assert.Equal(t, tc.class, models.FailureClass(err))
		})
	}
}

func TestExecute_CancelledContextStopsPipeline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	steps := []Step{
		{Name: "first", Class: models.FailureClassSetup, Run: func(ctx context.Context) error {
			cancel() // cancellation lands between steps
			return nil
		}},
		{Name: "second", Class: models.FailureClassSetup, Run: func(ctx context.Context) error {
			t.Fatal("second step must not run after cancellation")
			return nil
		}},
	}

	results, err := Execute(ctx, steps)
	require.Error(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.StepStatusOK, results[0].Status)
	assert.Equal(t, models.StepStatusFailed, results[1].Status)
}

func TestRunLock_Exclusion(t *testing.T) {
	path := t.TempDir() + "/munin.lock"

	// 1. First acquisition succeeds
	first, err := AcquireRunLock(path, "run-a")
	require.NoError(t, err)

	// 2. Second acquisition is refused while the first is held
	_, err = AcquireRunLock(path, "run-b")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.Contains(t, err.Error(), "run-a", "the refusal should hint at the holder")

	// 3. After release the lock is free again
	require.NoError(t, first.Release())
	second, err := AcquireRunLock(path, "run-b")
	require.NoError(t, err)
	require.NoError(t, second.Release())
}
