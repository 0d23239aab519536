package camunda

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/validation"
)

type recorded struct {
	taskType string
	status   string
}

type fakeRecorder struct {
	mu   sync.Mutex
	jobs []recorded
}

func (f *fakeRecorder) RecordJob(_ context.Context, taskType, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, recorded{taskType, status})
}

func TestInstrumentRecordsEachJob(t *testing.T) {
	rec := &fakeRecorder{}
	var seen int64
	handler := Instrument("offer-action", func(_ worker.JobClient, job entities.Job) {
		seen = job.GetKey()
	}, rec)

	handler(nil, entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 42}})

	assert.Equal(t, int64(42), seen)
	require.Len(t, rec.jobs, 1)
	assert.Equal(t, recorded{"offer-action", "handled"}, rec.jobs[0])
}

func TestRetry(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	t.Run("transient errors are retried", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), cfg, "complete-job", func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("rpc error: code = Unavailable")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent errors are mapped immediately", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), cfg, "complete-job", func(context.Context) error {
			calls++
			return errors.New("rpc error: code = NotFound desc = job not found")
		})
		assert.Equal(t, 1, calls)
		assert.Equal(t, apperrors.ErrorCode("RESOURCE_NOT_FOUND"), apperrors.CodeOf(err))
	})

	t.Run("exhausted timeouts", func(t *testing.T) {
		err := Retry(context.Background(), cfg, "throw-error", func(context.Context) error {
			return errors.New("context deadline exceeded")
		})
		assert.Equal(t, apperrors.ErrorCode("TIMEOUT_ERROR"), apperrors.CodeOf(err))
	})
}

func TestDecodeVariables(t *testing.T) {
	schema := validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"offerId": {Type: "string", MinLength: validation.Int(1)},
		},
		Required: []string{"offerId"},
	}
	var out struct {
		OfferID string `json:"offerId"`
	}

	err := DecodeVariables(entities.Job{ActivatedJob: &pb.ActivatedJob{Variables: `{"offerId":"o-1","other":true}`}}, schema, &out)
	require.NoError(t, err)
	assert.Equal(t, "o-1", out.OfferID)

	err = DecodeVariables(entities.Job{ActivatedJob: &pb.ActivatedJob{}}, schema, &out)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	assert.Contains(t, err.Error(), "offerId")
}
