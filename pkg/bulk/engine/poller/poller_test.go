package poller_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/core/metrics"
	"github.com/moorings/bulkhead/pkg/bulk/engine/poller"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
	bulktest "github.com/moorings/bulkhead/pkg/bulk/test"
)

// flakyExecutor fails the first pollFailures polls with the given error, then
// delegates to the embedded fake.
type flakyExecutor struct {
	*bulktest.FakeExecutor
	pollFailures int
	pollErr      error
	polled       int
}

func (e *flakyExecutor) PollJob(ctx context.Context, handle port.JobHandle) (port.JobStatus, error) {
	e.polled++
	if e.polled <= e.pollFailures {
		return port.JobStatus{}, e.pollErr
	}
	return e.FakeExecutor.PollJob(ctx, handle)
}

func submitJob(t *testing.T, exec port.Executor) *model.Job {
	t.Helper()
	batch := &model.Batch{Records: bulktest.WidgetRecords(3)}
	handle, err := exec.SubmitJob(context.Background(), model.OpInsert, "Widget", batch)
	assert.NoError(t, err)
	return model.NewJob(string(handle), batch)
}

func TestAwaitCompletes(t *testing.T) {
	exec := bulktest.NewFakeExecutor()
	p := poller.NewJobPoller(exec, bulktest.OperationConfig(), metrics.NewNoOpMetricRecorder())

	job := submitJob(t, exec)
	status, err := p.Await(context.Background(), job, 0)

	assert.NoError(t, err)
	assert.Equal(t, model.JobStateComplete, status.State)
	assert.Equal(t, model.JobStateComplete, job.State)
	assert.Len(t, job.Results, 3)
	assert.Equal(t, 1, job.PollCount)
}

func TestAwaitProgressesThroughQueuedAndInProgress(t *testing.T) {
	exec := bulktest.NewFakeExecutor()
	done := []model.RowOutcome{{RecordID: "r1", Success: true, Created: true}}
	exec.JobStates["job-001"] = []port.JobStatus{
		{State: model.JobStateQueued},
		{State: model.JobStateInProgress},
		{State: model.JobStateComplete, Results: done},
	}
	p := poller.NewJobPoller(exec, bulktest.OperationConfig(), metrics.NewNoOpMetricRecorder())

	job := submitJob(t, exec)
	status, err := p.Await(context.Background(), job, 0)

	assert.NoError(t, err)
	assert.Equal(t, model.JobStateComplete, status.State)
	assert.Equal(t, done, job.Results)
	assert.GreaterOrEqual(t, job.PollCount, 3)
}

func TestAwaitSurvivesTransientPollFailures(t *testing.T) {
	exec := &flakyExecutor{
		FakeExecutor: bulktest.NewFakeExecutor(),
		pollFailures: 2,
		pollErr:      exception.New("backend", exception.ClassTransientUnavailable, "hiccup", nil),
	}
	p := poller.NewJobPoller(exec, bulktest.OperationConfig(), metrics.NewNoOpMetricRecorder())

	job := submitJob(t, exec)
	status, err := p.Await(context.Background(), job, 0)

	assert.NoError(t, err)
	assert.Equal(t, model.JobStateComplete, status.State)
	assert.Equal(t, 3, job.PollCount)
}

func TestAwaitFailsOnNonRetryablePollError(t *testing.T) {
	exec := &flakyExecutor{
		FakeExecutor: bulktest.NewFakeExecutor(),
		pollFailures: 1,
		pollErr:      errors.New("handle rejected"),
	}
	p := poller.NewJobPoller(exec, bulktest.OperationConfig(), metrics.NewNoOpMetricRecorder())

	job := submitJob(t, exec)
	_, err := p.Await(context.Background(), job, 0)

	assert.Error(t, err)
	assert.True(t, exception.IsClass(err, exception.ClassInternal))
	assert.Equal(t, model.JobStateFailed, job.State)
}

func TestAwaitPreservesPollErrorClass(t *testing.T) {
	exec := &flakyExecutor{
		FakeExecutor: bulktest.NewFakeExecutor(),
		pollFailures: 1,
		pollErr:      exception.New("backend", exception.ClassInvalidReference, "handle belongs to another tenant", nil),
	}
	p := poller.NewJobPoller(exec, bulktest.OperationConfig(), metrics.NewNoOpMetricRecorder())

	job := submitJob(t, exec)
	_, err := p.Await(context.Background(), job, 0)

	// A permanent poll failure keeps its class instead of being relabeled
	// as transient.
	assert.Error(t, err)
	assert.True(t, exception.IsClass(err, exception.ClassInvalidReference))
	assert.Equal(t, model.JobStateFailed, job.State)
}

func TestAwaitBudgetExhaustion(t *testing.T) {
	exec := bulktest.NewFakeExecutor()
	exec.JobStates["job-001"] = []port.JobStatus{{State: model.JobStateInProgress}}
	p := poller.NewJobPoller(exec, bulktest.OperationConfig(), metrics.NewNoOpMetricRecorder())

	job := submitJob(t, exec)
	_, err := p.Await(context.Background(), job, 20*time.Millisecond)

	assert.Error(t, err)
	assert.True(t, exception.IsClass(err, exception.ClassTimedOut))
	assert.Equal(t, model.JobStateAborted, job.State)
	// The handle is named so the caller can re-poll the backend later.
	assert.Contains(t, err.Error(), job.Handle)
}

func TestAwaitCancellationConfirmsFinishedJob(t *testing.T) {
	exec := bulktest.NewFakeExecutor()
	done := []model.RowOutcome{{RecordID: "r1", Success: true, Created: true}}
	exec.JobStates["job-001"] = []port.JobStatus{
		{State: model.JobStateInProgress},
		{State: model.JobStateComplete, Results: done},
	}
	p := poller.NewJobPoller(exec, bulktest.OperationConfig(), metrics.NewNoOpMetricRecorder())

	job := submitJob(t, exec)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(2 * time.Millisecond)
		cancel()
	}()
	status, err := p.Await(ctx, job, 0)

	// The job finished while we were being cancelled; the final confirmation
	// poll catches it.
	if err == nil {
		assert.Equal(t, model.JobStateComplete, status.State)
		assert.Equal(t, done, job.Results)
	} else {
		assert.True(t, exception.IsClass(err, exception.ClassTimedOut))
		assert.Equal(t, model.JobStateAborted, job.State)
	}
}

func TestAwaitCancellationAborts(t *testing.T) {
	exec := bulktest.NewFakeExecutor()
	exec.JobStates["job-001"] = []port.JobStatus{{State: model.JobStateInProgress}}
	p := poller.NewJobPoller(exec, bulktest.OperationConfig(), metrics.NewNoOpMetricRecorder())

	job := submitJob(t, exec)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Await(ctx, job, 0)

	assert.Error(t, err)
	assert.True(t, exception.IsClass(err, exception.ClassTimedOut))
	assert.Equal(t, model.JobStateAborted, job.State)
}
