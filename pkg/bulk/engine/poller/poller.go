// Package poller drives asynchronous bulk jobs to a terminal state. One
// job's poll loop never blocks another's: each Await call owns its job and
// nothing else.
package poller

import (
	"context"
	"time"

	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/core/metrics"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/logger"
)

const moduleName = "poller"

// finalPollTimeout bounds the confirmation poll issued after a cancellation.
const finalPollTimeout = 5 * time.Second

// JobPoller polls submitted jobs until they complete, fail, or the wait
// budget runs out. A job reported ABORTED locally may still be running on the
// backend; its handle stays valid for later re-polling.
type JobPoller struct {
	executor port.Executor
	cfg      config.PollingConfig
	recorder metrics.MetricRecorder
}

// NewJobPoller creates a new JobPoller.
func NewJobPoller(executor port.Executor, opCfg *config.OperationConfig, recorder metrics.MetricRecorder) *JobPoller {
	return &JobPoller{
		executor: executor,
		cfg:      opCfg.Polling,
		recorder: recorder,
	}
}

// Await polls the job until terminal. The wait budget (from configuration,
// or overridden with a positive waitOverride) bounds the total polling time;
// on exhaustion the job is marked ABORTED locally and a TIMED_OUT error is
// returned, with the backend state explicitly unknown.
//
// On context cancellation the poller issues one final confirmation poll,
// then requests backend cancellation and reports ABORTED without assuming
// the cancellation succeeded.
func (p *JobPoller) Await(ctx context.Context, job *model.Job, waitOverride time.Duration) (*port.JobStatus, error) {
	budget := time.Duration(p.cfg.WaitBudget) * time.Millisecond
	if waitOverride > 0 {
		budget = waitOverride
	}
	deadline := time.Now().Add(budget)

	interval := time.Duration(p.cfg.InitialInterval) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	maxInterval := time.Duration(p.cfg.MaxInterval) * time.Millisecond
	factor := p.cfg.Factor
	if factor < 1 {
		factor = 1
	}

	for {
		status, err := p.executor.PollJob(ctx, port.JobHandle(job.Handle))
		job.PollCount++
		job.LastPolled = time.Now()

		if err != nil {
			if ctx.Err() != nil {
				return p.handleCancellation(ctx, job)
			}
			if !exception.IsRetryable(err) {
				if terr := job.TransitionTo(model.JobStateFailed); terr != nil {
					logger.Warnf("JobPoller: could not mark job %s as %s: %v", job.ID, model.JobStateFailed, terr)
				}
				return nil, exception.New(moduleName, exception.ClassOf(err),
					"job poll failed", err)
			}
			logger.Warnf("JobPoller: transient poll failure for job %s: %v", job.ID, err)
		} else {
			p.recorder.RecordPoll(ctx, status.State)
			if transitioned := p.applyState(job, status.State); transitioned {
				logger.Debugf("JobPoller: job %s is now %s (poll %d).", job.ID, job.State, job.PollCount)
			}
			if job.State == model.JobStateComplete || job.State == model.JobStateFailed {
				job.Results = status.Results
				return &status, nil
			}
		}

		if time.Now().Add(interval).After(deadline) {
			// Budget exhausted. The backend job keeps running; the caller can
			// re-poll later using the job handle.
			if terr := job.TransitionTo(model.JobStateAborted); terr != nil {
				logger.Warnf("JobPoller: could not mark job %s as %s: %v", job.ID, model.JobStateAborted, terr)
			}
			return nil, exception.Newf(moduleName, exception.ClassTimedOut,
				"wait budget of %s exhausted for job %s (backend state unknown, handle %s still valid)",
				budget, job.ID, job.Handle)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return p.handleCancellation(ctx, job)
		case <-timer.C:
		}

		interval = time.Duration(float64(interval) * factor)
		if maxInterval > 0 && interval > maxInterval {
			interval = maxInterval
		}
	}
}

// applyState moves the job's local state machine forward. A queued job
// transitions to IN_PROGRESS on the first acknowledged poll; terminal backend
// states transition directly.
func (p *JobPoller) applyState(job *model.Job, state model.JobState) bool {
	if job.State == state {
		return false
	}
	switch state {
	case model.JobStateInProgress, model.JobStateComplete, model.JobStateFailed:
		return job.TransitionTo(state) == nil
	case model.JobStateQueued:
		return false
	default:
		return false
	}
}

// handleCancellation performs the post-cancel protocol: one final poll with a
// fresh bounded context to catch a job that finished while we were being
// cancelled, then a best-effort backend cancel request, then a local ABORTED.
func (p *JobPoller) handleCancellation(ctx context.Context, job *model.Job) (*port.JobStatus, error) {
	finalCtx, cancel := context.WithTimeout(context.Background(), finalPollTimeout)
	defer cancel()

	if status, err := p.executor.PollJob(finalCtx, port.JobHandle(job.Handle)); err == nil {
		if status.State == model.JobStateComplete || status.State == model.JobStateFailed {
			p.applyState(job, status.State)
			job.Results = status.Results
			return &status, nil
		}
	}

	if accepted, err := p.executor.CancelJob(finalCtx, port.JobHandle(job.Handle)); err != nil {
		logger.Warnf("JobPoller: cancel request for job %s failed: %v", job.ID, err)
	} else if !accepted {
		logger.Warnf("JobPoller: backend declined cancel request for job %s.", job.ID)
	}

	if terr := job.TransitionTo(model.JobStateAborted); terr != nil {
		logger.Warnf("JobPoller: could not mark job %s as %s: %v", job.ID, model.JobStateAborted, terr)
	}
	return nil, exception.Newf(moduleName, exception.ClassTimedOut,
		"polling for job %s cancelled (backend state unknown, handle %s still valid)", job.ID, job.Handle)
}
