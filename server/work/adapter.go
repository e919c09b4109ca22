package work

import (
	"fmt"

	"github.com/echocheck/echocheck/server/cron"
	"github.com/echocheck/echocheck/server/models"
	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"
)

const MAX_CONCURRENCY = 1

// WorkerPoolAdapter glues the cron scheduler to the db-backed worker pool:
// periodic triggers only ever enqueue, workers do the actual running.
type WorkerPoolAdapter struct {
	cronScheduler *gocron.Scheduler
	pool          *workerPool
	requeuers     []*requeuer
}

func NewWorkerAdapter(timeZoneArg string) *WorkerPoolAdapter {
	adapter := &WorkerPoolAdapter{
		cronScheduler: cron.NewCronScheduler(timeZoneArg),
		pool:          newWorkerPool(MAX_CONCURRENCY),
	}

	for _, queue := range []string{models.IN_PROGRESS_JOB, models.SCHEDULED_JOB} {
		rq, err := newRequeuer(queue)
		if err != nil {
			logg.Panic(err)
		}
		adapter.requeuers = append(adapter.requeuers, rq)
	}

	return adapter
}

// Start starts the cron scheduler, requeuers & worker pool.
func (adapter *WorkerPoolAdapter) Start() {
	logg.Info("Starting cron scheduler & worker pool")
	adapter.cronScheduler.StartAsync()
	adapter.pool.start()

	for _, rq := range adapter.requeuers {
		rq.start()
	}
}

// Stop stops the cron scheduler, requeuers & worker pool.
func (adapter *WorkerPoolAdapter) Stop() {
	logg.Info("Stopping cron scheduler & worker pool")
	adapter.cronScheduler.Stop()
	adapter.pool.stop()

	for _, rq := range adapter.requeuers {
		rq.stop()
	}
}

// Register binds a name to a handler.
func (adapter *WorkerPoolAdapter) Register(name string, handler Handler) error {
	return adapter.pool.registerHandler(name, handler)
}

// Perform sends a new job to the queue, to be executed as soon as a worker
// is available.
func (adapter *WorkerPoolAdapter) Perform(job JobParams) error {
	logg.Infof("Enqueuing job: %v", job.Name)

	err := adapter.pool.enqueue(job)
	if errors.Is(err, models.ErrDuplicateJob) {
		logg.Warnf("Duplicate job already in queue for: %v", job.Name)
		return nil
	}

	if err != nil {
		return fmt.Errorf("error enqueuing job %v: %v", job.Name, err)
	}

	return nil
}

// PerformIn schedules a job to join the queue after 'delayInSeconds'.
func (adapter *WorkerPoolAdapter) PerformIn(delayInSeconds int64, job JobParams) error {
	return adapter.pool.enqueueIn(delayInSeconds, job)
}

// PeriodicallyPerform enqueues the job on the schedule described by
// 'cronExpression'.
func (adapter *WorkerPoolAdapter) PeriodicallyPerform(cronExpression string, job JobParams) error {
	_, err := adapter.cronScheduler.Cron(cronExpression).Tag(job.Name).
		Do(
			func(job JobParams) {
				if err := adapter.Perform(job); err != nil {
					logg.Error(err)
				}
			},
			job,
		)

	return err
}

func (adapter *WorkerPoolAdapter) RemovePeriodicJob(jobName string) {
	adapter.cronScheduler.RemoveByTag(jobName)
}
