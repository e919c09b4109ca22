package work

import (
	"fmt"
	"time"

	"github.com/echocheck/echocheck/colors"
	"github.com/echocheck/echocheck/server/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// stuckJobCutoffMinutes is how long a job may sit in-progress before the
// requeuer assumes its worker died and puts it back on the queue.
const stuckJobCutoffMinutes = 10

var supportedQueues = map[string]bool{models.IN_PROGRESS_JOB: true, models.SCHEDULED_JOB: true}

// requeuer moves jobs back onto the 'enqueued' queue: stuck in-progress jobs
// whose worker likely died, and scheduled jobs whose time has come.
type requeuer struct {
	fromQueue string
	stopChan  chan struct{}
}

func newRequeuer(fromQueue string) (*requeuer, error) {
	if !supportedQueues[fromQueue] {
		return nil, fmt.Errorf("%v is not a supported queue, must be in %v", fromQueue, supportedQueues)
	}

	return &requeuer{
		fromQueue: fromQueue,
		stopChan:  make(chan struct{}),
	}, nil
}

func (r *requeuer) start() {
	go r.loop()
}

func (r *requeuer) stop() {
	r.stopChan <- struct{}{}
}

func (r *requeuer) loop() {
	sleepBackOff := 5
	rateLimiter := time.NewTicker(DefaultTickerDuration)
	defer rateLimiter.Stop()

	logg.Infof("Starting %s job requeuer", r.fromQueue)
	for {
		select {
		case <-r.stopChan:
			logg.Infof("Stopping %s job requeuer", r.fromQueue)
			return
		case <-rateLimiter.C:
			job, err := r.nextJob()

			// If no job found, sleep for 'sleepBackOff' seconds
			if errors.Is(err, gorm.ErrRecordNotFound) {
				rateLimiter.Reset(time.Duration(sleepBackOff) * time.Second)
				continue
			}

			if err != nil {
				r.logError(err)
				rateLimiter.Reset(TickerDurationOnError)
				continue
			}

			r.requeue(job)
			rateLimiter.Reset(DefaultTickerDuration)
		}
	}
}

func (r *requeuer) nextJob() (*models.Job, error) {
	if r.fromQueue == models.IN_PROGRESS_JOB {
		return models.LastJobLastUpdated(stuckJobCutoffMinutes, models.IN_PROGRESS_JOB)
	}
	return models.FirstScheduledJobToBeQueued()
}

func (r *requeuer) requeue(job *models.Job) {
	jobStatus, err := models.FindJobStatus(models.ENQUEUED_JOB)
	if err != nil {
		r.logError(err)
		return
	}

	err = job.Update(map[string]interface{}{
		"claimed":       false,
		"job_status_id": jobStatus.ID,
		"enqueued_at":   time.Now(),
	})
	if err != nil {
		r.logError(err)
		return
	}

	r.logInfof("job id=%v requeued", job.ID)
}

func (r *requeuer) logInfof(template string, args ...interface{}) {
	prefix := colors.Yellow(fmt.Sprintf("[%s job requeuer] ", r.fromQueue))
	logg.Infof(prefix+template, args...)
}

func (r *requeuer) logError(args ...interface{}) {
	prefix := colors.Red(fmt.Sprintf("[%s job requeuer] ", r.fromQueue))
	logg.Error(append([]interface{}{prefix}, args...)...)
}
