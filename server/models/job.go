package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Job struct {
	BaseModel
	Fails        int
	Name         string
	Handler      string
	Args         string
	LastError    string
	Claimed      bool `gorm:"default:false"`
	EnqueuedAt   *time.Time
	ScheduledFor *time.Time
	JobStatusID  uint
	JobStatus    JobStatus
}

// MarkAsClaimed flips the job's 'claimed' flag only if no other worker got
// there first; reports whether this caller won the claim.
func (job *Job) MarkAsClaimed() (bool, error) {
	inProgressStatus, err := FindJobStatus(IN_PROGRESS_JOB)
	if err != nil {
		return false, err
	}

	result := db.Model(&Job{}).Where("id = ? AND claimed = ?", job.ID, false).Updates(map[string]interface{}{
		"claimed":       true,
		"job_status_id": inProgressStatus.ID,
	})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (job *Job) Update(data map[string]interface{}) error {
	return db.Table("jobs").Where("id = ?", job.ID).Updates(data).Error
}

// CreateUniqueJobByName enqueues a job unless one with the same name is
// already waiting or running, in which case it fails with ErrDuplicateJob.
func CreateUniqueJobByName(name string, handler string, args string) error {
	queuedStatusIDs, err := jobStatusIDs(ENQUEUED_JOB, IN_PROGRESS_JOB, SCHEDULED_JOB)
	if err != nil {
		return err
	}

	result := db.Where("name = ? AND job_status_id IN ?", name, queuedStatusIDs).First(&Job{})
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}

	if result.RowsAffected > 0 {
		return ErrDuplicateJob
	}

	return CreateJob(name, handler, args, nil)
}

// CreateJob enqueues a job; with a non-nil scheduledFor the job sits in the
// 'scheduled' queue until its time comes.
func CreateJob(name string, handler string, args string, scheduledFor *time.Time) error {
	statusName := ENQUEUED_JOB
	if scheduledFor != nil {
		statusName = SCHEDULED_JOB
	}

	jobStatus, err := FindJobStatus(statusName)
	if err != nil {
		return err
	}

	now := time.Now()
	return db.Create(&Job{
		Name:         name,
		Handler:      handler,
		Args:         args,
		EnqueuedAt:   &now,
		ScheduledFor: scheduledFor,
		JobStatusID:  jobStatus.ID,
	}).Error
}

// NextJobToProcess returns the oldest unclaimed job in the 'enqueued' queue.
func NextJobToProcess() (*Job, error) {
	job := Job{}

	enqueuedStatus, err := FindJobStatus(ENQUEUED_JOB)
	if err != nil {
		return nil, err
	}

	err = db.Preload("JobStatus").
		Where("job_status_id = ? AND claimed = ?", enqueuedStatus.ID, false).
		Order("enqueued_at").First(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// LastJobLastUpdated returns a job in the given queue whose record hasn't
// been touched in the last 'minutes' minutes i.e a stuck job.
func LastJobLastUpdated(minutes int, statusName string) (*Job, error) {
	job := Job{}

	jobStatus, err := FindJobStatus(statusName)
	if err != nil {
		return nil, err
	}

	cutOff := time.Now().Add(-time.Duration(minutes) * time.Minute)
	err = db.Where("job_status_id = ? AND updated_at < ?", jobStatus.ID, cutOff).
		Order("updated_at").First(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// FirstScheduledJobToBeQueued returns the next 'scheduled' job whose
// scheduled_for time has passed.
func FirstScheduledJobToBeQueued() (*Job, error) {
	job := Job{}

	scheduledStatus, err := FindJobStatus(SCHEDULED_JOB)
	if err != nil {
		return nil, err
	}

	err = db.Preload("JobStatus").
		Where("job_status_id = ? AND scheduled_for <= ?", scheduledStatus.ID, time.Now()).
		Order("scheduled_for").First(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func jobStatusIDs(names ...string) ([]uint, error) {
	jobStatuses := []JobStatus{}

	err := db.Where("name IN ?", names).Find(&jobStatuses).Error
	if err != nil {
		return nil, err
	}

	if len(jobStatuses) != len(names) {
		return nil, fmt.Errorf("missing job status seed data: want %v, found %v", len(names), len(jobStatuses))
	}

	ids := []uint{}
	for _, jobStatus := range jobStatuses {
		ids = append(ids, jobStatus.ID)
	}

	return ids, nil
}
