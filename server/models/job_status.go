package models

const (
	ENQUEUED_JOB    = "enqueued"
	IN_PROGRESS_JOB = "in-progress"
	SUCCESSFUL_JOB  = "successful"
	DEAD_JOB        = "dead"
	SCHEDULED_JOB   = "scheduled"
)

type JobStatus struct {
	BaseModel
	Name string `json:"name"`
	Jobs []Job  `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
}

func FindJobStatus(name string) (*JobStatus, error) {
	jobStatus := JobStatus{}

	err := db.Select("id", "name").First(&jobStatus, "name = ?", name).Error
	if err != nil {
		return nil, err
	}

	return &jobStatus, nil
}
