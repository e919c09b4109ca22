package models

import "time"

// SosEvent is an append-only record of an emergency alert. Coordinates are
// optional - an SOS without a location is still an SOS.
type SosEvent struct {
	BaseModel
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	Reason    string    `json:"reason" gorm:"not null"`
	Lat       *float64  `json:"lat,omitempty"`
	Lng       *float64  `json:"lng,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func CreateSosEvent(event *SosEvent) error {
	return db.Create(event).Error
}

func SosEventsFor(userID uint) ([]SosEvent, error) {
	events := []SosEvent{}

	err := db.Order("timestamp DESC").Limit(500).Find(&events, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}

	return events, nil
}
