package models

import "time"

// CheckIn is an append-only record of a safety confirmation on a trip.
type CheckIn struct {
	BaseModel
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	TripID    uint      `json:"trip_id" gorm:"not null;index"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

func CreateCheckIn(checkIn *CheckIn) error {
	return db.Create(checkIn).Error
}

func CheckInsForTrip(tripID uint) ([]CheckIn, error) {
	checkIns := []CheckIn{}

	err := db.Order("timestamp").Find(&checkIns, "trip_id = ?", tripID).Error
	if err != nil {
		return nil, err
	}

	return checkIns, nil
}
