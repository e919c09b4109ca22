package models

import (
	"time"

	"github.com/echocheck/echocheck/utils"
)

const (
	ACTIVE_TRIP = "active"
	CLOSED_TRIP = "closed"
)

// Trip is a tracked interval during which the owning user must
// check in every IntervalMinutes.
type Trip struct {
	BaseModel
	UserID          uint       `json:"user_id" gorm:"not null;index"`
	Destination     string     `json:"destination" gorm:"not null"`
	IntervalMinutes int        `json:"interval_minutes" gorm:"not null"`
	Status          string     `json:"status" gorm:"not null;default:active"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	NextCheckDue    time.Time  `json:"next_check_due"`
	LastAlertedAt   *time.Time `json:"-"`
}

// OverdueMinutes reports how far past its deadline the trip is,
// rounded to 2 decimal places.
func (trip *Trip) OverdueMinutes(now time.Time) float64 {
	return utils.Round2(now.Sub(trip.NextCheckDue).Minutes())
}

// AdvanceDeadline recomputes the trip's deadline from 'now' using the trip's
// stored interval & persists it. A very late check-in resets the clock the
// same way an on-time one does.
func (trip *Trip) AdvanceDeadline(now time.Time) error {
	nextCheckDue := now.Add(time.Duration(trip.IntervalMinutes) * time.Minute)

	err := db.Model(&Trip{}).Where("id = ?", trip.ID).
		Update("next_check_due", nextCheckDue).Error
	if err != nil {
		return err
	}

	trip.NextCheckDue = nextCheckDue
	return nil
}

// MarkAlerted records that the watchdog has alerted contacts for the trip's
// current missed deadline, so it's not alerted again until the deadline moves.
func (trip *Trip) MarkAlerted(now time.Time) error {
	err := db.Model(&Trip{}).Where("id = ?", trip.ID).
		Update("last_alerted_at", now).Error
	if err != nil {
		return err
	}

	trip.LastAlertedAt = &now
	return nil
}

// CreateTrip force-closes every other active trip owned by the user before
// inserting the new one, so at most one trip per user is ever active.
func CreateTrip(userID uint, destination string, intervalMinutes int) (*Trip, error) {
	now := time.Now().UTC()

	err := db.Model(&Trip{}).
		Where("user_id = ? AND status = ?", userID, ACTIVE_TRIP).
		Updates(map[string]interface{}{"status": CLOSED_TRIP, "ended_at": now}).Error
	if err != nil {
		return nil, err
	}

	trip := &Trip{
		UserID:          userID,
		Destination:     destination,
		IntervalMinutes: intervalMinutes,
		Status:          ACTIVE_TRIP,
		StartedAt:       now,
		NextCheckDue:    now.Add(time.Duration(intervalMinutes) * time.Minute),
	}

	err = db.Create(trip).Error
	if err != nil {
		return nil, err
	}

	return trip, nil
}

func FindActiveTrip(userID uint) (*Trip, error) {
	trip := Trip{}

	err := db.First(&trip, "user_id = ? AND status = ?", userID, ACTIVE_TRIP).Error
	if err != nil {
		return nil, err
	}

	return &trip, nil
}

// FindOwnedActiveTrip fetches the trip only when it's active & owned by the
// user - someone else's trip looks exactly like a missing one.
func FindOwnedActiveTrip(tripID interface{}, userID uint) (*Trip, error) {
	trip := Trip{}

	err := db.First(&trip, "id = ? AND user_id = ? AND status = ?", tripID, userID, ACTIVE_TRIP).Error
	if err != nil {
		return nil, err
	}

	return &trip, nil
}

// OverdueTrips returns the user's active trips whose deadline has lapsed.
func OverdueTrips(userID uint, now time.Time) ([]Trip, error) {
	trips := []Trip{}

	err := db.Where("user_id = ? AND status = ? AND next_check_due < ?", userID, ACTIVE_TRIP, now).
		Find(&trips).Error
	if err != nil {
		return nil, err
	}

	return trips, nil
}

// OverdueTripsToAlert returns overdue active trips across all users that
// haven't been alerted for their current deadline yet.
func OverdueTripsToAlert(now time.Time) ([]Trip, error) {
	trips := []Trip{}

	err := db.Where(
		"status = ? AND next_check_due < ? AND (last_alerted_at IS NULL OR last_alerted_at < next_check_due)",
		ACTIVE_TRIP, now,
	).Find(&trips).Error
	if err != nil {
		return nil, err
	}

	return trips, nil
}
