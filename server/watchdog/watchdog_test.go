package watchdog

import (
	"testing"
	"time"

	"github.com/echocheck/echocheck/server/models"
	"github.com/echocheck/echocheck/server/twilio"
	"github.com/echocheck/echocheck/server/work"
	"github.com/echocheck/echocheck/shared"
	"github.com/stretchr/testify/assert"
)

func newTestWatchdog(t *testing.T) *Watchdog {
	twilioClient := twilio.NewClient(shared.TwilioConfig{
		AccountSid:  "ACtest",
		AuthToken:   "token",
		PhoneNumber: "+14165550000",
	}, true)

	wd, err := NewWatchdog(work.NewWorkerAdapter("UTC"), twilioClient, "*/5 * * * *")
	assert.Nil(t, err)

	return wd
}

func TestAlertOverdueTrips(t *testing.T) {
	models.InitializeTestDb()
	wd := newTestWatchdog(t)

	user := &models.User{Name: "Tony Stark", Email: "stark@avengers.com"}
	assert.Nil(t, models.CreateUser(user, "very-secure"))
	assert.Nil(t, user.AddContact(&models.Contact{Name: "Pepper Potts", Phone: "4165551234"}))

	trip, err := models.CreateTrip(user.ID, "Monaco", 10)
	assert.Nil(t, err)

	// Deadline missed half an hour ago
	assert.Nil(t, trip.AdvanceDeadline(time.Now().UTC().Add(-40*time.Minute)))

	assert.Nil(t, wd.alertOverdueTrips(nil))

	// The trip is marked alerted, so the next scan finds nothing
	toAlert, err := models.OverdueTripsToAlert(time.Now().UTC())
	assert.Nil(t, err)
	assert.Empty(t, toAlert, "A missed deadline should only be alerted once")

	// Until a check-in sets a new deadline & that one lapses too
	assert.Nil(t, trip.AdvanceDeadline(time.Now().UTC()))
	toAlert, err = models.OverdueTripsToAlert(trip.NextCheckDue.Add(time.Minute))
	assert.Nil(t, err)
	assert.Len(t, toAlert, 1)
}

func TestAlertWithNoContacts(t *testing.T) {
	models.InitializeTestDb()
	wd := newTestWatchdog(t)

	user := &models.User{Name: "Tony Stark", Email: "stark@avengers.com"}
	assert.Nil(t, models.CreateUser(user, "very-secure"))

	trip, err := models.CreateTrip(user.ID, "Monaco", 10)
	assert.Nil(t, err)
	assert.Nil(t, trip.AdvanceDeadline(time.Now().UTC().Add(-40*time.Minute)))

	assert.Nil(t, wd.alertOverdueTrips(nil))

	// No contacts to reach, but the deadline is still only handled once
	toAlert, err := models.OverdueTripsToAlert(time.Now().UTC())
	assert.Nil(t, err)
	assert.Empty(t, toAlert)
}

func TestOverdueMessage(t *testing.T) {
	now := time.Now().UTC()
	trip := &models.Trip{
		Destination:  "Monaco",
		NextCheckDue: now.Add(-30 * time.Minute),
	}

	message := overdueMessage("Pepper Potts", "Tony Stark", trip, now)
	assert.Contains(t, message, "Hi Pepper Potts")
	assert.Contains(t, message, "Tony Stark's trusted contact")
	assert.Contains(t, message, "30 minute(s) late")
	assert.Contains(t, message, "trip to Monaco")
}
