package watchdog

import (
	"fmt"
	"time"

	"github.com/echocheck/echocheck/server/logger"
	"github.com/echocheck/echocheck/server/models"
	"github.com/echocheck/echocheck/server/twilio"
	"github.com/echocheck/echocheck/server/work"
)

const alertJobName = "alertOverdueTrips"

var logg = logger.NewLogger()

// Watchdog is the optional push layer on top of the overdue-trip query: on a
// schedule it enqueues a scan that alerts the trusted contacts of every trip
// owner who missed a check-in deadline. The on-demand scan endpoint stays a
// pure query whether or not the watchdog runs.
type Watchdog struct {
	workerPool     *work.WorkerPoolAdapter
	twilioClient   *twilio.ClientWrapper
	cronExpression string
}

func NewWatchdog(workerPool *work.WorkerPoolAdapter, twilioClient *twilio.ClientWrapper, cronExpression string) (*Watchdog, error) {
	watchdog := &Watchdog{
		workerPool:     workerPool,
		twilioClient:   twilioClient,
		cronExpression: cronExpression,
	}

	err := workerPool.Register(alertJobName, watchdog.alertOverdueTrips)
	if err != nil {
		return nil, err
	}

	return watchdog, nil
}

// Schedule puts the periodic scan on the worker pool's cron scheduler.
func (wd *Watchdog) Schedule() error {
	return wd.workerPool.PeriodicallyPerform(wd.cronExpression, work.JobParams{
		Name:    alertJobName,
		Handler: alertJobName,
		Unique:  true,
		Args:    map[string]interface{}{},
	})
}

// alertOverdueTrips messages the trusted contacts of every overdue trip that
// hasn't been alerted for its current deadline. One alert per missed
// deadline - a new deadline arms the trip again.
func (wd *Watchdog) alertOverdueTrips(map[string]interface{}) error {
	now := time.Now().UTC()

	trips, err := models.OverdueTripsToAlert(now)
	if err != nil {
		return err
	}

	alerted := 0
	for i := range trips {
		trip := &trips[i]

		if err := wd.alertContactsFor(trip, now); err != nil {
			logg.Errorf("watchdog: trip %v: %v", trip.ID, err)
			continue
		}
		alerted++
	}

	if len(trips) > 0 {
		logg.Infof("%v overdue trip(s) found, contacts alerted for %v", len(trips), alerted)
	}

	return nil
}

func (wd *Watchdog) alertContactsFor(trip *models.Trip, now time.Time) error {
	if !wd.twilioClient.IsConfigured() || !wd.twilioClient.SmsEnabled() {
		logg.Warn("watchdog: twilio SMS not configured, skipping overdue alerts")
		return nil
	}

	user, err := models.FindUserBy("id", trip.UserID)
	if err != nil {
		return err
	}

	contacts, err := models.ContactsFor(trip.UserID)
	if err != nil {
		return err
	}

	if len(contacts) == 0 {
		logg.Warnf("watchdog: user %v has no trusted contacts to alert", trip.UserID)
		return trip.MarkAlerted(now)
	}

	for _, contact := range contacts {
		message := overdueMessage(contact.Name, user.Name, trip, now)

		_, err := wd.twilioClient.SendSms(contact.Phone, message)
		if err != nil {
			// A failed send for one contact shouldn't silence the rest.
			logg.Errorf("watchdog: send to %v failed: %v", contact.Phone, err)
		}
	}

	return trip.MarkAlerted(now)
}

func overdueMessage(contactName, userName string, trip *models.Trip, now time.Time) string {
	return fmt.Sprintf(
		"Hi %v,\n"+
			"you're getting this message because you're %v's trusted contact. "+
			"%v is %.0f minute(s) late checking in on their trip to %v - "+
			"can you please reach out to make sure they're okay?\nThanks",
		contactName, userName, userName, trip.OverdueMinutes(now), trip.Destination)
}
