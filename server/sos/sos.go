package sos

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/echocheck/echocheck/server/models"
	"github.com/echocheck/echocheck/server/twilio"
	"github.com/pkg/errors"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"

	DefaultReason = "Emergency"
)

var nonDigits = regexp.MustCompile(`\D`)

// DeliveryResult is the outcome of one send attempt to one contact on one
// channel. Failures are captured here, never raised.
type DeliveryResult struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Status     string `json:"status"`
	MessageSid string `json:"message_sid,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DeepLink is a pre-filled wa.me message link - a fallback channel that needs
// no delivery provider.
type DeepLink struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Link  string `json:"link"`
}

type Report struct {
	GoogleMapsLink  string           `json:"google_maps_link"`
	Timestamp       time.Time        `json:"timestamp"`
	SmsEnabled      bool             `json:"sms_enabled"`
	SmsResults      []DeliveryResult `json:"sms_results"`
	WhatsappEnabled bool             `json:"whatsapp_enabled"`
	WhatsappResults []DeliveryResult `json:"whatsapp_results"`
	WhatsappLinks   []DeepLink       `json:"whatsapp_links"`
	ContactCount    int              `json:"contact_count"`
	SmsWarning      string           `json:"sms_warning,omitempty"`
	WhatsappWarning string           `json:"whatsapp_warning,omitempty"`
	Warning         string           `json:"warning,omitempty"`
}

// Broadcaster records SOS events & fans alerts out to the user's trusted
// contacts over every channel the twilio client has configured.
type Broadcaster struct {
	twilioClient *twilio.ClientWrapper
}

func NewBroadcaster(twilioClient *twilio.ClientWrapper) *Broadcaster {
	return &Broadcaster{twilioClient: twilioClient}
}

// Trigger persists the SOS event & fans out notifications. Delivery failures
// are collected per contact; only a data-layer failure makes the whole call
// fail.
func (b *Broadcaster) Trigger(userID uint, latArg, lngArg, reason string) (*Report, error) {
	if strings.TrimSpace(reason) == "" {
		reason = DefaultReason
	}

	// Coordinates are a nice-to-have on an SOS - coerce leniently,
	// never reject.
	lat := parseOptionalCoord(latArg)
	lng := parseOptionalCoord(lngArg)

	userName := "User"
	user, err := models.FindUserBy("id", userID)
	if err != nil && !errors.Is(err, models.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "sos: user lookup failed")
	}
	if user != nil && user.Name != "" {
		userName = user.Name
	}

	now := time.Now().UTC()
	err = models.CreateSosEvent(&models.SosEvent{
		UserID:    userID,
		Reason:    reason,
		Lat:       lat,
		Lng:       lng,
		Timestamp: now,
	})
	if err != nil {
		return nil, errors.Wrap(err, "sos: failed to record event")
	}

	contacts, err := models.ContactsFor(userID)
	if err != nil {
		return nil, errors.Wrap(err, "sos: failed to load contacts")
	}

	report := &Report{
		GoogleMapsLink:  mapsLink(lat, lng),
		Timestamp:       now,
		SmsResults:      []DeliveryResult{},
		WhatsappResults: []DeliveryResult{},
		WhatsappLinks:   []DeepLink{},
		ContactCount:    len(contacts),
	}

	messageBody := alertMessage(userName, reason, lat, lng)
	for _, contact := range contacts {
		report.WhatsappLinks = append(report.WhatsappLinks, deepLink(contact, messageBody))
	}

	smsAvailable := b.twilioClient.IsConfigured() && b.twilioClient.SmsEnabled()
	whatsappAvailable := b.twilioClient.IsConfigured() && b.twilioClient.WhatsappEnabled()

	if !smsAvailable {
		report.SmsWarning = "Twilio phone number not configured"
	}
	if !whatsappAvailable {
		report.WhatsappWarning = "Twilio WhatsApp number not configured"
	}
	if !smsAvailable && !whatsappAvailable {
		report.Warning = "SMS and WhatsApp are not configured. Please set up Twilio credentials in your environment variables."
	}

	if smsAvailable && len(contacts) > 0 {
		report.SmsEnabled = true
		for _, contact := range contacts {
			report.SmsResults = append(report.SmsResults, b.sendSms(contact, messageBody))
		}
	}

	if whatsappAvailable && len(contacts) > 0 {
		report.WhatsappEnabled = true
		for _, contact := range contacts {
			report.WhatsappResults = append(report.WhatsappResults, b.sendWhatsapp(contact, messageBody))
		}
	}

	return report, nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func (b *Broadcaster) sendSms(contact models.Contact, messageBody string) DeliveryResult {
	result := DeliveryResult{Name: contact.Name, Phone: contact.Phone}

	sid, err := b.twilioClient.SendSms(contact.Phone, messageBody)
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		return result
	}

	result.Status = StatusSent
	result.MessageSid = sid
	return result
}

func (b *Broadcaster) sendWhatsapp(contact models.Contact, messageBody string) DeliveryResult {
	result := DeliveryResult{Name: contact.Name, Phone: contact.Phone}

	sid, err := b.twilioClient.SendWhatsapp(contact.Phone, messageBody)
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		return result
	}

	result.Status = StatusSent
	result.MessageSid = sid
	return result
}

func alertMessage(userName, reason string, lat, lng *float64) string {
	locationText := "Location not available"
	if lat != nil && lng != nil {
		locationText = fmt.Sprintf("Location: %v", mapsLink(lat, lng))
	}

	return fmt.Sprintf(
		"🚨 EMERGENCY SOS ALERT 🚨\n\n"+
			"%v has triggered an emergency alert!\n\n"+
			"Reason: %v\n%v\n\n"+
			"Please check on them immediately!",
		userName, reason, locationText)
}

func mapsLink(lat, lng *float64) string {
	if lat == nil || lng == nil {
		return "Location not provided"
	}

	return fmt.Sprintf("https://www.google.com/maps?q=%v,%v", *lat, *lng)
}

func deepLink(contact models.Contact, messageBody string) DeepLink {
	return DeepLink{
		Name:  contact.Name,
		Phone: contact.Phone,
		Link: fmt.Sprintf("https://wa.me/%v?text=%v",
			nonDigits.ReplaceAllString(contact.Phone, ""),
			url.QueryEscape(messageBody)),
	}
}

func parseOptionalCoord(arg string) *float64 {
	arg = strings.TrimSpace(arg)
	if arg == "" || strings.EqualFold(arg, "null") {
		return nil
	}

	value, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return nil
	}

	return &value
}
