package twilio

import (
	"fmt"
	"strings"

	"github.com/echocheck/echocheck/shared"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ClientWrapper wraps the Twilio REST client with the two channels this
// service sends on. In test mode no network calls are made.
type ClientWrapper struct {
	client   *twilio.RestClient
	config   shared.TwilioConfig
	testMode bool
}

func NewClient(config shared.TwilioConfig, testMode bool) *ClientWrapper {
	var client *twilio.RestClient
	if !testMode {
		client = twilio.NewRestClientWithParams(twilio.RestClientParams{
			Username: config.AccountSid,
			Password: config.AuthToken,
		})
	}

	return &ClientWrapper{
		client:   client,
		config:   config,
		testMode: testMode,
	}
}

// IsConfigured reports whether account credentials are present at all -
// distinct from a per-channel sender identity being missing.
func (cw *ClientWrapper) IsConfigured() bool {
	return cw.config.AccountSid != "" && cw.config.AuthToken != ""
}

// SmsEnabled reports whether the SMS channel has a sender identity.
func (cw *ClientWrapper) SmsEnabled() bool {
	return cw.config.PhoneNumber != ""
}

// WhatsappEnabled reports whether the WhatsApp channel has a sender identity.
func (cw *ClientWrapper) WhatsappEnabled() bool {
	return cw.config.WhatsappNumber != ""
}

// SendSms delivers 'msg' to the given phone number & returns the provider's
// message id.
func (cw *ClientWrapper) SendSms(to, msg string) (string, error) {
	return cw.createMessage(cw.config.PhoneNumber, to, msg)
}

// SendWhatsapp delivers 'msg' over WhatsApp. Twilio addresses the channel by
// prefixing both parties with "whatsapp:".
func (cw *ClientWrapper) SendWhatsapp(to, msg string) (string, error) {
	from := "whatsapp:" + strings.TrimPrefix(cw.config.WhatsappNumber, "+")
	recipient := "whatsapp:" + strings.TrimPrefix(to, "+")

	return cw.createMessage(from, recipient, msg)
}

func (cw *ClientWrapper) createMessage(from, to, msg string) (string, error) {
	if cw.testMode {
		return fmt.Sprintf("test-sid-%v", to), nil
	}

	params := &openapi.CreateMessageParams{}
	params.SetFrom(from)
	params.SetTo(to)
	params.SetBody(msg)

	resp, err := cw.client.ApiV2010.CreateMessage(params)
	if err != nil {
		return "", err
	}

	if resp.Sid == nil {
		return "", fmt.Errorf("twilio returned no message sid for %v", to)
	}

	return *resp.Sid, nil
}
