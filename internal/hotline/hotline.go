// Package hotline places outbound support calls through Twilio.
package hotline

import (
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

type Service struct {
	client *twilio.RestClient
	from   string
}

func New(config Config) *Service {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: config.AccountSID,
		Password: config.AuthToken,
	})
	return &Service{client: client, from: config.FromNumber}
}

// Dial places a call to the given number that speaks the message, returning
// the call SID.
func (s *Service) Dial(to, message string) (string, error) {
	params := &twilioApi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetTwiml(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Say>%s</Say>
</Response>`, message))

	resp, err := s.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("twilio create call: %w", err)
	}
	if resp.Sid == nil {
		return "", fmt.Errorf("twilio create call: missing sid")
	}
	return *resp.Sid, nil
}
