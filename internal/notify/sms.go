package notify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/providers"
)

var (
	nonDialable = regexp.MustCompile(`[^\d+]`)
	tenDigits   = regexp.MustCompile(`^\d{10}$`)
	e164        = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
)

// SMSSender sends a text message to an E.164 number.
type SMSSender interface {
	SendMessage(phoneNumber, message string) error
}

// MockSMSSender logs instead of sending.
type MockSMSSender struct {
	logger *logrus.Logger
}

func NewMockSMSSender(logger *logrus.Logger) *MockSMSSender {
	return &MockSMSSender{logger: logger}
}

func (s *MockSMSSender) SendMessage(phoneNumber, message string) error {
	s.logger.WithField("phone", phoneNumber).Infof("MOCK SMS: %s", message)
	return nil
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSMSSender sends through the Twilio REST API behind a circuit breaker
// and a per-recipient rate limit.
type TwilioSMSSender struct {
	api         messageCreator
	fromNumber  string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *SMSRateLimiter
	logger      *logrus.Logger
}

func NewTwilioSMSSender(accountSID, authToken, fromNumber string, rateLimiter *SMSRateLimiter, logger *logrus.Logger) *TwilioSMSSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newTwilioSMSSender(client.Api, fromNumber, rateLimiter, logger)
}

func newTwilioSMSSender(api messageCreator, fromNumber string, rateLimiter *SMSRateLimiter, logger *logrus.Logger) *TwilioSMSSender {
	return &TwilioSMSSender{
		api:         api,
		fromNumber:  fromNumber,
		breaker:     providers.NewCircuitBreaker("twilio", 5, 30*time.Second, logger),
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

func (s *TwilioSMSSender) SendMessage(phoneNumber, message string) error {
	to, err := NormalizePhoneNumber(phoneNumber)
	if err != nil {
		return err
	}
	if s.rateLimiter != nil {
		if err := s.rateLimiter.Allow(to); err != nil {
			return err
		}
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.fromNumber)
	params.SetBody(message)

	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.api.CreateMessage(params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return fmt.Errorf("SMS service temporarily unavailable: %w", err)
		}
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	entry := s.logger.WithField("phone", to)
	if msg, ok := res.(*twilioApi.ApiV2010Message); ok && msg != nil && msg.Sid != nil {
		entry = entry.WithField("sid", *msg.Sid)
	}
	entry.Info("SMS sent")
	return nil
}

// NormalizePhoneNumber returns the number in E.164 form. Ten-digit numbers are
// assumed to be US numbers.
func NormalizePhoneNumber(phone string) (string, error) {
	cleaned := nonDialable.ReplaceAllString(phone, "")
	if !strings.HasPrefix(cleaned, "+") {
		if !tenDigits.MatchString(cleaned) {
			return "", fmt.Errorf("invalid phone number format: %q", phone)
		}
		cleaned = "+1" + cleaned
	}
	if !e164.MatchString(cleaned) {
		return "", fmt.Errorf("invalid phone number format: %q", phone)
	}
	return cleaned, nil
}

// SMSRateLimiter allows at most maxRequests messages per recipient per window.
type SMSRateLimiter struct {
	mu          sync.Mutex
	requests    map[string][]time.Time
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

func NewSMSRateLimiter(maxRequests int, window time.Duration) *SMSRateLimiter {
	return &SMSRateLimiter{
		requests:    make(map[string][]time.Time),
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

func (rl *SMSRateLimiter) Allow(recipient string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	valid := rl.requests[recipient][:0]
	for _, at := range rl.requests[recipient] {
		if at.After(cutoff) {
			valid = append(valid, at)
		}
	}

	if len(valid) >= rl.maxRequests {
		rl.requests[recipient] = valid
		return fmt.Errorf("rate limit exceeded: maximum %d SMS per %v", rl.maxRequests, rl.window)
	}
	rl.requests[recipient] = append(valid, now)
	return nil
}

// PreferenceSource resolves how a user wants to be reached.
type PreferenceSource interface {
	GetUserPreferences(ctx context.Context, userID string) (*models.UserPreferences, error)
}

// SMSDispatcher texts users who opted into SMS alerts.
type SMSDispatcher struct {
	sender SMSSender
	prefs  PreferenceSource
	logger *logrus.Logger
}

func NewSMSDispatcher(sender SMSSender, prefs PreferenceSource, logger *logrus.Logger) *SMSDispatcher {
	return &SMSDispatcher{sender: sender, prefs: prefs, logger: logger}
}

func (d *SMSDispatcher) Notify(ctx context.Context, userID string, n Notification) error {
	prefs, err := d.prefs.GetUserPreferences(ctx, userID)
	if err != nil || !prefs.NotifySMS {
		return nil
	}
	if prefs.PhoneNumber == "" {
		return fmt.Errorf("user %s: %w", userID, ErrNoRecipient)
	}

	body := n.Title
	if n.Body != "" {
		body += "\n" + n.Body
	}
	return d.sender.SendMessage(prefs.PhoneNumber, body)
}
