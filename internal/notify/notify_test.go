package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/store"
	"github.com/jstittsworth/fantasy-advisor/pkg/logger"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Notify(ctx context.Context, userID string, n Notification) error {
	args := m.Called(ctx, userID, n)
	return args.Error(0)
}

type mockCreator struct {
	mock.Mock
}

func (m *mockCreator) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	args := m.Called(params)
	msg, _ := args.Get(0).(*twilioApi.ApiV2010Message)
	return msg, args.Error(1)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendMessage(phone, message string) error {
	return m.Called(phone, message).Error(0)
}

type prefsMap map[string]*models.UserPreferences

func (p prefsMap) GetUserPreferences(_ context.Context, userID string) (*models.UserPreferences, error) {
	if prefs, ok := p[userID]; ok {
		return prefs, nil
	}
	return nil, store.ErrNotFound
}

func TestMultiDispatcher_AttemptsEveryChannel(t *testing.T) {
	ctx := context.Background()
	n := Notification{Type: "injury_alert", Title: "Out"}

	failing := &mockDispatcher{}
	failing.On("Notify", ctx, "u1", n).Return(errors.New("sms down"))
	working := &mockDispatcher{}
	working.On("Notify", ctx, "u1", n).Return(nil)

	err := NewMultiDispatcher(failing, working).Notify(ctx, "u1", n)
	assert.EqualError(t, err, "sms down")
	failing.AssertExpectations(t)
	working.AssertExpectations(t)
}

func TestSMSDispatcher_RespectsPreferences(t *testing.T) {
	ctx := context.Background()
	sender := &mockSender{}
	sender.On("SendMessage", "+15551234567", "Player ruled out\nSwap in bench RB").Return(nil).Once()

	prefs := prefsMap{
		"texter": {UserID: "texter", NotifySMS: true, PhoneNumber: "+15551234567"},
		"quiet":  {UserID: "quiet", NotifySMS: false, PhoneNumber: "+15550000000"},
		"broken": {UserID: "broken", NotifySMS: true},
	}
	d := NewSMSDispatcher(sender, prefs, logger.NewTestLogger())
	n := Notification{Title: "Player ruled out", Body: "Swap in bench RB"}

	require.NoError(t, d.Notify(ctx, "texter", n))
	require.NoError(t, d.Notify(ctx, "quiet", n))
	require.NoError(t, d.Notify(ctx, "stranger", n))
	assert.ErrorIs(t, d.Notify(ctx, "broken", n), ErrNoRecipient)
	sender.AssertExpectations(t)
}

func TestTwilioSMSSender_SendsNormalizedNumber(t *testing.T) {
	creator := &mockCreator{}
	sid := "SM123"
	creator.On("CreateMessage", mock.MatchedBy(func(p *twilioApi.CreateMessageParams) bool {
		return p.To != nil && *p.To == "+15551234567" && p.From != nil && *p.From == "+15550001111"
	})).Return(&twilioApi.ApiV2010Message{Sid: &sid}, nil)

	sender := newTwilioSMSSender(creator, "+15550001111", NewSMSRateLimiter(10, time.Hour), logger.NewTestLogger())
	require.NoError(t, sender.SendMessage("(555) 123-4567", "hello"))
	creator.AssertExpectations(t)

	assert.Error(t, sender.SendMessage("12", "hello"))
}

func TestTwilioSMSSender_BreakerOpensOnFailures(t *testing.T) {
	creator := &mockCreator{}
	creator.On("CreateMessage", mock.Anything).Return(nil, errors.New("twilio 500"))

	sender := newTwilioSMSSender(creator, "+15550001111", nil, logger.NewTestLogger())
	for i := 0; i < 5; i++ {
		require.Error(t, sender.SendMessage("+15551234567", "hello"))
	}
	err := sender.SendMessage("+15551234567", "hello")
	assert.ErrorContains(t, err, "temporarily unavailable")
}

func TestSMSRateLimiter_SlidingWindow(t *testing.T) {
	now := time.Date(2024, 10, 13, 12, 0, 0, 0, time.UTC)
	rl := NewSMSRateLimiter(2, time.Hour)
	rl.now = func() time.Time { return now }

	require.NoError(t, rl.Allow("+15551234567"))
	require.NoError(t, rl.Allow("+15551234567"))
	assert.Error(t, rl.Allow("+15551234567"))
	assert.NoError(t, rl.Allow("+15559999999"))

	now = now.Add(61 * time.Minute)
	assert.NoError(t, rl.Allow("+15551234567"))
}

func TestNormalizePhoneNumber(t *testing.T) {
	got, err := NormalizePhoneNumber("555.123.4567")
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", got)

	got, err = NormalizePhoneNumber("+44 20 7946 0958")
	require.NoError(t, err)
	assert.Equal(t, "+442079460958", got)

	_, err = NormalizePhoneNumber("+0123")
	assert.Error(t, err)
}

type fakePusher struct {
	delivered int
	lastType  string
}

func (f *fakePusher) SendToUser(_ string, msgType string, _ interface{}) (int, error) {
	f.lastType = msgType
	return f.delivered, nil
}

func TestHubDispatcher_PushesByType(t *testing.T) {
	p := &fakePusher{delivered: 0}
	d := NewHubDispatcher(p, nil, logger.NewTestLogger())

	require.NoError(t, d.Notify(context.Background(), "u1", Notification{Type: "injury_alert"}))
	assert.Equal(t, "injury_alert", p.lastType)
}

func TestHubDispatcher_HonoursPushOptOut(t *testing.T) {
	ctx := context.Background()
	p := &fakePusher{delivered: 1}
	prefs := prefsMap{
		"muted":  {UserID: "muted", NotifyPush: false},
		"pushed": {UserID: "pushed", NotifyPush: true},
	}
	d := NewHubDispatcher(p, prefs, logger.NewTestLogger())

	require.NoError(t, d.Notify(ctx, "muted", Notification{Type: "injury_alert"}))
	assert.Empty(t, p.lastType)

	require.NoError(t, d.Notify(ctx, "pushed", Notification{Type: "injury_alert"}))
	assert.Equal(t, "injury_alert", p.lastType)

	p.lastType = ""
	require.NoError(t, d.Notify(ctx, "no_prefs", Notification{Type: "injury_alert"}))
	assert.Equal(t, "injury_alert", p.lastType)
}
