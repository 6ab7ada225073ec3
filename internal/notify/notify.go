// Package notify delivers alert notifications to users over the configured channels.
package notify

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
)

// Notification is the channel-neutral payload of one alert.
type Notification struct {
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Urgency models.Urgency `json:"urgency"`
	AlertID string         `json:"alert_id,omitempty"`
	Data    interface{}    `json:"data,omitempty"`
}

// Dispatcher delivers a notification to a user. Delivery is best effort.
type Dispatcher interface {
	Notify(ctx context.Context, userID string, n Notification) error
}

// LogDispatcher writes notifications to the log, for development.
type LogDispatcher struct {
	logger *logrus.Logger
}

func NewLogDispatcher(logger *logrus.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Notify(_ context.Context, userID string, n Notification) error {
	d.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"type":     n.Type,
		"urgency":  n.Urgency,
		"alert_id": n.AlertID,
	}).Info(n.Title)
	return nil
}

// MultiDispatcher fans out to every channel. All channels are attempted and
// the first failure is returned.
type MultiDispatcher struct {
	dispatchers []Dispatcher
}

func NewMultiDispatcher(dispatchers ...Dispatcher) *MultiDispatcher {
	return &MultiDispatcher{dispatchers: dispatchers}
}

func (d *MultiDispatcher) Notify(ctx context.Context, userID string, n Notification) error {
	var first error
	for _, dispatcher := range d.dispatchers {
		if err := dispatcher.Notify(ctx, userID, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ErrNoRecipient means the user has no reachable endpoint on a channel.
var ErrNoRecipient = errors.New("no reachable recipient")

// Pusher is the live-connection side of the websocket hub.
type Pusher interface {
	SendToUser(userID string, msgType string, data interface{}) (int, error)
}

// HubDispatcher pushes notifications to the user's open websocket connections.
// Users without stored preferences receive pushes; an explicit opt-out is honoured.
type HubDispatcher struct {
	hub    Pusher
	prefs  PreferenceSource
	logger *logrus.Logger
}

func NewHubDispatcher(hub Pusher, prefs PreferenceSource, logger *logrus.Logger) *HubDispatcher {
	return &HubDispatcher{hub: hub, prefs: prefs, logger: logger}
}

func (d *HubDispatcher) Notify(ctx context.Context, userID string, n Notification) error {
	if d.prefs != nil {
		if prefs, err := d.prefs.GetUserPreferences(ctx, userID); err == nil && !prefs.NotifyPush {
			return nil
		}
	}
	delivered, err := d.hub.SendToUser(userID, n.Type, n)
	if err != nil {
		return err
	}
	if delivered == 0 {
		d.logger.WithField("user_id", userID).Debug("No open connections for push")
	}
	return nil
}
