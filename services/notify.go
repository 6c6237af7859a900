package services

import (
	"fmt"

	pubnub "github.com/pubnub/go"
)

type NotifyEvent string

const (
	EventRequestSubmitted NotifyEvent = "request_submitted"
	EventRequestApproved  NotifyEvent = "request_approved"
	EventRequestDenied    NotifyEvent = "request_denied"
	EventProofSubmitted   NotifyEvent = "proof_submitted"
	EventPaymentVerified  NotifyEvent = "payment_verified"
	EventCapacityAlert    NotifyEvent = "capacity_alert"
)

// Notifier delivers state-transition notifications. Implementations are
// fire-and-forget: the membership service calls Notify after a
// transaction commits and never rolls back on delivery failure.
type Notifier interface {
	Notify(event NotifyEvent, partyID, targetUserID string, payload map[string]any)
}

// PubNubNotifier publishes transition events to per-user channels.
type PubNubNotifier struct {
	pubnub *pubnub.PubNub
}

func NewPubNubNotifier(pn *pubnub.PubNub) *PubNubNotifier {
	return &PubNubNotifier{pubnub: pn}
}

func (n *PubNubNotifier) Notify(event NotifyEvent, partyID, targetUserID string, payload map[string]any) {
	message := map[string]any{
		"type":     string(event),
		"party_id": partyID,
	}
	for k, v := range payload {
		message[k] = v
	}

	channel := fmt.Sprintf("user-%s", targetUserID)
	n.pubnub.Publish().
		Channel(channel).
		Message(message).
		Execute()
}

// NoopNotifier drops every event. Used when PubNub is not configured
// and in tests that do not assert on notifications.
type NoopNotifier struct{}

func (NoopNotifier) Notify(event NotifyEvent, partyID, targetUserID string, payload map[string]any) {}
