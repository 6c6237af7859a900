package services

import (
	"context"
	"encoding/json"
	"log/slog"

	pubnub "github.com/pubnub/go"
)

const paymentConfirmationsChannel = "payment-confirmations"

// PaymentListener consumes external payment confirmations from the
// payment provider's PubNub channel and completes membership through
// the same idempotent path as the HTTP webhook.
type PaymentListener struct {
	pubnub  *pubnub.PubNub
	service *PartyService
}

func NewPaymentListener(pn *pubnub.PubNub, service *PartyService) *PaymentListener {
	return &PaymentListener{
		pubnub:  pn,
		service: service,
	}
}

// Listen subscribes and blocks until ctx is canceled. Run it in its own
// goroutine.
func (l *PaymentListener) Listen(ctx context.Context) {
	listener := pubnub.NewListener()

	l.pubnub.AddListener(listener)
	l.pubnub.Subscribe().
		Channels([]string{paymentConfirmationsChannel}).
		Execute()

	slog.Info("payment listener subscribed", "channel", paymentConfirmationsChannel)

	for {
		select {
		case message := <-listener.Message:
			go l.handleConfirmation(ctx, message)
		case <-ctx.Done():
			l.pubnub.Unsubscribe().
				Channels([]string{paymentConfirmationsChannel}).
				Execute()
			return
		}
	}
}

func (l *PaymentListener) handleConfirmation(ctx context.Context, message *pubnub.PNMessage) {
	var confirmation struct {
		PartyID    string `json:"party_id"`
		UserID     string `json:"user_id"`
		PaymentRef string `json:"payment_ref"`
		Status     string `json:"status"`
	}

	data, ok := message.Message.(map[string]any)
	if !ok {
		return
	}

	jsonData, _ := json.Marshal(data)
	if err := json.Unmarshal(jsonData, &confirmation); err != nil {
		slog.Error("invalid payment confirmation", "error", err)
		return
	}

	if confirmation.Status != "success" || confirmation.PartyID == "" || confirmation.UserID == "" {
		return
	}

	if err := l.service.CompleteMembershipAfterPayment(ctx, confirmation.PartyID, confirmation.UserID, confirmation.PaymentRef); err != nil {
		slog.Error("payment confirmation not applied",
			"party_id", confirmation.PartyID,
			"user_id", confirmation.UserID,
			"error", err)
	}
}
