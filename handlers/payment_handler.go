package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"party-system/config"
	"party-system/services"
	"party-system/utils"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
	pubnub "github.com/pubnub/go"
)

type PaymentHandler struct {
	partyService *services.PartyService
	pubnub       *pubnub.PubNub
	config       *config.Config
}

func NewPaymentHandler(partyService *services.PartyService, pn *pubnub.PubNub, cfg *config.Config) *PaymentHandler {
	return &PaymentHandler{
		partyService: partyService,
		pubnub:       pn,
		config:       cfg,
	}
}

type paymentWebhookReq struct {
	PartyID    string          `json:"party_id"`
	UserID     string          `json:"user_id"`
	PaymentRef string          `json:"payment_ref"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
}

// PaymentWebhook - External payment provider confirmation callback.
// Idempotent: providers redeliver.
func (h *PaymentHandler) PaymentWebhook(e *core.RequestEvent) error {
	secret := e.Request.Header.Get("X-Webhook-Secret")
	if h.config.PaymentWebhookSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(h.config.PaymentWebhookSecret)) != 1 {
		return apis.NewUnauthorizedError("Invalid webhook secret", nil)
	}

	var req paymentWebhookReq
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.PartyID == "" || req.UserID == "" || req.PaymentRef == "" {
		return apis.NewBadRequestError("party_id, user_id and payment_ref are required", nil)
	}
	if req.Status != "success" {
		slog.Info("ignoring non-success payment webhook",
			"payment_ref", req.PaymentRef, "status", req.Status)
		return e.JSON(http.StatusOK, map[string]any{"message": "ignored"})
	}

	ctx := e.Request.Context()

	party, err := h.partyService.GetPartyByID(ctx, req.PartyID)
	if err != nil {
		return domainError(err)
	}
	if !req.Amount.Equal(party.TicketPrice) {
		slog.Warn("payment amount mismatch",
			"party_id", req.PartyID,
			"user_id", req.UserID,
			"expected", party.TicketPrice,
			"got", req.Amount)
	}

	if err := h.partyService.CompleteMembershipAfterPayment(ctx, req.PartyID, req.UserID, req.PaymentRef); err != nil {
		return domainError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Payment applied"})
}

// SimulatePayment - Publish a fake provider confirmation (development only)
func (h *PaymentHandler) SimulatePayment(e *core.RequestEvent) error {
	var req paymentWebhookReq
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.PaymentRef == "" {
		req.PaymentRef, _ = utils.GenerateCode(8)
	}

	h.pubnub.Publish().
		Channel("payment-confirmations").
		Message(map[string]any{
			"party_id":    req.PartyID,
			"user_id":     req.UserID,
			"payment_ref": req.PaymentRef,
			"status":      "success",
		}).
		Execute()

	return e.JSON(http.StatusOK, map[string]any{"message": "Payment simulation sent"})
}
