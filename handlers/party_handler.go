package handlers

import (
	"errors"
	"net/http"
	"time"

	"party-system/models"
	"party-system/services"
	"party-system/status"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type PartyHandler struct {
	partyService *services.PartyService
}

func NewPartyHandler(partyService *services.PartyService) *PartyHandler {
	return &PartyHandler{partyService: partyService}
}

// CreateParty - Host lists a new party
func (h *PartyHandler) CreateParty(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Name          string          `json:"name"`
		Description   string          `json:"description"`
		Location      string          `json:"location"`
		Visibility    string          `json:"visibility"`
		MaxGuestCount int             `json:"max_guest_count"`
		TicketPrice   decimal.Decimal `json:"ticket_price"`
		StartTime     time.Time       `json:"start_time"`
		EndTime       time.Time       `json:"end_time"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	party := &models.Party{
		HostID:        e.Auth.Id,
		Name:          req.Name,
		Description:   req.Description,
		Location:      req.Location,
		Visibility:    models.Visibility(req.Visibility),
		MaxGuestCount: req.MaxGuestCount,
		TicketPrice:   req.TicketPrice,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
	}

	created, err := h.partyService.CreateParty(e.Request.Context(), party)
	if err != nil {
		return domainError(err)
	}

	return e.JSON(http.StatusOK, created)
}

// ListParties - Public upcoming parties
func (h *PartyHandler) ListParties(e *core.RequestEvent) error {
	parties, err := h.partyService.ListPublicUpcoming(e.Request.Context(), 50)
	if err != nil {
		return domainError(err)
	}
	return e.JSON(http.StatusOK, parties)
}

// GetParty - Party snapshot
func (h *PartyHandler) GetParty(e *core.RequestEvent) error {
	partyID := e.Request.PathValue("partyId")

	party, err := h.partyService.GetPartyByID(e.Request.Context(), partyID)
	if err != nil {
		return domainError(err)
	}
	return e.JSON(http.StatusOK, party)
}

// SubmitRequest - Guest asks to join
func (h *PartyHandler) SubmitRequest(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		IntroMessage         string `json:"intro_message"`
		VerificationImageURL string `json:"verification_image_url"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	partyID := e.Request.PathValue("partyId")
	request := models.GuestRequest{
		UserID:               e.Auth.Id,
		UserName:             e.Auth.GetString("name"),
		UserHandle:           e.Auth.GetString("username"),
		IntroMessage:         req.IntroMessage,
		VerificationImageURL: req.VerificationImageURL,
	}

	if err := h.partyService.SubmitRequest(e.Request.Context(), partyID, request); err != nil {
		return domainError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Request submitted"})
}

// ApproveRequest - Host approves a pending request
func (h *PartyHandler) ApproveRequest(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	partyID := e.Request.PathValue("partyId")
	requestID := e.Request.PathValue("requestId")

	if err := h.partyService.ApproveRequest(e.Request.Context(), partyID, e.Auth.Id, requestID); err != nil {
		return domainError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Request approved"})
}

// DenyRequest - Host denies or revokes a request
func (h *PartyHandler) DenyRequest(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	partyID := e.Request.PathValue("partyId")
	requestID := e.Request.PathValue("requestId")

	if err := h.partyService.DenyRequest(e.Request.Context(), partyID, e.Auth.Id, requestID); err != nil {
		return domainError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Request denied"})
}

// ApproveFree - Host grants VIP admission without payment
func (h *PartyHandler) ApproveFree(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	partyID := e.Request.PathValue("partyId")
	requestID := e.Request.PathValue("requestId")

	if err := h.partyService.ApproveFree(e.Request.Context(), partyID, e.Auth.Id, requestID); err != nil {
		return domainError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Guest admitted for free"})
}

// SubmitProof - Guest submits payment proof
func (h *PartyHandler) SubmitProof(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		ProofImageURL string `json:"proof_image_url"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.ProofImageURL == "" {
		return apis.NewBadRequestError("proof_image_url is required", nil)
	}

	partyID := e.Request.PathValue("partyId")

	if err := h.partyService.SubmitPaymentProof(e.Request.Context(), partyID, e.Auth.Id, req.ProofImageURL); err != nil {
		return domainError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Proof submitted"})
}

// VerifyProof - Host accepts or rejects a payment proof
func (h *PartyHandler) VerifyProof(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Accepted bool `json:"accepted"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	partyID := e.Request.PathValue("partyId")
	requestID := e.Request.PathValue("requestId")

	if err := h.partyService.VerifyPaymentProof(e.Request.Context(), partyID, e.Auth.Id, requestID, req.Accepted); err != nil {
		return domainError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Proof reviewed"})
}

// Leave - Guest gives up the spot
func (h *PartyHandler) Leave(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	partyID := e.Request.PathValue("partyId")

	if err := h.partyService.Leave(e.Request.Context(), partyID, e.Auth.Id); err != nil {
		return domainError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Left party"})
}

// EndParty - Host closes the event now
func (h *PartyHandler) EndParty(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	partyID := e.Request.PathValue("partyId")

	if err := h.partyService.EndParty(e.Request.Context(), partyID, e.Auth.Id); err != nil {
		return domainError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Party ended"})
}

// CancelParty - Host cancels the event
func (h *PartyHandler) CancelParty(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	partyID := e.Request.PathValue("partyId")

	if err := h.partyService.CancelParty(e.Request.Context(), partyID, e.Auth.Id); err != nil {
		return domainError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Party canceled"})
}

// domainError translates membership service errors into API responses.
func domainError(err error) error {
	switch {
	case status.IsNotFound(err):
		return apis.NewNotFoundError(err.Error(), err)
	case errors.Is(err, status.ErrNotHost):
		return apis.NewForbiddenError("Only the host can do that", err)
	case status.IsValidation(err):
		return apis.NewBadRequestError(err.Error(), err)
	case errors.Is(err, status.ErrTxConflict):
		return apis.NewTooManyRequestsError("Busy, please try again", err)
	default:
		return apis.NewInternalServerError("internal error", err)
	}
}
