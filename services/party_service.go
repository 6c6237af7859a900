package services

import (
	"context"
	"log/slog"
	"time"

	"party-system/config"
	"party-system/models"
	"party-system/monitoring"
	"party-system/status"
	"party-system/store"

	"github.com/google/uuid"
)

// PartyService is the membership manager. It holds no mutable state of
// its own: every operation is a single transactional read-modify-write
// against the party record, so correctness under concurrent guests and
// hosts comes entirely from the store's transaction primitive.
type PartyService struct {
	store      store.PartyStore
	notifier   Notifier
	reputation ReputationService
	config     *config.Config
}

func NewPartyService(partyStore store.PartyStore, notifier Notifier, reputation ReputationService, cfg *config.Config) *PartyService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &PartyService{
		store:      partyStore,
		notifier:   notifier,
		reputation: reputation,
		config:     cfg,
	}
}

// CreateParty creates a new party for hostID. A host may only have one
// active party at a time: one whose event window contains now, or one
// starting within the configured lead time. The check is a scan over
// the host's parties, not part of the creation transaction, so two
// near-simultaneous creates can slip through; that window is accepted.
func (s *PartyService) CreateParty(ctx context.Context, party *models.Party) (*models.Party, error) {
	if party.Visibility == "" {
		party.Visibility = models.VisibilityPublic
	}
	if err := party.Validate(); err != nil {
		monitoring.TrackOperation("create_party", "invalid")
		return nil, err
	}

	existing, err := s.store.PartiesByHost(ctx, party.HostID)
	if err != nil {
		monitoring.TrackOperation("create_party", "error")
		return nil, err
	}
	now := time.Now()
	for _, p := range existing {
		if p.IsActiveAround(now, s.config.HostActiveLead) {
			monitoring.TrackOperation("create_party", "already_hosting")
			return nil, status.ErrAlreadyHosting
		}
	}

	created, err := s.store.CreateParty(ctx, party)
	if err != nil {
		monitoring.TrackOperation("create_party", "error")
		return nil, err
	}

	monitoring.TrackOperation("create_party", "success")
	slog.Info("party created", "party_id", created.ID, "host_id", created.HostID)
	return created, nil
}

// SubmitRequest appends a pending guest request for userID. Sold-out
// parties reject new requests so the error is distinguishable from a
// duplicate. Denied requests are retained as tombstones, so a user who
// was denied cannot re-request the same party.
func (s *PartyService) SubmitRequest(ctx context.Context, partyID string, request models.GuestRequest) error {
	updated, err := s.store.UpdateParty(ctx, partyID, func(party *models.Party) error {
		if party.Canceled {
			return status.ErrPartyCanceled
		}
		if party.IsActiveUser(request.UserID) {
			return status.ErrAlreadyMember
		}
		if party.RequestByUser(request.UserID) != nil {
			return status.ErrDuplicateRequest
		}
		if party.IsSoldOut() {
			return status.ErrSoldOut
		}

		if request.ID == "" {
			request.ID = uuid.NewString()
		}
		request.RequestedAt = time.Now()
		request.ApprovalStatus = models.ApprovalPending
		request.PaymentStatus = models.PaymentPending
		party.GuestRequests = append(party.GuestRequests, request)
		return nil
	})
	if err != nil {
		monitoring.TrackOperation("submit_request", outcome(err))
		return err
	}

	monitoring.TrackOperation("submit_request", "success")
	s.notifier.Notify(EventRequestSubmitted, partyID, updated.HostID, map[string]any{
		"user_id":   request.UserID,
		"user_name": request.UserName,
	})
	return nil
}

// ApproveRequest moves a pending request to approved. Membership is not
// granted yet: the guest still has to pay.
func (s *PartyService) ApproveRequest(ctx context.Context, partyID, actorID, requestID string) error {
	var guestID string
	_, err := s.store.UpdateParty(ctx, partyID, func(party *models.Party) error {
		if party.HostID != actorID {
			return status.ErrNotHost
		}
		request := party.RequestByID(requestID)
		if request == nil || request.ApprovalStatus == models.ApprovalDenied {
			return status.ErrRequestNotFound
		}
		if request.ApprovalStatus != models.ApprovalPending {
			return status.ErrNotPending
		}

		now := time.Now()
		request.ApprovalStatus = models.ApprovalApproved
		request.ApprovedAt = &now
		guestID = request.UserID
		return nil
	})
	if err != nil {
		monitoring.TrackOperation("approve_request", outcome(err))
		return err
	}

	monitoring.TrackOperation("approve_request", "success")
	s.notifier.Notify(EventRequestApproved, partyID, guestID, nil)
	return nil
}

// DenyRequest marks the request denied and removes the user from the
// active set if present, which also handles revoking an already
// approved or paid guest. The denied entry stays on the ledger.
func (s *PartyService) DenyRequest(ctx context.Context, partyID, actorID, requestID string) error {
	var guestID string
	_, err := s.store.UpdateParty(ctx, partyID, func(party *models.Party) error {
		if party.HostID != actorID {
			return status.ErrNotHost
		}
		request := party.RequestByID(requestID)
		if request == nil || request.ApprovalStatus == models.ApprovalDenied {
			return status.ErrRequestNotFound
		}

		request.ApprovalStatus = models.ApprovalDenied
		party.RemoveActiveUser(request.UserID)
		guestID = request.UserID
		return nil
	})
	if err != nil {
		monitoring.TrackOperation("deny_request", outcome(err))
		return err
	}

	monitoring.TrackOperation("deny_request", "success")
	s.notifier.Notify(EventRequestDenied, partyID, guestID, nil)
	return nil
}

// ApproveFree grants VIP admission: the request is approved with a free
// ticket and the user joins the active set immediately, all in one
// transaction. An already confirmed guest keeps their payment record.
func (s *PartyService) ApproveFree(ctx context.Context, partyID, actorID, requestID string) error {
	var guestID string
	updated, err := s.store.UpdateParty(ctx, partyID, func(party *models.Party) error {
		if party.HostID != actorID {
			return status.ErrNotHost
		}
		request := party.RequestByID(requestID)
		if request == nil || request.ApprovalStatus == models.ApprovalDenied {
			return status.ErrRequestNotFound
		}
		guestID = request.UserID

		if request.Confirmed() {
			party.AddActiveUser(request.UserID)
			return nil
		}
		if !party.AddActiveUser(request.UserID) {
			return status.ErrSoldOut
		}

		now := time.Now()
		request.ApprovalStatus = models.ApprovalApproved
		request.PaymentStatus = models.PaymentFree
		if request.ApprovedAt == nil {
			request.ApprovedAt = &now
		}
		return nil
	})
	if err != nil {
		monitoring.TrackOperation("approve_free", outcome(err))
		return err
	}

	monitoring.TrackOperation("approve_free", "success")
	s.notifier.Notify(EventRequestApproved, partyID, guestID, map[string]any{"free": true})
	s.alertCapacity(updated)
	return nil
}

// SubmitPaymentProof records the guest's payment proof. Only the owner
// of an approved, not yet confirmed request may submit; rejected proofs
// can be resubmitted.
func (s *PartyService) SubmitPaymentProof(ctx context.Context, partyID, userID, proofURL string) error {
	updated, err := s.store.UpdateParty(ctx, partyID, func(party *models.Party) error {
		request := party.RequestByUser(userID)
		if request == nil || request.ApprovalStatus == models.ApprovalDenied {
			return status.ErrRequestNotFound
		}
		if request.ApprovalStatus != models.ApprovalApproved {
			return status.ErrNotApproved
		}
		if request.Confirmed() {
			return status.ErrAlreadyMember
		}

		now := time.Now()
		request.PaymentStatus = models.PaymentProofSubmitted
		request.PaymentProofImageURL = proofURL
		request.ProofSubmittedAt = &now
		return nil
	})
	if err != nil {
		monitoring.TrackOperation("submit_proof", outcome(err))
		return err
	}

	monitoring.TrackOperation("submit_proof", "success")
	s.notifier.Notify(EventProofSubmitted, partyID, updated.HostID, map[string]any{"user_id": userID})
	return nil
}

// VerifyPaymentProof is the host's verdict on a submitted proof. Accept
// confirms payment and adds the guest to the active set; reject sends
// the payment state back to pending so the guest can resubmit. A
// verdict requires a submitted proof. Accepting an already confirmed
// request is a no-op; rejecting one is an error, revoking a confirmed
// guest goes through DenyRequest.
func (s *PartyService) VerifyPaymentProof(ctx context.Context, partyID, actorID, requestID string, accepted bool) error {
	var guestID string
	updated, err := s.store.UpdateParty(ctx, partyID, func(party *models.Party) error {
		if party.HostID != actorID {
			return status.ErrNotHost
		}
		request := party.RequestByID(requestID)
		if request == nil || request.ApprovalStatus == models.ApprovalDenied {
			return status.ErrRequestNotFound
		}
		if request.ApprovalStatus != models.ApprovalApproved {
			return status.ErrNotApproved
		}
		guestID = request.UserID

		if request.Confirmed() {
			if !accepted {
				return status.ErrAlreadyMember
			}
			// Idempotent accept: membership is already settled.
			party.AddActiveUser(request.UserID)
			return nil
		}
		if request.PaymentStatus != models.PaymentProofSubmitted {
			return status.ErrNoProof
		}

		if !accepted {
			request.PaymentStatus = models.PaymentPending
			return nil
		}

		if !party.AddActiveUser(request.UserID) {
			return status.ErrSoldOut
		}
		now := time.Now()
		request.PaymentStatus = models.PaymentPaid
		request.PaidAt = &now
		return nil
	})
	if err != nil {
		monitoring.TrackOperation("verify_proof", outcome(err))
		return err
	}

	monitoring.TrackOperation("verify_proof", "success")
	s.notifier.Notify(EventPaymentVerified, partyID, guestID, map[string]any{"accepted": accepted})
	if accepted {
		s.alertCapacity(updated)
	}
	return nil
}

// CompleteMembershipAfterPayment is the callback entry point for an
// external payment confirmation. Idempotent: replays of the same
// confirmation settle to the same state.
func (s *PartyService) CompleteMembershipAfterPayment(ctx context.Context, partyID, userID, paymentRef string) error {
	updated, err := s.store.UpdateParty(ctx, partyID, func(party *models.Party) error {
		request := party.RequestByUser(userID)
		if request == nil || request.ApprovalStatus == models.ApprovalDenied {
			return status.ErrRequestNotFound
		}
		if request.ApprovalStatus != models.ApprovalApproved {
			return status.ErrNotApproved
		}

		if request.Confirmed() {
			party.AddActiveUser(userID)
			return nil
		}
		if !party.AddActiveUser(userID) {
			return status.ErrSoldOut
		}
		now := time.Now()
		request.PaymentStatus = models.PaymentPaid
		request.PaidAt = &now
		return nil
	})
	if err != nil {
		monitoring.TrackOperation("complete_payment", outcome(err))
		return err
	}

	monitoring.TrackOperation("complete_payment", "success")
	slog.Info("membership completed after payment",
		"party_id", partyID, "user_id", userID, "payment_ref", paymentRef)
	s.notifier.Notify(EventPaymentVerified, partyID, userID, map[string]any{"accepted": true})
	s.alertCapacity(updated)
	return nil
}

// Leave removes the user from the active set. The request history is
// retained.
func (s *PartyService) Leave(ctx context.Context, partyID, userID string) error {
	_, err := s.store.UpdateParty(ctx, partyID, func(party *models.Party) error {
		party.RemoveActiveUser(userID)
		return nil
	})
	monitoring.TrackOperation("leave", outcome(err))
	return err
}

// EndParty closes the event now. Ending is host-controlled rather than
// scheduled; the completion sweeper picks the party up afterwards.
func (s *PartyService) EndParty(ctx context.Context, partyID, actorID string) error {
	_, err := s.store.UpdateParty(ctx, partyID, func(party *models.Party) error {
		if party.HostID != actorID {
			return status.ErrNotHost
		}
		if !party.HasEnded(time.Now()) {
			party.EndTime = time.Now()
		}
		return nil
	})
	monitoring.TrackOperation("end_party", outcome(err))
	return err
}

// CancelParty marks the party canceled after a best-effort completion
// pass, so guests already confirmed still get their post-event
// bookkeeping.
func (s *PartyService) CancelParty(ctx context.Context, partyID, actorID string) error {
	party, err := s.store.GetParty(ctx, partyID)
	if err != nil {
		monitoring.TrackOperation("cancel_party", outcome(err))
		return err
	}
	if party.HostID != actorID {
		monitoring.TrackOperation("cancel_party", "not_host")
		return status.ErrNotHost
	}

	if err := s.FinalizeParty(ctx, partyID); err != nil {
		slog.Error("completion processing before cancel failed", "party_id", partyID, "error", err)
	}

	_, err = s.store.UpdateParty(ctx, partyID, func(party *models.Party) error {
		party.Canceled = true
		if !party.HasEnded(time.Now()) {
			party.EndTime = time.Now()
		}
		return nil
	})
	monitoring.TrackOperation("cancel_party", outcome(err))
	return err
}

// GetPartyByID returns a read-only snapshot.
func (s *PartyService) GetPartyByID(ctx context.Context, partyID string) (*models.Party, error) {
	return s.store.GetParty(ctx, partyID)
}

// ListPublicUpcoming returns public parties that have not ended.
func (s *PartyService) ListPublicUpcoming(ctx context.Context, limit int) ([]*models.Party, error) {
	return s.store.PublicUpcoming(ctx, limit)
}

// FinalizeParty performs the post-event accounting for one party
// exactly once. Accounting errors are recorded on the record and do not
// prevent the processed mark: the sweep must never retry the same party
// forever.
func (s *PartyService) FinalizeParty(ctx context.Context, partyID string) error {
	party, err := s.store.GetParty(ctx, partyID)
	if err != nil {
		return err
	}
	if party.StatsProcessed {
		return nil
	}

	statsErr := ""
	if len(party.ActiveUsers) > 0 && s.reputation != nil {
		if err := s.reputation.UpdateUserStatsAfterEvent(ctx, party, party.ActiveUsers); err != nil {
			slog.Error("post-event accounting failed", "party_id", partyID, "error", err)
			statsErr = err.Error()
		}
	}

	_, err = s.store.UpdateParty(ctx, partyID, func(party *models.Party) error {
		if party.StatsProcessed {
			return nil
		}
		now := time.Now()
		party.StatsProcessed = true
		party.StatsProcessedAt = &now
		party.StatsError = statsErr
		return nil
	})
	return err
}

func (s *PartyService) alertCapacity(party *models.Party) {
	if party == nil || !party.IsSoldOut() {
		return
	}
	monitoring.TrackActiveGuests(party.ID, len(party.ActiveUsers))
	s.notifier.Notify(EventCapacityAlert, party.ID, party.HostID, map[string]any{
		"current": len(party.ActiveUsers),
		"max":     party.MaxGuestCount,
	})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case status.IsValidation(err):
		return "rejected"
	case status.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
