package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDenied   ApprovalStatus = "denied"
)

type PaymentStatus string

const (
	PaymentPending        PaymentStatus = "pending"
	PaymentProofSubmitted PaymentStatus = "proof_submitted"
	PaymentPaid           PaymentStatus = "paid"
	PaymentFree           PaymentStatus = "free"
	PaymentRefunded       PaymentStatus = "refunded"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// GuestRequest is one user's join request against one party, with its
// approval and payment sub-state.
type GuestRequest struct {
	ID                   string         `json:"id"`
	UserID               string         `json:"user_id"`
	UserName             string         `json:"user_name"`
	UserHandle           string         `json:"user_handle"`
	IntroMessage         string         `json:"intro_message"`
	RequestedAt          time.Time      `json:"requested_at"`
	ApprovalStatus       ApprovalStatus `json:"approval_status"`
	PaymentStatus        PaymentStatus  `json:"payment_status"`
	VerificationImageURL string         `json:"verification_image_url,omitempty"`
	PaymentProofImageURL string         `json:"payment_proof_image_url,omitempty"`
	ProofSubmittedAt     *time.Time     `json:"proof_submitted_at,omitempty"`
	ApprovedAt           *time.Time     `json:"approved_at,omitempty"`
	PaidAt               *time.Time     `json:"paid_at,omitempty"`
	RefundedAt           *time.Time     `json:"refunded_at,omitempty"`
}

// Confirmed reports whether the request represents a fully confirmed
// guest (approved and paid, or approved for free).
func (r *GuestRequest) Confirmed() bool {
	return r.ApprovalStatus == ApprovalApproved &&
		(r.PaymentStatus == PaymentPaid || r.PaymentStatus == PaymentFree)
}

// Party is one hostable, capacity-limited paid event. The whole record
// is the unit of transactional mutation: the guest request ledger and
// the active user set are never written independently.
type Party struct {
	ID               string          `json:"id"`
	HostID           string          `json:"host_id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Location         string          `json:"location"`
	Visibility       Visibility      `json:"visibility"`
	MaxGuestCount    int             `json:"max_guest_count"`
	TicketPrice      decimal.Decimal `json:"ticket_price"`
	StartTime        time.Time       `json:"start_time"`
	EndTime          time.Time       `json:"end_time"`
	ActiveUsers      []string        `json:"active_users"`
	GuestRequests    []GuestRequest  `json:"guest_requests"`
	StatsProcessed   bool            `json:"stats_processed"`
	StatsProcessedAt *time.Time      `json:"stats_processed_at,omitempty"`
	StatsError       string          `json:"stats_error,omitempty"`
	Canceled         bool            `json:"canceled"`

	// Version is bumped on every committed write and backs the
	// optimistic conflict check in the store layer.
	Version int `json:"version"`
}

// Validate checks the party's standing invariants.
func (p *Party) Validate() error {
	if p.HostID == "" {
		return errors.New("host_id is required")
	}
	if p.MaxGuestCount <= 0 {
		return errors.New("max_guest_count must be positive")
	}
	if p.TicketPrice.IsNegative() {
		return errors.New("ticket_price must not be negative")
	}
	if !p.EndTime.IsZero() && p.EndTime.Before(p.StartTime) {
		return errors.New("end_time must not be before start_time")
	}
	if len(p.ActiveUsers) > p.MaxGuestCount {
		return errors.New("active_users exceeds max_guest_count")
	}
	seen := map[string]bool{}
	for _, r := range p.GuestRequests {
		if seen[r.UserID] {
			return errors.New("duplicate guest request for user " + r.UserID)
		}
		seen[r.UserID] = true
	}
	return nil
}

// RequestByID returns the guest request with the given id, or nil.
func (p *Party) RequestByID(requestID string) *GuestRequest {
	for i := range p.GuestRequests {
		if p.GuestRequests[i].ID == requestID {
			return &p.GuestRequests[i]
		}
	}
	return nil
}

// RequestByUser returns the guest request belonging to userID, or nil.
// Denied requests are retained on the ledger and are returned too.
func (p *Party) RequestByUser(userID string) *GuestRequest {
	for i := range p.GuestRequests {
		if p.GuestRequests[i].UserID == userID {
			return &p.GuestRequests[i]
		}
	}
	return nil
}

// IsActiveUser reports whether userID is a confirmed guest.
func (p *Party) IsActiveUser(userID string) bool {
	for _, id := range p.ActiveUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// IsSoldOut reports whether the membership set has reached capacity.
func (p *Party) IsSoldOut() bool {
	return len(p.ActiveUsers) >= p.MaxGuestCount
}

// AddActiveUser adds userID to the membership set. Adding an existing
// member is a no-op so payment confirmations stay idempotent. Returns
// false when the party is already at capacity.
func (p *Party) AddActiveUser(userID string) bool {
	if p.IsActiveUser(userID) {
		return true
	}
	if p.IsSoldOut() {
		return false
	}
	p.ActiveUsers = append(p.ActiveUsers, userID)
	return true
}

// RemoveActiveUser removes userID from the membership set if present.
func (p *Party) RemoveActiveUser(userID string) {
	for i, id := range p.ActiveUsers {
		if id == userID {
			p.ActiveUsers = append(p.ActiveUsers[:i], p.ActiveUsers[i+1:]...)
			return
		}
	}
}

// HasEnded reports whether the party's end time has passed.
func (p *Party) HasEnded(now time.Time) bool {
	return !p.EndTime.IsZero() && p.EndTime.Before(now)
}

// IsActiveAround reports whether the party counts as "active" for the
// one-active-party-per-host rule: now falls inside the event window,
// or the party starts within the given lead time.
func (p *Party) IsActiveAround(now time.Time, lead time.Duration) bool {
	if p.Canceled {
		return false
	}
	if p.HasEnded(now) {
		return false
	}
	return now.After(p.StartTime.Add(-lead)) || now.Equal(p.StartTime.Add(-lead))
}

// Clone returns a deep copy of the party. The store layer hands clones
// to transaction callbacks so a failed attempt never leaks partial
// mutations.
func (p *Party) Clone() *Party {
	cp := *p
	cp.ActiveUsers = append([]string(nil), p.ActiveUsers...)
	cp.GuestRequests = append([]GuestRequest(nil), p.GuestRequests...)
	return &cp
}
