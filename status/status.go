package status

import "errors"

// Domain errors returned by the membership service. All of them are
// terminal for the caller except ErrTxConflict, which means the
// transactional retry budget was exhausted and the call may be retried.
var (
	ErrPartyNotFound    = errors.New("party: party not found")
	ErrRequestNotFound  = errors.New("party: guest request not found")
	ErrAlreadyMember    = errors.New("party: user is already an active guest")
	ErrDuplicateRequest = errors.New("party: user already has a request for this party")
	ErrAlreadyHosting   = errors.New("party: host already has an active party")
	ErrSoldOut          = errors.New("party: party is sold out")
	ErrNotApproved      = errors.New("party: guest request is not approved")
	ErrNoProof          = errors.New("party: no payment proof to verify")
	ErrNotPending       = errors.New("party: guest request is not pending")
	ErrNotHost          = errors.New("party: acting user is not the host")
	ErrPartyCanceled    = errors.New("party: party has been canceled")
	ErrTxConflict       = errors.New("party: transaction conflict, try again")
)

// IsValidation reports whether err is a terminal domain validation
// error, as opposed to a transient conflict or an infrastructure error.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrAlreadyMember,
		ErrDuplicateRequest,
		ErrAlreadyHosting,
		ErrSoldOut,
		ErrNotApproved,
		ErrNoProof,
		ErrNotPending,
		ErrNotHost,
		ErrPartyCanceled,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err indicates a missing party or request,
// typically the result of a concurrent deny.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPartyNotFound) || errors.Is(err, ErrRequestNotFound)
}
