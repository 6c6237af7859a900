package store

import (
	"context"
	"time"

	"party-system/models"
)

// PartyStore is the party record store consumed by the membership
// service and the completion sweeper. The party document is the only
// unit of mutation: UpdateParty is the single write path for everything
// that has to stay consistent across the guest ledger and the active
// user set.
type PartyStore interface {
	// CreateParty persists a new party and returns it with its
	// assigned id and initial version.
	CreateParty(ctx context.Context, party *models.Party) (*models.Party, error)

	// GetParty returns a read-only snapshot of the party.
	GetParty(ctx context.Context, partyID string) (*models.Party, error)

	// UpdateParty runs mutate against the current party document inside
	// an atomic read-modify-write transaction. The callback receives a
	// private copy; the commit happens only if no conflicting write
	// landed since the read, otherwise the whole cycle is retried with
	// backoff up to a bounded attempt count. A domain error returned by
	// mutate aborts the transaction and is passed through unchanged;
	// retry exhaustion surfaces status.ErrTxConflict.
	UpdateParty(ctx context.Context, partyID string, mutate func(*models.Party) error) (*models.Party, error)

	// PartiesByHost returns all parties owned by hostID.
	PartiesByHost(ctx context.Context, hostID string) ([]*models.Party, error)

	// UnprocessedEndedParties returns up to limit parties whose end time
	// falls in (endedAfter, endedBefore] and whose post-event stats have
	// not been processed yet.
	UnprocessedEndedParties(ctx context.Context, endedBefore, endedAfter time.Time, limit int) ([]*models.Party, error)

	// PublicUpcoming returns up to limit public parties that have not
	// ended yet, soonest first.
	PublicUpcoming(ctx context.Context, limit int) ([]*models.Party, error)

	// DeleteParty removes the party record.
	DeleteParty(ctx context.Context, partyID string) error
}
