package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"party-system/models"
	"party-system/status"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory PartyStore with the same optimistic
// concurrency semantics as the PocketBase-backed store: mutate runs on
// a private copy and the commit fails if another writer bumped the
// version in between. Used by tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	parties     map[string]*models.Party
	maxAttempts int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		parties:     make(map[string]*models.Party),
		maxAttempts: 25,
	}
}

func (s *MemoryStore) CreateParty(ctx context.Context, party *models.Party) (*models.Party, error) {
	if err := party.Validate(); err != nil {
		return nil, fmt.Errorf("invalid party: %w", err)
	}

	cp := party.Clone()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.Version = 1

	s.mu.Lock()
	s.parties[cp.ID] = cp
	s.mu.Unlock()

	return cp.Clone(), nil
}

func (s *MemoryStore) GetParty(ctx context.Context, partyID string) (*models.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	party, ok := s.parties[partyID]
	if !ok {
		return nil, status.ErrPartyNotFound
	}
	return party.Clone(), nil
}

func (s *MemoryStore) UpdateParty(ctx context.Context, partyID string, mutate func(*models.Party) error) (*models.Party, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.mu.RLock()
		current, ok := s.parties[partyID]
		if !ok {
			s.mu.RUnlock()
			return nil, status.ErrPartyNotFound
		}
		working := current.Clone()
		s.mu.RUnlock()

		expected := working.Version
		if err := mutate(working); err != nil {
			return nil, err
		}
		working.Version = expected + 1

		// Commit only if nobody else wrote since the read.
		s.mu.Lock()
		latest, ok := s.parties[partyID]
		if !ok {
			s.mu.Unlock()
			return nil, status.ErrPartyNotFound
		}
		if latest.Version != expected {
			s.mu.Unlock()
			continue
		}
		s.parties[partyID] = working
		s.mu.Unlock()

		return working.Clone(), nil
	}

	return nil, status.ErrTxConflict
}

func (s *MemoryStore) PartiesByHost(ctx context.Context, hostID string) ([]*models.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Party
	for _, party := range s.parties {
		if party.HostID == hostID {
			result = append(result, party.Clone())
		}
	}
	return result, nil
}

func (s *MemoryStore) UnprocessedEndedParties(ctx context.Context, endedBefore, endedAfter time.Time, limit int) ([]*models.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Party
	for _, party := range s.parties {
		if party.StatsProcessed || party.EndTime.IsZero() {
			continue
		}
		if party.EndTime.After(endedAfter) && !party.EndTime.After(endedBefore) {
			result = append(result, party.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EndTime.Before(result[j].EndTime)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) PublicUpcoming(ctx context.Context, limit int) ([]*models.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var result []*models.Party
	for _, party := range s.parties {
		if party.Visibility != models.VisibilityPublic || party.Canceled || party.HasEnded(now) {
			continue
		}
		result = append(result, party.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) DeleteParty(ctx context.Context, partyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.parties[partyID]; !ok {
		return status.ErrPartyNotFound
	}
	delete(s.parties, partyID)
	return nil
}
