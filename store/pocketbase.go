package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"party-system/models"
	"party-system/monitoring"
	"party-system/status"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

const partiesCollection = "parties"

// PBStore is the PocketBase-backed PartyStore. Every mutation goes
// through RunInTransaction with an optimistic version check, so the
// guest ledger and the active user set always change together.
type PBStore struct {
	app         core.App
	maxAttempts int
	backoff     time.Duration
}

func NewPBStore(app core.App, maxAttempts int, backoff time.Duration) *PBStore {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if backoff <= 0 {
		backoff = 25 * time.Millisecond
	}
	return &PBStore{
		app:         app,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

func (s *PBStore) CreateParty(ctx context.Context, party *models.Party) (*models.Party, error) {
	if err := party.Validate(); err != nil {
		return nil, fmt.Errorf("invalid party: %w", err)
	}

	collection, err := s.app.FindCollectionByNameOrId(partiesCollection)
	if err != nil {
		return nil, fmt.Errorf("find parties collection: %w", err)
	}

	cp := party.Clone()
	cp.Version = 1

	record := core.NewRecord(collection)
	applyParty(record, cp)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return nil, fmt.Errorf("create party: %w", err)
	}

	return recordToParty(record)
}

func (s *PBStore) GetParty(ctx context.Context, partyID string) (*models.Party, error) {
	record, err := s.app.FindRecordById(partiesCollection, partyID)
	if err != nil {
		return nil, status.ErrPartyNotFound
	}
	return recordToParty(record)
}

func (s *PBStore) UpdateParty(ctx context.Context, partyID string, mutate func(*models.Party) error) (*models.Party, error) {
	started := time.Now()
	defer func() {
		monitoring.TrackTxDuration(time.Since(started).Seconds())
	}()

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			monitoring.TrackTxRetry()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * s.backoff):
			}
		}

		var updated *models.Party
		err := s.app.RunInTransaction(func(txApp core.App) error {
			record, err := txApp.FindRecordById(partiesCollection, partyID)
			if err != nil {
				return status.ErrPartyNotFound
			}

			party, err := recordToParty(record)
			if err != nil {
				return err
			}

			expected := party.Version
			if err := mutate(party); err != nil {
				return err
			}
			party.Version = expected + 1

			// SQLite serializes writers: a transaction that raced this
			// one between the read and the commit fails with a busy or
			// snapshot error, which the outer loop retries.
			applyParty(record, party)
			if err := txApp.SaveWithContext(ctx, record); err != nil {
				return fmt.Errorf("update party %s: %w", partyID, err)
			}

			updated = party
			return nil
		})
		if err == nil {
			return updated, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %v", status.ErrTxConflict, lastErr)
}

func (s *PBStore) PartiesByHost(ctx context.Context, hostID string) ([]*models.Party, error) {
	records, err := s.app.FindRecordsByFilter(
		partiesCollection,
		"host_id = {:host}",
		"-created",
		200,
		0,
		dbx.Params{"host": hostID},
	)
	if err != nil {
		return nil, fmt.Errorf("parties by host %s: %w", hostID, err)
	}
	return recordsToParties(records)
}

func (s *PBStore) UnprocessedEndedParties(ctx context.Context, endedBefore, endedAfter time.Time, limit int) ([]*models.Party, error) {
	records, err := s.app.FindRecordsByFilter(
		partiesCollection,
		"end_time > {:after} && end_time <= {:before} && stats_processed = false",
		"end_time",
		limit,
		0,
		dbx.Params{
			"after":  endedAfter.UTC().Format(types.DefaultDateLayout),
			"before": endedBefore.UTC().Format(types.DefaultDateLayout),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("unprocessed ended parties: %w", err)
	}
	return recordsToParties(records)
}

func (s *PBStore) PublicUpcoming(ctx context.Context, limit int) ([]*models.Party, error) {
	records, err := s.app.FindRecordsByFilter(
		partiesCollection,
		"visibility = 'public' && canceled = false && end_time > {:now}",
		"start_time",
		limit,
		0,
		dbx.Params{"now": time.Now().UTC().Format(types.DefaultDateLayout)},
	)
	if err != nil {
		return nil, fmt.Errorf("public upcoming parties: %w", err)
	}
	return recordsToParties(records)
}

func (s *PBStore) DeleteParty(ctx context.Context, partyID string) error {
	record, err := s.app.FindRecordById(partiesCollection, partyID)
	if err != nil {
		return status.ErrPartyNotFound
	}
	if err := s.app.DeleteWithContext(ctx, record); err != nil {
		return fmt.Errorf("delete party %s: %w", partyID, err)
	}
	return nil
}

func isRetryable(err error) bool {
	if status.IsValidation(err) || status.IsNotFound(err) {
		return false
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_BUSY_SNAPSHOT") {
		return true
	}
	return false
}

func recordToParty(record *core.Record) (*models.Party, error) {
	party := &models.Party{
		ID:             record.Id,
		HostID:         record.GetString("host_id"),
		Name:           record.GetString("name"),
		Description:    record.GetString("description"),
		Location:       record.GetString("location"),
		Visibility:     models.Visibility(record.GetString("visibility")),
		MaxGuestCount:  record.GetInt("max_guest_count"),
		TicketPrice:    decimal.NewFromFloat(record.GetFloat("ticket_price")),
		StartTime:      record.GetDateTime("start_time").Time(),
		EndTime:        record.GetDateTime("end_time").Time(),
		StatsProcessed: record.GetBool("stats_processed"),
		StatsError:     record.GetString("stats_error"),
		Canceled:       record.GetBool("canceled"),
		Version:        record.GetInt("version"),
	}

	if raw := record.GetString("active_users"); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &party.ActiveUsers); err != nil {
			return nil, fmt.Errorf("decode active_users for %s: %w", record.Id, err)
		}
	}
	if raw := record.GetString("guest_requests"); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &party.GuestRequests); err != nil {
			return nil, fmt.Errorf("decode guest_requests for %s: %w", record.Id, err)
		}
	}

	if dt := record.GetDateTime("stats_processed_at"); !dt.IsZero() {
		t := dt.Time()
		party.StatsProcessedAt = &t
	}

	return party, nil
}

func recordsToParties(records []*core.Record) ([]*models.Party, error) {
	parties := make([]*models.Party, 0, len(records))
	for _, record := range records {
		party, err := recordToParty(record)
		if err != nil {
			return nil, err
		}
		parties = append(parties, party)
	}
	return parties, nil
}

func applyParty(record *core.Record, party *models.Party) {
	record.Set("host_id", party.HostID)
	record.Set("name", party.Name)
	record.Set("description", party.Description)
	record.Set("location", party.Location)
	record.Set("visibility", string(party.Visibility))
	record.Set("max_guest_count", party.MaxGuestCount)
	record.Set("ticket_price", party.TicketPrice.InexactFloat64())
	record.Set("start_time", party.StartTime)
	record.Set("end_time", party.EndTime)
	record.Set("active_users", party.ActiveUsers)
	record.Set("guest_requests", party.GuestRequests)
	record.Set("stats_processed", party.StatsProcessed)
	record.Set("stats_error", party.StatsError)
	record.Set("canceled", party.Canceled)
	record.Set("version", party.Version)
	if party.StatsProcessedAt != nil {
		record.Set("stats_processed_at", *party.StatsProcessedAt)
	} else {
		record.Set("stats_processed_at", "")
	}
}
