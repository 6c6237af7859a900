package services

import (
	"context"
	"fmt"

	"party-system/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// ReputationService receives post-event accounting from the completion
// sweeper. Errors are recorded by the caller but never block a party
// from being marked processed.
type ReputationService interface {
	UpdateUserStatsAfterEvent(ctx context.Context, party *models.Party, attendees []string) error
}

const userStatsCollection = "user_stats"

// StatsService maintains per-user attendance counters in the
// user_stats collection.
type StatsService struct {
	app core.App
}

func NewStatsService(app core.App) *StatsService {
	return &StatsService{app: app}
}

func (s *StatsService) UpdateUserStatsAfterEvent(ctx context.Context, party *models.Party, attendees []string) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		for _, userID := range attendees {
			if err := s.bump(ctx, txApp, userID, "parties_attended", party); err != nil {
				return err
			}
		}
		return s.bump(ctx, txApp, party.HostID, "parties_hosted", party)
	})
}

func (s *StatsService) bump(ctx context.Context, txApp core.App, userID, counter string, party *models.Party) error {
	records, err := txApp.FindRecordsByFilter(
		userStatsCollection,
		"user_id = {:user}",
		"",
		1,
		0,
		dbx.Params{"user": userID},
	)
	if err != nil {
		return fmt.Errorf("find stats for %s: %w", userID, err)
	}

	var record *core.Record
	if len(records) > 0 {
		record = records[0]
	} else {
		collection, err := txApp.FindCollectionByNameOrId(userStatsCollection)
		if err != nil {
			return fmt.Errorf("find user_stats collection: %w", err)
		}
		record = core.NewRecord(collection)
		record.Set("user_id", userID)
	}

	record.Set(counter, record.GetInt(counter)+1)
	record.Set("last_party_at", party.EndTime)

	if err := txApp.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("save stats for %s: %w", userID, err)
	}
	return nil
}
