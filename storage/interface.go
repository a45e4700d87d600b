package storage

import (
	"context"

	"landlord-server/game"
	"landlord-server/room"
)

// HistoryStore abstracts persistence for rooms, game results and the leaderboard.
// Implementations can be swapped for testing.
type HistoryStore interface {
	// Read
	ListByUserID(ctx context.Context, userID string) ([]GameRecord, error)
	ListLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error)
	GetLeaderboardEntryByUserID(ctx context.Context, userID string) (*LeaderboardEntry, error)

	// Write
	UpsertRoom(ctx context.Context, v room.View) error
	DeleteRoom(ctx context.Context, roomID string) error
	InsertGameResult(ctx context.Context, res game.Result) error

	// Lifecycle
	Close()
}

// Ensure *Store implements HistoryStore at compile time.
var _ HistoryStore = (*Store)(nil)
