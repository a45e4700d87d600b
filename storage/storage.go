package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"landlord-server/game"
	"landlord-server/room"
)

const (
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 200
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS rooms (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	capacity    SMALLINT NOT NULL,
	status      TEXT NOT NULL,
	creator_id  TEXT NOT NULL,
	is_private  BOOLEAN NOT NULL DEFAULT false,
	members     JSONB NOT NULL DEFAULT '[]',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_rooms_status ON rooms(status);
CREATE TABLE IF NOT EXISTS game_results (
	id           UUID PRIMARY KEY,
	room_id      UUID NOT NULL,
	landlord_id  TEXT NOT NULL,
	landlord_won BOOLEAN NOT NULL,
	user_ids     TEXT[] NOT NULL,
	players      JSONB NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_game_results_user_ids ON game_results USING GIN (user_ids);
CREATE TABLE IF NOT EXISTS player_stats (
	user_id           TEXT PRIMARY KEY,
	display_name      TEXT NOT NULL DEFAULT '',
	points            INT  NOT NULL DEFAULT 0,
	wins              INT  NOT NULL DEFAULT 0,
	losses            INT  NOT NULL DEFAULT 0,
	games_as_landlord INT  NOT NULL DEFAULT 0,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_player_stats_points ON player_stats(points DESC);
`

// Store persists rooms, finished games and per-player totals.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and ensures the tables exist.
// If databaseURL is empty, NewStore returns (nil, nil) and no persistence occurs.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	slog.Info("connected to Postgres", "tag", "storage")
	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// UpsertRoom writes the latest snapshot of a room.
func (s *Store) UpsertRoom(ctx context.Context, v room.View) error {
	if s == nil || s.pool == nil {
		return nil
	}
	members, err := json.Marshal(v.Members)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO rooms (id, name, capacity, status, creator_id, is_private, members, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			capacity = EXCLUDED.capacity,
			status = EXCLUDED.status,
			creator_id = EXCLUDED.creator_id,
			is_private = EXCLUDED.is_private,
			members = EXCLUDED.members,
			updated_at = now()`,
		v.ID, v.Name, v.Capacity, v.Status.String(), v.CreatorID, v.IsPrivate, members, v.CreatedAt)
	return err
}

// DeleteRoom removes a closed room.
func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	if s == nil || s.pool == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
	return err
}

// statsDelta is the change one finished game makes to a player's totals.
type statsDelta struct {
	UserID   string
	Name     string
	Points   int
	Win      int
	Loss     int
	Landlord int
}

func statsDeltas(res game.Result) []statsDelta {
	out := make([]statsDelta, 0, len(res.Players))
	for _, p := range res.Players {
		d := statsDelta{UserID: p.UserID, Name: p.Name, Points: p.ScoreDelta}
		if p.Won {
			d.Win = 1
		} else {
			d.Loss = 1
		}
		if p.UserID == res.LandlordID {
			d.Landlord = 1
		}
		out = append(out, d)
	}
	return out
}

// InsertGameResult records a finished game and folds it into player_stats in
// one transaction.
func (s *Store) InsertGameResult(ctx context.Context, res game.Result) error {
	if s == nil || s.pool == nil {
		return nil
	}
	players, err := json.Marshal(res.Players)
	if err != nil {
		return err
	}
	userIDs := make([]string, len(res.Players))
	for i, p := range res.Players {
		userIDs[i] = p.UserID
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO game_results (id, room_id, landlord_id, landlord_won, user_ids, players, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		res.SessionID, res.RoomID, res.LandlordID, res.LandlordWon, userIDs, players, res.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert game result: %w", err)
	}

	for _, d := range statsDeltas(res) {
		_, err = tx.Exec(ctx, `
			INSERT INTO player_stats (user_id, display_name, points, wins, losses, games_as_landlord)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id) DO UPDATE SET
				display_name = EXCLUDED.display_name,
				points = player_stats.points + EXCLUDED.points,
				wins = player_stats.wins + EXCLUDED.wins,
				losses = player_stats.losses + EXCLUDED.losses,
				games_as_landlord = player_stats.games_as_landlord + EXCLUDED.games_as_landlord,
				updated_at = now()`,
			d.UserID, d.Name, d.Points, d.Win, d.Loss, d.Landlord)
		if err != nil {
			return fmt.Errorf("update stats for %s: %w", d.UserID, err)
		}
	}
	return tx.Commit(ctx)
}

// GameRecord is a single row returned for the history API.
type GameRecord struct {
	ID          string              `json:"id"`
	RoomID      string              `json:"room_id"`
	FinishedAt  string              `json:"finished_at"` // ISO8601
	LandlordID  string              `json:"landlord_id"`
	LandlordWon bool                `json:"landlord_won"`
	Players     []game.ResultPlayer `json:"players"`
	YourDelta   int                 `json:"your_delta"`
	YouWon      bool                `json:"you_won"`
}

// ListByUserID returns all games the user played, most recent first.
func (s *Store) ListByUserID(ctx context.Context, userID string) ([]GameRecord, error) {
	if s == nil || s.pool == nil {
		return []GameRecord{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, finished_at, landlord_id, landlord_won, players
		FROM game_results
		WHERE $1 = ANY(user_ids)
		ORDER BY finished_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []GameRecord{}
	for rows.Next() {
		var r GameRecord
		var finishedAt time.Time
		var players []byte
		if err := rows.Scan(&r.ID, &r.RoomID, &finishedAt, &r.LandlordID, &r.LandlordWon, &players); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(players, &r.Players); err != nil {
			return nil, fmt.Errorf("decode players of %s: %w", r.ID, err)
		}
		r.FinishedAt = finishedAt.UTC().Format(time.RFC3339)
		r.fillPerspective(userID)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (r *GameRecord) fillPerspective(userID string) {
	for _, p := range r.Players {
		if p.UserID == userID {
			r.YourDelta = p.ScoreDelta
			r.YouWon = p.Won
			return
		}
	}
}

// LeaderboardEntry is a single row for the leaderboard API.
type LeaderboardEntry struct {
	UserID          string `json:"user_id"`
	DisplayName     string `json:"display_name"`
	Points          int    `json:"points"`
	Wins            int    `json:"wins"`
	Losses          int    `json:"losses"`
	GamesAsLandlord int    `json:"games_as_landlord"`
	IsCurrentUser   bool   `json:"is_current_user,omitempty"`
}

// normalizePage clamps leaderboard paging parameters.
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListLeaderboard returns entries ordered by points DESC, then wins DESC.
func (s *Store) ListLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error) {
	if s == nil || s.pool == nil {
		return []LeaderboardEntry{}, nil
	}
	limit, offset = normalizePage(limit, offset)
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, display_name, points, wins, losses, games_as_landlord
		FROM player_stats
		ORDER BY points DESC, wins DESC, user_id
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.Points, &e.Wins, &e.Losses, &e.GamesAsLandlord); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetLeaderboardEntryByUserID returns one player's totals, or (nil, nil) if
// the player has not finished a game yet.
func (s *Store) GetLeaderboardEntryByUserID(ctx context.Context, userID string) (*LeaderboardEntry, error) {
	if s == nil || s.pool == nil || userID == "" {
		return nil, nil
	}
	var e LeaderboardEntry
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, display_name, points, wins, losses, games_as_landlord
		FROM player_stats
		WHERE user_id = $1`,
		userID).Scan(&e.UserID, &e.DisplayName, &e.Points, &e.Wins, &e.Losses, &e.GamesAsLandlord)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}
