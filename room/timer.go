package room

import (
	"log/slog"
	"time"

	"landlord-server/game"
)

// armTurnTimer (re)starts the turn timer for the current turn of the room's
// live session. Rooms without a time limit never arm one. The caller must
// hold the room lock.
func (c *Coordinator) armTurnTimer(r *Room) {
	c.stopTurnTimer(r)
	s := r.session
	if s == nil || s.TurnLimit <= 0 || (s.Phase != game.Bidding && s.Phase != game.Playing) {
		return
	}
	version := s.Version
	r.turnTimer = time.AfterFunc(s.TurnLimit, func() {
		c.turnTimeout(r, s, version)
	})
}

func (c *Coordinator) stopTurnTimer(r *Room) {
	if r.turnTimer != nil {
		r.turnTimer.Stop()
		r.turnTimer = nil
	}
}

// turnTimeout acts for the current player when the turn it was armed for is
// still the current one. Any accepted move bumps the session version, so a
// timer that lost the race to a real move does nothing.
func (c *Coordinator) turnTimeout(r *Room, s *game.Session, version int) {
	finished := false
	r.mu.Lock()
	if !r.removed && r.session == s && s.Version == version {
		current := s.Current()
		slog.Info("turn timed out", "tag", "room", "room", r.ID, "session", s.ID, "user", current.UserID, "phase", s.Phase.String())

		if s.Phase == game.Bidding {
			if _, err := s.AutoAct(); err != nil {
				slog.Error("auto bid failed", "tag", "room", "room", r.ID, "err", err)
			} else {
				c.bidApplied(r, current.UserID, 0)
			}
		} else {
			m, err := s.AutoAct()
			if err != nil {
				slog.Error("auto play failed", "tag", "room", "room", r.ID, "err", err)
			} else {
				finished = c.moveApplied(r, m)
			}
		}
	}
	r.mu.Unlock()
	if finished {
		c.notifier.RoomListChanged()
	}
}
