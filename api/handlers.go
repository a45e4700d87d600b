package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"landlord-server/auth"
	"landlord-server/config"
	"landlord-server/gameerrors"
	"landlord-server/room"
	"landlord-server/storage"
	"landlord-server/ws"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	Config       *config.Config
	HistoryStore storage.HistoryStore
	Rooms        ws.RoomService
	Verifier     auth.Verifier
}

// NewHandler creates a new API handler with the given dependencies.
func NewHandler(cfg *config.Config, historyStore storage.HistoryStore, rooms ws.RoomService, verifier auth.Verifier) *Handler {
	return &Handler{
		Config:       cfg,
		HistoryStore: historyStore,
		Rooms:        rooms,
		Verifier:     verifier,
	}
}

type identityKey struct{}

// CORS sets CORS headers and answers preflight requests.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractIdentity validates the Authorization header. ok is false when the
// header is missing or the token does not verify.
func (h *Handler) extractIdentity(r *http.Request) (room.Identity, bool) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return room.Identity{}, false
	}
	identity, err := h.Verifier.Verify(token)
	if err != nil {
		slog.Debug("rejected bearer token", "tag", "api", "err", err)
		return room.Identity{}, false
	}
	return identity, true
}

// RequireIdentity rejects requests without a valid bearer token and stores
// the identity in the request context.
func (h *Handler) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := h.extractIdentity(r)
		if !ok {
			writeError(w, gameerrors.ErrAuthenticationRequired)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, identity)))
	})
}

func identityFrom(r *http.Request) room.Identity {
	identity, _ := r.Context().Value(identityKey{}).(room.Identity)
	return identity
}

// statusFor maps an error code to its HTTP status.
func statusFor(code gameerrors.Code) int {
	switch code {
	case gameerrors.CodeAuthenticationRequired:
		return http.StatusUnauthorized
	case gameerrors.CodeRoomNotFound, gameerrors.CodeGameNotFound:
		return http.StatusNotFound
	case gameerrors.CodeNotInRoom:
		return http.StatusForbidden
	case gameerrors.CodeRoomFull, gameerrors.CodeRoomNotWaiting, gameerrors.CodeAlreadyInRoom,
		gameerrors.CodeNotYourTurn, gameerrors.CodeWrongPhase, gameerrors.CodeGameAlreadyInProgress,
		gameerrors.CodeInsufficientOrUnreadyPlayer:
		return http.StatusConflict
	case gameerrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	code, message := gameerrors.Public(err)
	if code == gameerrors.CodeInternal {
		slog.Error("request failed", "tag", "api", "err", err)
	}
	writeJSON(w, statusFor(code), errorBody{Code: string(code), Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "tag", "api", "err", err)
	}
}

// CreateRoomRequest is the body of POST /api/rooms.
type CreateRoomRequest struct {
	Name             string `json:"name"`
	Capacity         int    `json:"capacity"`
	IsPrivate        bool   `json:"isPrivate"`
	TurnTimeLimitSec int    `json:"turnTimeLimitSec"`
}

// CreateRoom opens a room with the caller as creator.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gameerrors.ErrInvalidMessage)
		return
	}
	view, err := h.Rooms.Create(req.Name, req.Capacity, identityFrom(r), room.Settings{
		Private:          req.IsPrivate,
		TurnTimeLimitSec: req.TurnTimeLimitSec,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// ListRooms returns the rooms visible to the caller.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Rooms.RoomList(identityFrom(r).UserID))
}

// JoinRoom adds the caller to a room.
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	view, err := h.Rooms.Join(chi.URLParam(r, "roomID"), identityFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// LeaveRoom removes the caller from a room.
func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	if err := h.Rooms.Leave(chi.URLParam(r, "roomID"), identityFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type readyResponse struct {
	Ready bool `json:"ready"`
}

// ToggleReady flips the caller's readiness.
func (h *Handler) ToggleReady(w http.ResponseWriter, r *http.Request) {
	ready, err := h.Rooms.ToggleReady(chi.URLParam(r, "roomID"), identityFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readyResponse{Ready: ready})
}

// StartGame starts the room's game.
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	view, err := h.Rooms.Start(chi.URLParam(r, "roomID"), identityFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GameState returns the caller's personalized view of the room's game.
func (h *Handler) GameState(w http.ResponseWriter, r *http.Request) {
	state, err := h.Rooms.GameState(chi.URLParam(r, "roomID"), identityFrom(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// History returns the game history for the authenticated user.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	list, err := h.HistoryStore.ListByUserID(r.Context(), identityFrom(r).UserID)
	if err != nil {
		writeError(w, fmt.Errorf("list history: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// LeaderboardResponse is the JSON structure for /api/leaderboard.
type LeaderboardResponse struct {
	Entries          []storage.LeaderboardEntry `json:"entries"`
	CurrentUserEntry *storage.LeaderboardEntry  `json:"current_user_entry"`
}

// Leaderboard returns the global leaderboard with optional current user entry.
// Authentication is optional here; a valid token marks the caller's row.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.HistoryStore.ListLeaderboard(r.Context(), limit, offset)
	if err != nil {
		writeError(w, fmt.Errorf("list leaderboard: %w", err))
		return
	}

	var currentUserEntry *storage.LeaderboardEntry
	if identity, ok := h.extractIdentity(r); ok {
		cur, err := h.HistoryStore.GetLeaderboardEntryByUserID(r.Context(), identity.UserID)
		if err != nil {
			slog.Warn("GetLeaderboardEntryByUserID failed", "tag", "api", "err", err)
		} else if cur != nil {
			inTop := false
			for i := range entries {
				if entries[i].UserID == identity.UserID {
					entries[i].IsCurrentUser = true
					inTop = true
					break
				}
			}
			if !inTop {
				cur.IsCurrentUser = true
				currentUserEntry = cur
			}
		}
	}

	writeJSON(w, http.StatusOK, LeaderboardResponse{Entries: entries, CurrentUserEntry: currentUserEntry})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
