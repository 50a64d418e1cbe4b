// Package httpapi exposes the read-only session query surface consumed
// by the platform's REST layer, plus health and metrics endpoints. It
// never mutates directory state: session creation happens lazily on the
// WebSocket upgrade itself.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/blockforge/relay/internal/game/session"
)

// API serves the session query endpoints.
type API struct {
	directory   *session.Directory
	logger      *zap.Logger
	publicWSURL string
}

// NewAPI creates the query API.
//
// Precondition: directory and logger must be non-nil. publicWSURL may
// be empty, in which case join responses derive the URL from the
// request host.
func NewAPI(directory *session.Directory, logger *zap.Logger, publicWSURL string) *API {
	return &API{
		directory:   directory,
		logger:      logger,
		publicWSURL: strings.TrimRight(publicWSURL, "/"),
	}
}

// Register mounts all endpoints on r.
func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/api/games/{gameId}/sessions", a.handleSessions).Methods(http.MethodGet)
	r.HandleFunc("/api/games/{gameId}/join", a.handleJoin).Methods(http.MethodPost)
	r.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// handleSessions reports occupancy for every session of a game. A game
// with no sessions answers 404; "exists but empty" cannot occur because
// empty sessions are pruned immediately.
func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameId"]

	infos := a.directory.Infos(gameID)
	if infos == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no sessions for game"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"gameId":   gameID,
		"sessions": infos,
	})
}

// handleJoin hands out the WebSocket endpoint for a game. When every
// existing session is full and the caller did not ask for a new one
// (?create=true), it answers 409. The upgrade path itself still opens
// a fresh session on overflow, so the 409 is advisory: a client that
// connects anyway is not turned away.
func (a *API) handleJoin(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameId"]

	exists, hasRoom := a.directory.Occupancy(gameID)
	if exists && !hasRoom && r.URL.Query().Get("create") != "true" {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "all sessions full"})
		return
	}

	base := a.publicWSURL
	if base == "" {
		base = "ws://" + r.Host
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"gameId": gameID,
		"wsUrl":  fmt.Sprintf("%s/ws/game/%s", base, gameID),
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
