package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/Aidan3445/castaway/internal/fault"
	"github.com/Aidan3445/castaway/internal/models"
)

// Server exposes the store over the same HTTP surface the real service
// speaks, so the client core runs against it unchanged.
type Server struct {
	store *Store
}

// NewServer wraps a store.
func NewServer(store *Store) *Server {
	return &Server{store: store}
}

// Handler builds the full route tree with CORS applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Route("/leagues/{hash}", func(r chi.Router) {
		r.Use(s.withLeague)

		r.Get("/", s.getLeague)
		r.Delete("/", s.deleteLeague)
		r.Get("/me", s.getSelf)
		r.Get("/members", s.getMembers)
		r.Get("/members/pending", s.getPending)
		r.Post("/members/{id}/admit", s.admitMember)
		r.Delete("/members/{id}", s.removeMember)
		r.Post("/members/{id}/role", s.changeRole)
		r.Post("/owner", s.transferOwnership)
		r.Get("/timeline", s.getTimeline)
		r.Get("/contestants", s.getContestants)
		r.Get("/episodes", s.getEpisodes)
		r.Get("/settings", s.getBlob(func(ls *LeagueState) json.RawMessage { return ls.Settings }))
		r.Put("/settings", s.updateSettings)
		r.Get("/rules", s.getBlob(func(ls *LeagueState) json.RawMessage { return ls.Rules }))
		r.Get("/predictions", s.getBlob(func(ls *LeagueState) json.RawMessage { return ls.Predictions }))
		r.Get("/events", s.getBlob(func(ls *LeagueState) json.RawMessage { return ls.Events }))
		r.Post("/draft/start", s.startDraft)
		r.Post("/draft/picks", s.commitPick)
		r.Post("/draft/skip", s.skipForward)
		r.Post("/draft/send-to-back", s.sendToBack)
		r.Put("/draft/order", s.replaceOrder)
		r.Post("/draft/complete", s.completeDraft)
		r.Post("/end", s.endSeason)
		r.Post("/clone", s.cloneAndArchive)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(r)
}

type ctxKey int

const leagueKey ctxKey = iota

// withLeague resolves the league handle once per request.
func (s *Server) withLeague(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ls := s.store.Get(chi.URLParam(r, "hash"))
		if ls == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "no such league")
			return
		}
		next.ServeHTTP(w, r.WithContext(withLeagueState(r.Context(), ls)))
	})
}

// caller resolves the bearer token to the member it belongs to. The dev
// server treats the token itself as the user id.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (ls *LeagueState, m models.Member, ok bool) {
	ls = leagueState(r.Context())
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || token == "" {
		writeError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "missing bearer token")
		return nil, models.Member{}, false
	}
	m, bound := ls.MemberFor(token)
	if !bound {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "not a member of this league")
		return nil, models.Member{}, false
	}
	return ls, m, true
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorBody{Code: code, Message: msg}); err != nil {
		log.Warn().Err(err).Msg("write error response")
	}
}

// writeFault maps the internal error taxonomy onto the wire contract the
// client decodes back into the same taxonomy.
func writeFault(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fault.ErrTurnViolation):
		writeError(w, http.StatusConflict, "TURN_VIOLATION", err.Error())
	case errors.Is(err, fault.ErrStaleWrite):
		writeError(w, http.StatusConflict, "STALE_WRITE", err.Error())
	case errors.Is(err, fault.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error())
	case errors.Is(err, fault.ErrAuthRequired):
		writeError(w, http.StatusUnauthorized, "AUTH_REQUIRED", err.Error())
	default:
		log.Error().Err(err).Msg("unhandled devserver error")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "malformed request body")
		return false
	}
	return true
}
