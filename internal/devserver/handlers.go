package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Aidan3445/castaway/internal/models"
)

func withLeagueState(ctx context.Context, ls *LeagueState) context.Context {
	return context.WithValue(ctx, leagueKey, ls)
}

func leagueState(ctx context.Context) *LeagueState {
	return ctx.Value(leagueKey).(*LeagueState)
}

func memberParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "member id must be an integer")
		return 0, false
	}
	return id, true
}

// Reads. Every read requires an authenticated caller bound to the
// league; responses are snapshots taken under the server lock.

func (s *Server) getLeague(w http.ResponseWriter, r *http.Request) {
	ls, _, ok := s.caller(w, r)
	if !ok {
		return
	}
	lg, _, _ := ls.Snapshot()
	writeJSON(w, lg)
}

func (s *Server) getSelf(w http.ResponseWriter, r *http.Request) {
	_, m, ok := s.caller(w, r)
	if !ok {
		return
	}
	writeJSON(w, m)
}

func (s *Server) getMembers(w http.ResponseWriter, r *http.Request) {
	ls, _, ok := s.caller(w, r)
	if !ok {
		return
	}
	_, members, _ := ls.Snapshot()
	writeJSON(w, members)
}

func (s *Server) getPending(w http.ResponseWriter, r *http.Request) {
	ls, _, ok := s.caller(w, r)
	if !ok {
		return
	}
	ls.mu.Lock()
	pending := make([]models.PendingMember, len(ls.Pending))
	copy(pending, ls.Pending)
	ls.mu.Unlock()
	writeJSON(w, pending)
}

func (s *Server) getTimeline(w http.ResponseWriter, r *http.Request) {
	ls, _, ok := s.caller(w, r)
	if !ok {
		return
	}
	_, _, tl := ls.Snapshot()
	if tl == nil {
		tl = models.SelectionTimeline{}
	}
	writeJSON(w, tl)
}

func (s *Server) getContestants(w http.ResponseWriter, r *http.Request) {
	ls, _, ok := s.caller(w, r)
	if !ok {
		return
	}
	ls.mu.Lock()
	cs := make([]models.Contestant, len(ls.Contestants))
	copy(cs, ls.Contestants)
	ls.mu.Unlock()
	writeJSON(w, cs)
}

func (s *Server) getEpisodes(w http.ResponseWriter, r *http.Request) {
	ls, _, ok := s.caller(w, r)
	if !ok {
		return
	}
	ls.mu.Lock()
	eps := make([]models.Episode, len(ls.Episodes))
	copy(eps, ls.Episodes)
	ls.mu.Unlock()
	writeJSON(w, eps)
}

func (s *Server) getBlob(pick func(*LeagueState) json.RawMessage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ls, _, ok := s.caller(w, r)
		if !ok {
			return
		}
		ls.mu.Lock()
		blob := pick(ls)
		ls.mu.Unlock()
		if blob == nil {
			blob = json.RawMessage(`{}`)
		}
		writeJSON(w, blob)
	}
}

// Draft writes.

func (s *Server) startDraft(w http.ResponseWriter, r *http.Request) {
	ls, m, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.store.StartDraft(ls, m); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pickRequest struct {
	ContestantID string `json:"contestant_id"`
}

type pickResponse struct {
	PicksMade int  `json:"picks_made"`
	Completed bool `json:"completed"`
}

func (s *Server) commitPick(w http.ResponseWriter, r *http.Request) {
	ls, m, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req pickRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.store.CommitPick(ls, m.ID, req.ContestantID)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, pickResponse{PicksMade: res.PicksMade, Completed: res.Completed})
}

type skipResponse struct {
	Skipped bool `json:"skipped"`
}

func (s *Server) skipForward(w http.ResponseWriter, r *http.Request) {
	ls, m, ok := s.caller(w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, m) {
		return
	}
	skipped, err := s.store.SkipForward(ls)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, skipResponse{Skipped: skipped})
}

type memberRef struct {
	MemberID int `json:"member_id"`
}

func (s *Server) sendToBack(w http.ResponseWriter, r *http.Request) {
	ls, m, ok := s.caller(w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, m) {
		return
	}
	var req memberRef
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.store.SendToBack(ls, req.MemberID); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type orderRequest struct {
	MemberIDs []int `json:"member_ids"`
}

func (s *Server) replaceOrder(w http.ResponseWriter, r *http.Request) {
	ls, m, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req orderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.store.Reorder(ls, m, req.MemberIDs); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) completeDraft(w http.ResponseWriter, r *http.Request) {
	ls, _, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.store.CompleteDraft(ls); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Lifecycle and membership writes.

func (s *Server) endSeason(w http.ResponseWriter, r *http.Request) {
	ls, m, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.store.EndSeason(ls, m); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cloneRequest struct {
	Name string `json:"name"`
}

func (s *Server) cloneAndArchive(w http.ResponseWriter, r *http.Request) {
	ls, m, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req cloneRequest
	if !decodeBody(w, r, &req) {
		return
	}
	clone, err := s.store.CloneAndArchive(ls, m, req.Name)
	if err != nil {
		writeFault(w, err)
		return
	}
	lg := clone.League
	s.store.Add(clone)
	writeJSON(w, lg)
}

type deleteRequest struct {
	ConfirmName string `json:"confirm_name"`
}

func (s *Server) deleteLeague(w http.ResponseWriter, r *http.Request) {
	ls, m, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req deleteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.store.DeleteLeague(ls, m, req.ConfirmName); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) admitMember(w http.ResponseWriter, r *http.Request) {
	ls, m, ok := s.caller(w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, m) {
		return
	}
	id, ok := memberParam(w, r)
	if !ok {
		return
	}
	admitted, err := s.store.Admit(ls, id)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, admitted)
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	ls, m, ok := s.caller(w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, m) {
		return
	}
	id, ok := memberParam(w, r)
	if !ok {
		return
	}
	if err := s.store.RemoveMember(ls, id); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) transferOwnership(w http.ResponseWriter, r *http.Request) {
	ls, m, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req memberRef
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.store.TransferOwnership(ls, m.ID, req.MemberID); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type roleRequest struct {
	Role models.MemberRole `json:"role"`
}

func (s *Server) changeRole(w http.ResponseWriter, r *http.Request) {
	ls, m, ok := s.caller(w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, m) {
		return
	}
	id, ok := memberParam(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.store.ChangeRole(ls, id, req.Role); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	ls, m, ok := s.caller(w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, m) {
		return
	}
	var blob json.RawMessage
	if !decodeBody(w, r, &blob) {
		return
	}
	s.store.UpdateSettings(ls, blob)
	w.WriteHeader(http.StatusNoContent)
}

func requireAdmin(w http.ResponseWriter, m models.Member) bool {
	if !m.CanAdminister() {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "requires owner or admin role")
		return false
	}
	return true
}
