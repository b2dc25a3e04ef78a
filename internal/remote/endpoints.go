package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Aidan3445/castaway/internal/models"
)

// Entity read endpoints, keyed by league handle. One route per cached
// entity kind so the freshness layer can refetch them independently.

func (c *Client) GetLeague(ctx context.Context, hash string) (*models.League, error) {
	var lg models.League
	if err := c.get(ctx, "/leagues/"+hash, &lg); err != nil {
		return nil, err
	}
	return &lg, nil
}

func (c *Client) GetMembers(ctx context.Context, hash string) ([]models.Member, error) {
	var members []models.Member
	if err := c.get(ctx, "/leagues/"+hash+"/members", &members); err != nil {
		return nil, err
	}
	return members, nil
}

// GetSelf resolves the authenticated user to their member record in the
// league. How user ids map to members is the server's business.
func (c *Client) GetSelf(ctx context.Context, hash string) (*models.Member, error) {
	var m models.Member
	if err := c.get(ctx, "/leagues/"+hash+"/me", &m); err != nil {
		return nil, err
	}
	m.LoggedIn = true
	return &m, nil
}

func (c *Client) GetPendingMembers(ctx context.Context, hash string) ([]models.PendingMember, error) {
	var pending []models.PendingMember
	if err := c.get(ctx, "/leagues/"+hash+"/members/pending", &pending); err != nil {
		return nil, err
	}
	return pending, nil
}

func (c *Client) GetTimeline(ctx context.Context, hash string) (models.SelectionTimeline, error) {
	var tl models.SelectionTimeline
	if err := c.get(ctx, "/leagues/"+hash+"/timeline", &tl); err != nil {
		return nil, err
	}
	return tl, nil
}

func (c *Client) GetContestants(ctx context.Context, hash string) ([]models.Contestant, error) {
	var cs []models.Contestant
	if err := c.get(ctx, "/leagues/"+hash+"/contestants", &cs); err != nil {
		return nil, err
	}
	return cs, nil
}

func (c *Client) GetEpisodes(ctx context.Context, hash string) ([]models.Episode, error) {
	var eps []models.Episode
	if err := c.get(ctx, "/leagues/"+hash+"/episodes", &eps); err != nil {
		return nil, err
	}
	return eps, nil
}

// Mutation endpoints. Every write is conditioned server-side on the
// current order and pick count; the client never sends its own snapshot
// of either.

// PickResponse reports whether the accepted pick completed the draft.
type PickResponse struct {
	PicksMade int  `json:"picks_made"`
	Completed bool `json:"completed"`
}

type pickRequest struct {
	ContestantID string `json:"contestant_id"`
}

func (c *Client) CommitPick(ctx context.Context, hash, contestantID string) (*PickResponse, error) {
	var resp PickResponse
	if err := c.post(ctx, "/leagues/"+hash+"/draft/picks", pickRequest{ContestantID: contestantID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SkipResponse reports whether a swap actually happened; skipping the
// last member in order is a server-side no-op, not an error.
type SkipResponse struct {
	Skipped bool `json:"skipped"`
}

func (c *Client) SkipForward(ctx context.Context, hash string) (*SkipResponse, error) {
	var resp SkipResponse
	if err := c.post(ctx, "/leagues/"+hash+"/draft/skip", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type memberRef struct {
	MemberID int `json:"member_id"`
}

func (c *Client) SendToBack(ctx context.Context, hash string, memberID int) error {
	return c.post(ctx, "/leagues/"+hash+"/draft/send-to-back", memberRef{MemberID: memberID}, nil)
}

type orderRequest struct {
	MemberIDs []int `json:"member_ids"`
}

func (c *Client) ReplaceOrder(ctx context.Context, hash string, memberIDs []int) error {
	return c.put(ctx, "/leagues/"+hash+"/draft/order", orderRequest{MemberIDs: memberIDs})
}

func (c *Client) StartDraft(ctx context.Context, hash string) error {
	return c.post(ctx, "/leagues/"+hash+"/draft/start", nil, nil)
}

// CompleteDraft is the conditional Draft -> Active status write. The
// server accepts at most one; losers see the league already Active and
// get a success, which is what makes observation idempotent.
func (c *Client) CompleteDraft(ctx context.Context, hash string) error {
	return c.post(ctx, "/leagues/"+hash+"/draft/complete", nil, nil)
}

func (c *Client) EndSeason(ctx context.Context, hash string) error {
	return c.post(ctx, "/leagues/"+hash+"/end", nil, nil)
}

type cloneRequest struct {
	Name string `json:"name"`
}

// CloneAndArchive archives the league and returns a fresh Predraft
// league carrying the same membership.
func (c *Client) CloneAndArchive(ctx context.Context, hash, newName string) (*models.League, error) {
	var lg models.League
	if err := c.post(ctx, "/leagues/"+hash+"/clone", cloneRequest{Name: newName}, &lg); err != nil {
		return nil, err
	}
	return &lg, nil
}

type deleteRequest struct {
	ConfirmName string `json:"confirm_name"`
}

func (c *Client) DeleteLeague(ctx context.Context, hash, confirmName string) error {
	return c.delete(ctx, "/leagues/"+hash, deleteRequest{ConfirmName: confirmName})
}

func (c *Client) AdmitMember(ctx context.Context, hash string, pendingID int) error {
	return c.post(ctx, fmt.Sprintf("/leagues/%s/members/%d/admit", hash, pendingID), nil, nil)
}

func (c *Client) RemoveMember(ctx context.Context, hash string, memberID int) error {
	return c.delete(ctx, fmt.Sprintf("/leagues/%s/members/%d", hash, memberID), nil)
}

func (c *Client) TransferOwnership(ctx context.Context, hash string, newOwnerID int) error {
	return c.post(ctx, "/leagues/"+hash+"/owner", memberRef{MemberID: newOwnerID}, nil)
}

type roleRequest struct {
	Role models.MemberRole `json:"role"`
}

func (c *Client) ChangeRole(ctx context.Context, hash string, memberID int, role models.MemberRole) error {
	return c.post(ctx, fmt.Sprintf("/leagues/%s/members/%d/role", hash, memberID), roleRequest{Role: role}, nil)
}

// UpdateSettings replaces the league's settings payload. The core treats
// settings as opaque JSON; only the server interprets them.
func (c *Client) UpdateSettings(ctx context.Context, hash string, settings json.RawMessage) error {
	return c.put(ctx, "/leagues/"+hash+"/settings", settings)
}

// EndpointForKind maps a cached entity kind to its read route. Settings,
// rules, predictions and custom events are opaque payloads the core
// caches but never interprets.
func EndpointForKind(hash, kind string) string {
	switch kind {
	case "league":
		return "/leagues/" + hash
	case "members":
		return "/leagues/" + hash + "/members"
	case "pendingMembers":
		return "/leagues/" + hash + "/members/pending"
	case "selectionTimeline":
		return "/leagues/" + hash + "/timeline"
	case "contestants":
		return "/leagues/" + hash + "/contestants"
	case "episodes":
		return "/leagues/" + hash + "/episodes"
	case "settings":
		return "/leagues/" + hash + "/settings"
	case "rules":
		return "/leagues/" + hash + "/rules"
	case "basePredictions":
		return "/leagues/" + hash + "/predictions"
	case "customEvents":
		return "/leagues/" + hash + "/events"
	default:
		return ""
	}
}
