package models

// MemberRole defines what a member may do inside their league.
type MemberRole string

const (
	RoleOwner  MemberRole = "OWNER"
	RoleAdmin  MemberRole = "ADMIN"
	RoleMember MemberRole = "MEMBER"
)

// Palette is the bounded set of colors a member may claim. Color is unique
// within a league, so Palette also caps league size.
var Palette = []string{
	"#E63946", "#F4A261", "#E9C46A", "#2A9D8F",
	"#264653", "#457B9D", "#A8DADC", "#B5838D",
	"#6D6875", "#80ED99", "#9D4EDD", "#FF758F",
	"#3A86FF", "#FB5607", "#8338EC", "#FFBE0B",
	"#006D77", "#D62828",
}

// Member is a participant in exactly one league.
//
// DraftOrder values within a league always form a contiguous permutation
// of 0..N-1 across non-pending members. LoggedIn marks the viewing user
// and is a client-side annotation, never persisted.
type Member struct {
	ID          int        `json:"id"`
	DisplayName string     `json:"display_name"`
	Color       string     `json:"color"`
	Role        MemberRole `json:"role"`
	DraftOrder  int        `json:"draft_order"`
	LoggedIn    bool       `json:"-"`
}

// CanAdminister reports whether the member may run owner/admin operations
// such as starting the draft early or skipping a turn.
func (m Member) CanAdminister() bool {
	return m.Role == RoleOwner || m.Role == RoleAdmin
}

// PendingMember is a join request awaiting Owner/Admin admission. It has
// no draft order and does not participate in the permutation invariant.
type PendingMember struct {
	ID          int    `json:"id"`
	DisplayName string `json:"display_name"`
}
