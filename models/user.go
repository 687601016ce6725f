package models

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RolePlayer UserRole = "player"
)

// User is a player as known to the identity platform.
type User struct {
	ID   int      `json:"id"`
	Name string   `json:"name"`
	Role UserRole `json:"role,omitempty"`
}

// Group is a team of users. Membership can change between matches,
// that is why group matches keep their own roster.
type Group struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	MemberIDs []int  `json:"member_ids"`
}

func (g *Group) HasMember(userID int) bool {
	for _, id := range g.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}
