package models

import (
	"fmt"
	"sort"
)

type ParticipantKind string

const (
	KindUser  ParticipantKind = "user"
	KindGroup ParticipantKind = "group"
)

// Participant is either a single user or a group of users.
// MemberIDs is only filled for groups and only when it has been resolved.
type Participant struct {
	Kind      ParticipantKind `json:"kind"`
	ID        int             `json:"id"`
	MemberIDs []int           `json:"member_ids,omitempty"`
}

func UserParticipant(userID int) Participant {
	return Participant{Kind: KindUser, ID: userID}
}

func GroupParticipant(groupID int, memberIDs []int) Participant {
	return Participant{Kind: KindGroup, ID: groupID, MemberIDs: memberIDs}
}

func (p Participant) IsGroup() bool {
	return p.Kind == KindGroup
}

// Same reports whether both values reference the same user or group.
func (p Participant) Same(other Participant) bool {
	return p.Kind == other.Kind && p.ID == other.ID
}

func (p Participant) HasMember(userID int) bool {
	for _, id := range p.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// UserIDs returns the users points are credited to.
func (p Participant) UserIDs() []int {
	if p.Kind == KindUser {
		return []int{p.ID}
	}
	ids := make([]int, len(p.MemberIDs))
	copy(ids, p.MemberIDs)
	sort.Ints(ids)
	return ids
}

func (p Participant) Valid() bool {
	return (p.Kind == KindUser || p.Kind == KindGroup) && p.ID > 0
}

func (p Participant) String() string {
	return fmt.Sprintf("%s:%d", p.Kind, p.ID)
}
