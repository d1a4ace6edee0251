package models

// MemberType distinguishes the team owner from regular members.
type MemberType string

const (
	MemberTypeOwner   MemberType = "owner"
	MemberTypeRegular MemberType = "regular"
)

// MembershipStatus tracks where a membership request stands.
type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "pending"
	MembershipAccepted MembershipStatus = "accepted"
	MembershipRejected MembershipStatus = "rejected"
)

// TeamMember links a user to a team. There is at most one row per (team, user).
type TeamMember struct {
	BaseModel

	TeamID        string           `gorm:"type:uuid;not null;uniqueIndex:idx_team_members_team_user" json:"team_id"`
	UserID        string           `gorm:"type:uuid;not null;uniqueIndex:idx_team_members_team_user;index" json:"user_id"`
	MemberType    MemberType       `gorm:"type:varchar(16);not null" json:"member_type"`
	StatusRequest MembershipStatus `gorm:"type:varchar(16);not null;index" json:"status_request"`
	IsDeleted     bool             `gorm:"not null;default:false" json:"-"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Active reports whether the member currently belongs to the team.
func (m *TeamMember) Active() bool {
	return m != nil && !m.IsDeleted && m.StatusRequest == MembershipAccepted
}
