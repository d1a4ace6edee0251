package models

import "time"

// TeamInvite is a single-use, time-boxed invitation for one user to join one team.
// InviteLink holds the raw secret; the URL sent to the invitee carries it signed.
type TeamInvite struct {
	BaseModel

	TeamID            string    `gorm:"type:uuid;not null;index" json:"team_id"`
	InviterID         string    `gorm:"type:uuid;not null" json:"inviter_id"`
	InviteeID         string    `gorm:"type:uuid;not null;index" json:"invitee_id"`
	InviteLink        string    `gorm:"not null;uniqueIndex" json:"-"`
	InviteLinkExpires time.Time `gorm:"not null;index" json:"invite_link_expires"`
	LinkIsUsed        bool      `gorm:"not null;default:false" json:"link_is_used"`

	Team *Team `gorm:"foreignKey:TeamID" json:"team,omitempty"`
}

// Expired reports whether the invite can no longer be consumed at now.
func (i *TeamInvite) Expired(now time.Time) bool {
	return !now.Before(i.InviteLinkExpires)
}
