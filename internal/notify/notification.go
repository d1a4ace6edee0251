package notify

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind identifies the template a notification is rendered with.
type Kind string

const (
	KindOTP               Kind = "otp"
	KindPasswordReset     Kind = "password_reset"
	KindTeamInvite        Kind = "team_invite"
	KindTeamInviteSuccess Kind = "team_invite_success"
	KindMemberRemoved     Kind = "member_removed"
	KindWelcome           Kind = "welcome"
)

// Notification is a queued email. It is self-contained so a separate worker
// process can render and deliver it without touching the database.
type Notification struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	To        string            `json:"to"`
	Name      string            `json:"name"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func newNotification(kind Kind, to, name string, data map[string]string, now time.Time) Notification {
	return Notification{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Kind:      kind,
		To:        to,
		Name:      name,
		Data:      data,
		CreatedAt: now,
	}
}

// Encode serialises n for a queue transport.
func (n Notification) Encode() ([]byte, error) {
	return json.Marshal(n)
}

// Decode parses a queued notification.
func Decode(payload []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return Notification{}, fmt.Errorf("notify: decode notification: %w", err)
	}
	if n.Kind == "" || n.To == "" {
		return Notification{}, fmt.Errorf("notify: notification %q is missing kind or recipient", n.ID)
	}
	return n, nil
}
