package domain

import "time"

// RecipientKind distinguishes a single user from the administrator group.
type RecipientKind int

const (
	RecipientUser RecipientKind = iota
	RecipientAdmin
)

// Recipient identifies who a notification is addressed to. The admin group
// is a first-class variant rather than a magic user id; the string form only
// exists at the storage and transport boundaries.
type Recipient struct {
	Kind   RecipientKind
	UserID string
}

// UserRecipient addresses a single user.
func UserRecipient(userID string) Recipient {
	return Recipient{Kind: RecipientUser, UserID: userID}
}

// AdminRecipient addresses the administrator group.
func AdminRecipient() Recipient {
	return Recipient{Kind: RecipientAdmin}
}

// adminKey is the storage key for the admin group.
const adminKey = "admin"

// Key returns the stable storage/routing key for the recipient.
func (r Recipient) Key() string {
	if r.Kind == RecipientAdmin {
		return adminKey
	}
	return r.UserID
}

// RecipientFromKey reverses Key.
func RecipientFromKey(key string) Recipient {
	if key == adminKey {
		return AdminRecipient()
	}
	return UserRecipient(key)
}

// Notification is one delivery-worthy event. The stored record is the
// durable source of truth; live push is a best-effort accelerator.
type Notification struct {
	ID          string    `json:"id"`
	Recipient   Recipient `json:"-"`
	OrderID     string    `json:"orderId"`
	Message     string    `json:"message"`
	StatusLabel string    `json:"newStatus,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}
