package user

import "time"

// User is a Telegram account known to the bot. Premium fields are written
// only by the entitlement manager; LoggedIn/LastLogin are bot session state.
type User struct {
	TelegramID       int64      `json:"telegram_id"`
	Username         string     `json:"username,omitempty"`
	Name             string     `json:"name"`
	Email            string     `json:"email,omitempty"`
	IsPremium        bool       `json:"is_premium"`
	PremiumExpiresAt *Date      `json:"premium_expires_at"`
	LoggedIn         bool       `json:"logged_in"`
	LastLogin        *time.Time `json:"last_login,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Version is bumped on every entitlement write and used for compare-and-swap.
	Version int64 `json:"-"`
}

// Status is the entitlement view of a user. Active is derived at read time
// and stays correct even when a lapsed grant has not been swept yet.
type Status struct {
	TelegramID int64 `json:"telegram_id"`
	Premium    bool  `json:"premium"`
	ExpiresAt  *Date `json:"expires_at"`
	Active     bool  `json:"active"`
}

// StatusAt derives the entitlement status as of today.
func (u *User) StatusAt(today Date) Status {
	active := u.IsPremium && (u.PremiumExpiresAt == nil || !u.PremiumExpiresAt.Before(today))
	return Status{
		TelegramID: u.TelegramID,
		Premium:    u.IsPremium,
		ExpiresAt:  u.PremiumExpiresAt,
		Active:     active,
	}
}

// Stats summarises the user base for the admin dashboard.
type Stats struct {
	TotalUsers    int `json:"total_users"`
	ActivePremium int `json:"active_premium"`
	LoggedIn      int `json:"logged_in"`
	SignupsToday  int `json:"signups_today"`
}
