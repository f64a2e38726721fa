package model

import "time"

// User is an account that owns topics and subscriptions.
//
// Password holds the one-way hash only; it is never serialized.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Active    bool      `json:"active"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName returns the database table name for User.
func (u User) TableName() string {
	return tablePrefix + "user"
}

// NewUser creates a new active, non-admin user. passwordHash must already be hashed.
func NewUser(username, passwordHash string) User {
	return User{
		ID:        0,
		Username:  username,
		Password:  passwordHash,
		Active:    true,
		IsAdmin:   false,
		CreatedAt: time.Now().UTC(),
	}
}
