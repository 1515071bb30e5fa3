package model

import "time"

// User represents a chat participant as stored in the `users` table.  A row
// is created on the first interaction and is never hard-deleted because
// tickets and role bindings reference it.
//
// Fields:
//  ChatID          – Telegram chat identifier, primary key.
//  Username        – Telegram @username, may be empty.
//  FirstName       – display name reported by Telegram.
//  Login           – optional login chosen at registration.
//  PasswordHash    – bcrypt hash of the password (empty until registered).
//  IsAuthenticated – whether the buyer is currently logged in.
//  OrgQuota        – how many more organizations the user may create.
//  JoinedAt        – first interaction timestamp.
type User struct {
	ChatID          int64     // users.chat_id
	Username        string    // users.username (nullable)
	FirstName       string    // users.first_name (nullable)
	Login           string    // users.login (nullable, unique)
	PasswordHash    string    // users.password_hash (nullable)
	IsAuthenticated bool      // users.is_authenticated
	OrgQuota        int       // users.org_quota
	JoinedAt        time.Time // users.joined_at
}

// DisplayName returns the best human label for the user.
func (u User) DisplayName() string {
	switch {
	case u.Username != "":
		return "@" + u.Username
	case u.Login != "":
		return u.Login
	case u.FirstName != "":
		return u.FirstName
	default:
		return ""
	}
}
