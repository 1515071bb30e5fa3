package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/iliyamo/event-ticket-bot/internal/repository"
	"github.com/iliyamo/event-ticket-bot/internal/utils"
)

var (
	// ErrInvalidLogin: login does not match ^[a-z0-9]{3,20}$.
	ErrInvalidLogin = errors.New("invalid login")
	// ErrWeakPassword: fewer than 6 characters or missing a lower-case
	// letter, an upper-case letter or a digit.
	ErrWeakPassword = errors.New("weak password")
	// ErrBadCredentials: unknown login or wrong password.
	ErrBadCredentials = errors.New("bad credentials")
)

var loginPattern = regexp.MustCompile(`^[a-z0-9]{3,20}$`)

// NormalizeLogin trims and lower-cases a login as typed.
func NormalizeLogin(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ValidateLogin checks an already normalised login.
func ValidateLogin(login string) error {
	if !loginPattern.MatchString(login) {
		return ErrInvalidLogin
	}
	return nil
}

// ValidatePassword enforces the password policy.
func ValidatePassword(pw string) error {
	if len([]rune(pw)) < 6 || len(pw) > 72 {
		return ErrWeakPassword
	}
	var lower, upper, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return ErrWeakPassword
	}
	return nil
}

// Auth implements buyer registration and login on top of UserRepo.
type Auth struct {
	users *repository.UserRepo
	cost  int
}

// NewAuth returns an Auth hashing passwords with the given bcrypt cost.
func NewAuth(users *repository.UserRepo, bcryptCost int) *Auth {
	return &Auth{users: users, cost: bcryptCost}
}

// LoginTaken reports whether a normalised login is already registered.
func (a *Auth) LoginTaken(ctx context.Context, login string) (bool, error) {
	_, err := a.users.GetByLogin(ctx, login)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Register stores credentials for chatID and logs it in.  A login taken in
// the meantime yields repository.ErrConflict.
func (a *Auth) Register(ctx context.Context, chatID int64, login, password string) error {
	login = NormalizeLogin(login)
	if err := ValidateLogin(login); err != nil {
		return err
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}
	hash, err := utils.HashPassword(password, a.cost)
	if err != nil {
		return err
	}
	return a.users.SetCredentials(ctx, chatID, login, hash)
}

// Login verifies the password of login and marks chatID authenticated.
// Credentials are bound to the chat that registered them.
func (a *Auth) Login(ctx context.Context, chatID int64, login, password string) error {
	u, err := a.users.GetByLogin(ctx, NormalizeLogin(login))
	if errors.Is(err, repository.ErrNotFound) {
		return ErrBadCredentials
	}
	if err != nil {
		return err
	}
	if u.ChatID != chatID || u.PasswordHash == "" || !utils.VerifyPassword(u.PasswordHash, strings.TrimSpace(password)) {
		return ErrBadCredentials
	}
	return a.users.SetAuthenticated(ctx, chatID, true)
}

// Logout clears the authentication flag.
func (a *Auth) Logout(ctx context.Context, chatID int64) error {
	return a.users.SetAuthenticated(ctx, chatID, false)
}
