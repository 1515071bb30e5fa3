package utils // package utils provides helper functions for token creation, ids and hashing

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// ErrInvalidReportToken is returned for malformed, expired or forged report
// links.
var ErrInvalidReportToken = errors.New("invalid report token")

// ReportToken is a signed, short-lived link credential that lets a chat
// admin download an event report over HTTP.  Token contains the JWT string,
// Exp its UTC expiry.
type ReportToken struct {
	Token string
	Exp   time.Time
}

// ReportClaims are the verified contents of a report token.
type ReportClaims struct {
	EventID     int64
	RequesterID int64
}

// NewReportToken builds and signs an HS256 JWT for one event report.  The
// subject is the requesting chat id and "evt" the event id.
func NewReportToken(secret string, eventID, requesterID int64, ttl time.Duration) (ReportToken, error) {
	if secret == "" {
		return ReportToken{}, errors.New("report signing secret is empty")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(requesterID, 10),
		"evt": eventID,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return ReportToken{}, err
	}
	return ReportToken{Token: signed, Exp: exp}, nil
}

// ParseReportToken verifies signature and expiry and returns the claims.
func ParseReportToken(secret, raw string) (ReportClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Reject anything that is not HMAC.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidReportToken
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return ReportClaims{}, ErrInvalidReportToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return ReportClaims{}, ErrInvalidReportToken
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ReportClaims{}, ErrInvalidReportToken
	}
	requester, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return ReportClaims{}, ErrInvalidReportToken
	}
	evt, ok := claims["evt"].(float64) // JSON numbers decode as float64
	if !ok || evt <= 0 {
		return ReportClaims{}, ErrInvalidReportToken
	}
	return ReportClaims{EventID: int64(evt), RequesterID: requester}, nil
}
