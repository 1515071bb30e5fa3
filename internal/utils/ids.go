package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewTicketCode returns a fresh ticket code such as "T-9F2C41AB".
func NewTicketCode() string { return "T-" + shortID() }

// NewPaymentRef returns a fresh 8-character payment reference that the
// buyer quotes in the transfer comment.
func NewPaymentRef() string { return shortID() }

func shortID() string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(s[:8])
}
