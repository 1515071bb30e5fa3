// Package repository defines the SQL repositories and the sentinel errors
// they share.  These sentinel values allow higher layers such as the chat
// state machines and HTTP handlers to distinguish between failure classes
// with errors.Is and choose the right reply: validation problems reprompt,
// authorization problems reject, capacity problems send the user back to a
// selection screen and everything else is a generic persistence failure.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they have no standing for, such as removing the organization
// owner from the admin list.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an insert or update collides with existing
// state: a duplicate login, promo code, admin binding or blacklist entry.
var ErrConflict = errors.New("conflict")

// ErrSoldOut is returned by the inventory ledger when a limited tier has no
// units left.  No row is modified when it is returned.
var ErrSoldOut = errors.New("sold out")

// ErrPromoExhausted is returned when a promo code has reached its usage
// limit (or was deactivated) between validation and redemption.
var ErrPromoExhausted = errors.New("promo code exhausted")

// ErrNotRefundable is returned when a refund is requested for a ticket whose
// tier is not refundable.
var ErrNotRefundable = errors.New("ticket is not refundable")

// ErrTicketNotValid is returned when a lifecycle transition is requested
// from the wrong state, e.g. redeeming a used ticket or approving an
// already active one.  The ticket is left unchanged.
var ErrTicketNotValid = errors.New("ticket is not valid")

// ErrQuotaExceeded is returned when a user without remaining organization
// quota tries to create an organization.
var ErrQuotaExceeded = errors.New("organization quota exceeded")

// ErrNotOwner is returned by ownership transfer when the caller is not the
// recorded owner of the organization.
var ErrNotOwner = errors.New("not the organization owner")

// isDuplicate reports whether err is a unique or primary key violation on
// either supported driver.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
