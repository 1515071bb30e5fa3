package model

import "time"

// BlacklistEntry blocks a user from buying.  OrgID is 0 for the global list.
type BlacklistEntry struct {
	OrgID     int64
	UserID    int64
	Reason    string
	BlockedBy int64
	CreatedAt time.Time
}
