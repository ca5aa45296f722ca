package models

import "time"

// LoginAttempt is one failed authentication try. The identifier is stored
// verbatim as submitted, so attempts against unknown identifiers are
// tracked without revealing which identifiers exist.
type LoginAttempt struct {
	ID          int64     `db:"id"`
	Identifier  string    `db:"identifier"`
	IPAddress   string    `db:"ip_address"`
	AttemptTime time.Time `db:"attempt_time"`
}
