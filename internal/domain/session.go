package domain

import "time"

// Session is the request-scoped view of a valid session token.
type Session struct {
	User    Identity
	Expires time.Time
}
