/*
Package identity supplies the current user to the posting services.

PURPOSE:
  Every journal entry records who created it, and the admin flag decides
  whether a posting may be back-dated. Authentication itself happens
  elsewhere; this package only carries the result through a context and
  checks posting dates.

BACK-DATING RULE:
  Non-admin users may only post on or after today. Admins may post on any
  date. The check runs before any counter is reserved.

SEE ALSO:
  - token.go: HS256 bearer tokens carrying the same two fields
  - api/server.go: middleware placing the user on the request context
*/
package identity

import (
	"context"

	"github.com/warp/ledger-engine/generic"
)

// User is the acting operator.
type User struct {
	ID      string `json:"id"`
	IsAdmin bool   `json:"isAdmin"`
}

// System is used for scheduled jobs and seeding.
var System = User{ID: "system", IsAdmin: true}

type userKey struct{}

// WithUser stores u on ctx.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// FromContext returns the user stored on ctx.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	return u, ok
}

// CheckPostingDate rejects a non-admin posting dated before today.
func CheckPostingDate(u User, date, today generic.Date) error {
	if date.IsZero() {
		return &generic.ValidationError{Field: "date", Message: "is required"}
	}
	if u.IsAdmin {
		return nil
	}
	if date.Before(today) {
		return &generic.BackdateError{UserID: u.ID, Date: date, Earliest: today}
	}
	return nil
}
