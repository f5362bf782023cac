package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/generic"
	"github.com/warp/ledger-engine/identity"
)

func TestCheckPostingDate(t *testing.T) {
	today := generic.MustParseDate("2025-06-10")
	yesterday := today.AddDays(-1)

	tests := []struct {
		name    string
		user    identity.User
		date    generic.Date
		wantErr error
	}{
		{"clerk today", identity.User{ID: "u1"}, today, nil},
		{"clerk future", identity.User{ID: "u1"}, today.AddDays(3), nil},
		{"clerk yesterday", identity.User{ID: "u1"}, yesterday, generic.ErrBackdatedPosting},
		{"admin yesterday", identity.User{ID: "a1", IsAdmin: true}, yesterday, nil},
		{"missing date", identity.User{ID: "u1"}, generic.Date{}, generic.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := identity.CheckPostingDate(tt.user, tt.date, today)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheckPostingDate_ReportsEarliestDay(t *testing.T) {
	today := generic.MustParseDate("2025-06-10")

	err := identity.CheckPostingDate(identity.User{ID: "clerk"}, today.AddDays(-5), today)

	var be *generic.BackdateError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "clerk", be.UserID)
	assert.True(t, be.Earliest.Equal(today))
}

func TestUserContextRoundTrip(t *testing.T) {
	ctx := identity.WithUser(context.Background(), identity.User{ID: "u7", IsAdmin: true})

	u, ok := identity.FromContext(ctx)

	require.True(t, ok)
	assert.Equal(t, "u7", u.ID)
	assert.True(t, u.IsAdmin)

	_, ok = identity.FromContext(context.Background())
	assert.False(t, ok)
}

func TestTokenService_IssueAndValidate(t *testing.T) {
	svc := identity.NewTokenService(identity.DefaultTokenConfig("test-secret"))

	token, exp, err := svc.Issue(identity.User{ID: "u1", IsAdmin: true})
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	u, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, identity.User{ID: "u1", IsAdmin: true}, u)
}

func TestTokenService_RejectsForeignSecret(t *testing.T) {
	issuer := identity.NewTokenService(identity.DefaultTokenConfig("secret-a"))
	verifier := identity.NewTokenService(identity.DefaultTokenConfig("secret-b"))

	token, _, err := issuer.Issue(identity.User{ID: "u1"})
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestTokenService_RejectsExpired(t *testing.T) {
	cfg := identity.DefaultTokenConfig("s")
	cfg.TTL = -time.Minute
	svc := identity.NewTokenService(cfg)

	token, _, err := svc.Issue(identity.User{ID: "u1"})
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}
