package auth

import "errors"

var (
	errIdentityAccount  = errors.New("identity: account id is required")
	errIdentityUsername = errors.New("identity: username is required")
	errIdentityVerified = errors.New("identity: account is not verified")
)

// Identity is the claim set describing an authenticated account. It is produced by a
// successful sign-in and travels inside the session token.
type Identity struct {
	AccountID           string `json:"uid"`
	Username            string `json:"username"`
	IsVerified          bool   `json:"is_verified"`
	IsAcceptingMessages bool   `json:"is_accepting_messages"`
}

// Validate reports whether the identity may be trusted for identity-scoped operations.
func (i Identity) Validate() error {
	switch {
	case i.AccountID == "":
		return errIdentityAccount
	case i.Username == "":
		return errIdentityUsername
	case !i.IsVerified:
		return errIdentityVerified
	}
	return nil
}
