package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentityValidate(t *testing.T) {
	require.NoError(t, testIdentity().Validate())

	missingID := testIdentity()
	missingID.AccountID = ""
	require.ErrorIs(t, missingID.Validate(), errIdentityAccount)

	missingName := testIdentity()
	missingName.Username = ""
	require.ErrorIs(t, missingName.Validate(), errIdentityUsername)

	unverified := testIdentity()
	unverified.IsVerified = false
	require.ErrorIs(t, unverified.Validate(), errIdentityVerified)

	notAccepting := testIdentity()
	notAccepting.IsAcceptingMessages = false
	require.NoError(t, notAccepting.Validate())
}
