package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestBaseModelBeforeCreateAssignsUUID(t *testing.T) {
	var account Account
	require.NoError(t, account.BeforeCreate(nil))
	_, err := uuid.Parse(account.ID)
	require.NoError(t, err)

	account.ID = "fixed-id"
	require.NoError(t, account.BeforeCreate(nil))
	require.Equal(t, "fixed-id", account.ID)
}

func TestMessageBeforeCreateAssignsUUID(t *testing.T) {
	msg := Message{Content: "hello there friend"}
	require.NoError(t, msg.BeforeCreate(nil))
	require.NotEmpty(t, msg.ID)

	existing := msg.ID
	require.NoError(t, msg.BeforeCreate(nil))
	require.Equal(t, existing, msg.ID)
}
