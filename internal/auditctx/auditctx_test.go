package auditctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActorRoundTrip(t *testing.T) {
	actor := Actor{AccountID: "acc-1", Username: "alice", IPAddress: "203.0.113.7", UserAgent: "curl/8.0"}

	ctx := WithActor(context.Background(), actor)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, actor, got)
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	//nolint:staticcheck // nil context is tolerated
	_, ok = FromContext(nil)
	require.False(t, ok)

	//nolint:staticcheck // nil context is tolerated
	ctx := WithActor(nil, Actor{IPAddress: "198.51.100.1"})
	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "198.51.100.1", got.IPAddress)
}
