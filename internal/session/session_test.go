package session

import (
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railrelay/util"
)

func TestNew_IdentityFromRemoteAddr(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := New(server, nil, nil, util.NewLogger(0))

	_, err := uuid.Parse(s.ID)
	require.NoError(t, err)
	assert.Equal(t, server.RemoteAddr().String(), s.Identity)
	assert.Equal(t, AwaitingIdentity, s.State)
	assert.NotNil(t, s.Logger)
}

func TestNew_UniqueIDs(t *testing.T) {
	a := New(nil, nil, nil, nil)
	b := New(nil, nil, nil, nil)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Empty(t, a.Identity)
	assert.Nil(t, a.Logger)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting-identity", AwaitingIdentity.String())
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "unknown", State(9).String())
}
