package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	require.Equal(t, "refresh:jti:abc", RefreshJTIKey("abc"))
	require.Equal(t, "refresh:family:f1", RefreshFamilyKey("f1"))
	require.Equal(t, "denylist:jti:abc", DenylistKey("abc"))
	require.Equal(t, "pwreset:jti:abc", PasswordResetKey("abc"))
	require.Equal(t, "permissions:user:42", PermissionsKey(42))
}

func TestBatchBuilder(t *testing.T) {
	b := NewBatch().
		Require("family").
		Set("a", "1", 0).
		AddMember("family", "a", 0).
		Delete("x", "y")

	require.Equal(t, []string{"family"}, b.Requires)
	require.Len(t, b.Ops, 4)
	require.Equal(t, OpDelete, b.Ops[3].Kind)
	require.Equal(t, "y", b.Ops[3].Key)
	require.False(t, b.Empty())
	require.True(t, NewBatch().Empty())
}
