package kv

import "strconv"

const (
	prefixRefreshJTI    = "refresh:jti:"
	prefixRefreshFamily = "refresh:family:"
	prefixDenylist      = "denylist:jti:"
	prefixPasswordReset = "pwreset:jti:"
	prefixPermissions   = "permissions:user:"
)

func RefreshJTIKey(jti string) string         { return prefixRefreshJTI + jti }
func RefreshFamilyKey(familyID string) string { return prefixRefreshFamily + familyID }
func DenylistKey(jti string) string           { return prefixDenylist + jti }
func PasswordResetKey(jti string) string      { return prefixPasswordReset + jti }

func PermissionsKey(userID int64) string {
	return prefixPermissions + strconv.FormatInt(userID, 10)
}
