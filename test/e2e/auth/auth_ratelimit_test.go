package auth_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/internal/auth/app"
	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
)

func TestLoginIsRateLimited(t *testing.T) {
	t.Parallel()
	client := setupAuthService(t, func(c *app.Config) {
		c.RateLimit.StrictRequests = 3
		c.RateLimit.StrictBurst = 3
	})

	var limited error
	for range 10 {
		_, err := client.Login(t.Context(), "nobody@example.com", "whatever-password")
		if authsdk.IsCode(err, authsdk.ErrorCodeRateLimitExceeded) {
			limited = err
			break
		}
		assertCode(t, err, authsdk.ErrorCodeInvalidCredentials)
	}

	require.Error(t, limited, "login should eventually be throttled")
	require.True(t, authsdk.IsRetryable(limited))

	var apiErr *authsdk.APIError
	require.ErrorAs(t, limited, &apiErr)
	require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}
