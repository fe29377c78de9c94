//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/drivers/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "gatehouse_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/gatehouse_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestStore_RefreshFamilyLifecycle(t *testing.T) {
	ctx := context.Background()

	s, err := postgres.NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.ApplyMigrations(), "re-applying is a no-op")
	require.NoError(t, s.Ping(ctx))

	u, err := s.Users().CreateUser(ctx, domain.User{Email: "pg@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	_, err = s.Users().CreateUser(ctx, domain.User{Email: "PG@example.com", PasswordHash: "h"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	now := time.Now().UTC()
	err = s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshFamilies().CreateFamily(ctx, domain.RefreshFamily{
			FamilyID: "fam", UserID: u.ID, CreatedAt: now, AbsoluteExpiry: now.Add(time.Hour),
		}); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateToken(ctx, domain.RefreshTokenRecord{
			JTI: "jti-1", FamilyID: "fam", IssuedAt: now,
		})
	})
	require.NoError(t, err)

	ok, err := s.RefreshTokens().RevokeToken(ctx, "jti-1", now)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.RefreshTokens().RevokeToken(ctx, "jti-1", now)
	require.NoError(t, err)
	require.False(t, ok)

	ids, err := s.RefreshFamilies().ListFamilyIDsByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"fam"}, ids)
}

func TestStore_Permissions(t *testing.T) {
	ctx := context.Background()

	s, err := postgres.NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	u, err := s.Users().CreateUser(ctx, domain.User{Email: "perm@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	role, err := s.Roles().CreateRole(ctx, domain.Role{Name: "pg-editor"})
	require.NoError(t, err)
	p1, err := s.Permissions().CreatePermission(ctx, domain.Permission{Name: "pg:read"})
	require.NoError(t, err)
	p2, err := s.Permissions().CreatePermission(ctx, domain.Permission{Name: "pg:write"})
	require.NoError(t, err)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.Roles().SetRolePermissions(ctx, role.ID, []int64{p1.ID, p2.ID})
	}))
	require.NoError(t, s.Roles().AssignRoleToUser(ctx, u.ID, role.ID))

	perms, err := s.Permissions().ListPermissionsForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, perms, 2)
	require.Equal(t, "pg:read", perms[0].Name)
}
