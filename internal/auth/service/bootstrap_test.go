package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
)

func TestLoadSeedFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
roles:
  - name: admin
    description: Full access
    permissions: [revoke:tokens, update:roles]
  - name: support
    permissions:
      - read:users
`), 0o600))

	seed, err := LoadSeedFile(good)
	require.NoError(t, err)
	require.Len(t, seed.Roles, 2)
	require.Equal(t, []string{"revoke:tokens", "update:roles"}, seed.Roles[0].Permissions)
	require.Equal(t, "support", seed.Roles[1].Name)

	cases := map[string]string{
		"empty":     `roles: []`,
		"nameless":  "roles:\n  - description: x\n",
		"duplicate": "roles:\n  - name: a\n  - name: a\n",
		"blankperm": "roles:\n  - name: a\n    permissions: ['']\n",
		"malformed": "roles: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := LoadSeedFile(path)
			require.ErrorIs(t, err, ErrInvalidSeed)
		})
	}
}

func TestBootstrap_SeedsOnceAndCreatesAdmin(t *testing.T) {
	f := newFixture(t)

	b := &BootstrapService{
		Store:         f.db,
		Hasher:        cheapHasher(),
		AdminEmail:    "Root@Example.com",
		AdminPassword: "root-password",
	}
	require.NoError(t, b.Run(f.ctx))

	roles, err := f.db.Roles().ListRoles(f.ctx)
	require.NoError(t, err)
	require.Len(t, roles, len(DefaultSeed().Roles))

	res, err := f.session.Login(f.ctx, "root@example.com", "root-password")
	require.NoError(t, err)
	require.True(t, res.User.EmailVerified)

	ok, err := f.authz.HasRole(f.ctx, res.User.ID, domain.AdminRole)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.authz.Can(f.ctx, res.User.ID, "anything", "at-all")
	require.NoError(t, err)
	require.True(t, ok)

	// Second run is a no-op.
	require.NoError(t, b.Run(f.ctx))
	again, err := f.db.Roles().ListRoles(f.ctx)
	require.NoError(t, err)
	require.Len(t, again, len(roles))
}

func TestBootstrap_GeneratesAdminPassword(t *testing.T) {
	f := newFixture(t)

	b := &BootstrapService{
		Store:      f.db,
		Hasher:     cheapHasher(),
		AdminEmail: "gen@example.com",
	}
	require.NoError(t, b.Run(f.ctx))

	u, err := f.db.Users().GetUserByEmail(f.ctx, "gen@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, u.PasswordHash)
}

func TestBootstrap_CustomSeedSharesPermissions(t *testing.T) {
	f := newFixture(t)

	b := &BootstrapService{
		Store:  f.db,
		Hasher: cheapHasher(),
		Seed: domain.SeedData{Roles: []domain.RoleDefinition{
			{Name: "admin", Permissions: []string{"read:posts"}},
			{Name: "reader", Permissions: []string{"read:posts"}},
		}},
	}
	require.NoError(t, b.Run(f.ctx))

	perms, err := f.db.Permissions().ListPermissions(f.ctx)
	require.NoError(t, err)
	require.Len(t, perms, 1)
}
