package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

var ErrInvalidSeed = errors.New("invalid seed data")

// DefaultSeed is used when no seed file is configured. Admins pass every
// check through the role override in Can, so the admin role carries the
// admin permissions only to make them visible in listings.
func DefaultSeed() domain.SeedData {
	return domain.SeedData{
		Roles: []domain.RoleDefinition{
			{
				Name:        domain.AdminRole,
				Description: "Full access",
				Permissions: []string{"revoke:tokens", "read:roles", "update:roles", "assign:roles", "delete:users"},
			},
			{
				Name:        "user",
				Description: "Default role for registered users",
				Permissions: []string{"read:profile"},
			},
		},
	}
}

// LoadSeedFile reads a YAML seed file of the form
//
//	roles:
//	  - name: admin
//	    description: Full access
//	    permissions: [revoke:tokens, update:roles]
func LoadSeedFile(path string) (domain.SeedData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SeedData{}, err
	}

	var seed domain.SeedData
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return domain.SeedData{}, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if err := validateSeed(seed); err != nil {
		return domain.SeedData{}, err
	}
	return seed, nil
}

func validateSeed(seed domain.SeedData) error {
	if len(seed.Roles) == 0 {
		return fmt.Errorf("%w: no roles", ErrInvalidSeed)
	}
	seen := make(map[string]bool, len(seed.Roles))
	for _, r := range seed.Roles {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return fmt.Errorf("%w: role without a name", ErrInvalidSeed)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate role %q", ErrInvalidSeed, name)
		}
		seen[name] = true
		for _, p := range r.Permissions {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("%w: empty permission on role %q", ErrInvalidSeed, name)
			}
		}
	}
	return nil
}

// BootstrapService seeds roles and permissions on an empty database and
// makes sure the configured admin account exists. Running it again on a
// seeded database only tops up the admin account.
type BootstrapService struct {
	Store  store.Store
	Hasher PasswordHasher
	Seed   domain.SeedData

	AdminEmail    string
	AdminPassword string
}

func (s *BootstrapService) Run(ctx context.Context) error {
	l := slogx.FromContext(ctx)

	// 1. Seed roles only on a fresh database
	empty, err := s.Store.Roles().IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if empty {
		seed := s.Seed
		if len(seed.Roles) == 0 {
			seed = DefaultSeed()
		}
		if err := validateSeed(seed); err != nil {
			return err
		}
		if err := s.seed(ctx, seed); err != nil {
			return fmt.Errorf("bootstrap: seed roles: %w", err)
		}
		l.Info("seeded roles and permissions", slog.Int("roles", len(seed.Roles)))
	}

	// 2. Admin account
	if s.AdminEmail == "" {
		return nil
	}
	return s.ensureAdmin(ctx)
}

func (s *BootstrapService) seed(ctx context.Context, seed domain.SeedData) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		permIDs := make(map[string]int64)

		for _, def := range seed.Roles {
			role, err := tx.Roles().CreateRole(ctx, domain.Role{
				Name:        strings.TrimSpace(def.Name),
				Description: def.Description,
			})
			if err != nil {
				return fmt.Errorf("create role %q: %w", def.Name, err)
			}

			ids := make([]int64, 0, len(def.Permissions))
			for _, name := range def.Permissions {
				name = strings.TrimSpace(name)
				id, ok := permIDs[name]
				if !ok {
					p, err := tx.Permissions().CreatePermission(ctx, domain.Permission{Name: name})
					if err != nil {
						return fmt.Errorf("create permission %q: %w", name, err)
					}
					id = p.ID
					permIDs[name] = id
				}
				ids = append(ids, id)
			}

			if err := tx.Roles().SetRolePermissions(ctx, role.ID, ids); err != nil {
				return fmt.Errorf("grant permissions to %q: %w", def.Name, err)
			}
		}
		return nil
	})
}

func (s *BootstrapService) ensureAdmin(ctx context.Context) error {
	l := slogx.FromContext(ctx)
	email := normalizeEmail(s.AdminEmail)

	_, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err == nil {
		l.Debug("bootstrap admin already present", slog.String("email", email))
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("bootstrap: load admin: %w", err)
	}

	password := s.AdminPassword
	generated := password == ""
	if generated {
		if password, err = cryptox.GeneratePassword(); err != nil {
			return fmt.Errorf("bootstrap: generate admin password: %w", err)
		}
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("bootstrap: hash admin password: %w", err)
	}

	var adminID int64
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		role, err := tx.Roles().GetRoleByName(ctx, domain.AdminRole)
		if err != nil {
			return fmt.Errorf("load %q role: %w", domain.AdminRole, err)
		}

		user, err := tx.Users().CreateUser(ctx, domain.User{
			Email:         email,
			PasswordHash:  hash,
			EmailVerified: true,
		})
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		adminID = user.ID

		return tx.Roles().AssignRoleToUser(ctx, user.ID, role.ID)
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	if generated {
		// Only chance to see it.
		l.Warn("created bootstrap admin with generated password",
			slog.Int64("user_id", adminID),
			slog.String("email", email),
			slog.String("password", password),
		)
	} else {
		l.Info("created bootstrap admin", slog.Int64("user_id", adminID), slog.String("email", email))
	}
	return nil
}
