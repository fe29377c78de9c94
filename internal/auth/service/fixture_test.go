package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/kv"
	"github.com/aussiebroadwan/gatehouse/internal/auth/kv/drivers/memory"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
)

const testIssuer = "gatehouse-test"

var (
	accessSecret  = []byte("access-secret-access-secret-0001")
	refreshSecret = []byte("refresh-secret-refresh-secret-02")
	resetSecret   = []byte("reset-secret-reset-secret-reset3")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMail struct {
	To   string
	Link string
}

type recordingMailer struct {
	mu       sync.Mutex
	resets   []sentMail
	welcomes []sentMail
	err      error
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, sentMail{To: to, Link: link})
	return m.err
}

func (m *recordingMailer) SendWelcomeEmail(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomes = append(m.welcomes, sentMail{To: to, Link: link})
	return m.err
}

func (m *recordingMailer) lastReset(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.resets)
	return m.resets[len(m.resets)-1]
}

// countingStore counts calls to the permission join so cache hits can be
// told apart from durable reads.
type countingStore struct {
	store.Store
	permissionJoins *atomic.Int64
}

func (c countingStore) Permissions() store.Permissions {
	return countingPermissions{Permissions: c.Store.Permissions(), calls: c.permissionJoins}
}

type countingPermissions struct {
	store.Permissions
	calls *atomic.Int64
}

func (c countingPermissions) ListPermissionsForUser(ctx context.Context, userID int64) ([]domain.Permission, error) {
	c.calls.Add(1)
	return c.Permissions.ListPermissionsForUser(ctx, userID)
}

// stallingStore hangs the durable reads on the hot paths until the caller's
// context gives up, like a database that stopped answering.
type stallingStore struct {
	store.Store
}

func (s stallingStore) Permissions() store.Permissions {
	return stallingPermissions{Permissions: s.Store.Permissions()}
}

func (s stallingStore) Roles() store.Roles {
	return stallingRoles{Roles: s.Store.Roles()}
}

func (s stallingStore) RefreshFamilies() store.RefreshFamilies {
	return stallingFamilies{RefreshFamilies: s.Store.RefreshFamilies()}
}

type stallingPermissions struct{ store.Permissions }

func (stallingPermissions) ListPermissionsForUser(ctx context.Context, _ int64) ([]domain.Permission, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type stallingRoles struct{ store.Roles }

func (stallingRoles) ListRolesForUser(ctx context.Context, _ int64) ([]domain.Role, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type stallingFamilies struct{ store.RefreshFamilies }

func (stallingFamilies) GetFamily(ctx context.Context, _ string) (domain.RefreshFamily, error) {
	<-ctx.Done()
	return domain.RefreshFamily{}, ctx.Err()
}

var errStoreDown = errors.New("fast store down")

// flakyKV fails selected operations of an otherwise working kv.Store.
type flakyKV struct {
	kv.Store
	failGet    atomic.Bool
	failSet    atomic.Bool
	failExists atomic.Bool
}

func (f *flakyKV) Get(ctx context.Context, key string) (string, error) {
	if f.failGet.Load() {
		return "", errStoreDown
	}
	return f.Store.Get(ctx, key)
}

func (f *flakyKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.failSet.Load() {
		return errStoreDown
	}
	return f.Store.Set(ctx, key, value, ttl)
}

func (f *flakyKV) Exists(ctx context.Context, key string) (bool, error) {
	if f.failExists.Load() {
		return false, errStoreDown
	}
	return f.Store.Exists(ctx, key)
}

type fixture struct {
	ctx   context.Context
	clock *fakeClock
	db    *sqlite.Store
	mem   *memory.Store
	fast  *flakyKV
	mail  *recordingMailer

	permissionJoins *atomic.Int64

	ledger  *TokenLedger
	access  *AccessTokenIssuer
	session *SessionService
	authz   *AuthorizationResolver
	roles   *RolesService
	users   *UserService
}

func cheapHasher() *cryptox.Argon2Hasher {
	return &cryptox.Argon2Hasher{
		Params: cryptox.Argon2Params{
			Memory:      64,
			Iterations:  1,
			Parallelism: 1,
			KeyLength:   16,
			SaltLength:  8,
		},
		Pepper: "test-pepper",
	}
}

func codec(t *testing.T, purpose jwtx.Purpose, secret []byte, clock *fakeClock) *jwtx.HS256 {
	t.Helper()
	c, err := jwtx.NewHS256(purpose, secret, testIssuer)
	require.NoError(t, err)
	return c.WithClock(clock.Now)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.ApplyMigrations())

	clock := newFakeClock()
	mem := memory.NewStoreWithClock(clock.Now)
	t.Cleanup(func() { _ = mem.Close() })
	fast := &flakyKV{Store: mem}

	joins := &atomic.Int64{}
	st := countingStore{Store: db, permissionJoins: joins}

	f := &fixture{
		ctx:             context.Background(),
		clock:           clock,
		db:              db,
		mem:             mem,
		fast:            fast,
		mail:            &recordingMailer{},
		permissionJoins: joins,
	}

	f.ledger = &TokenLedger{
		Store:        st,
		Fast:         fast,
		Clock:        clock,
		IdleTTL:      24 * time.Hour,
		AbsoluteTTL:  7 * 24 * time.Hour,
		StoreTimeout: time.Second,
	}
	f.access = &AccessTokenIssuer{
		Codec:  codec(t, jwtx.PurposeAccess, accessSecret, clock),
		Issuer: testIssuer,
		TTL:    15 * time.Minute,
		Clock:  clock,
	}
	f.session = &SessionService{
		Store:        st,
		Fast:         fast,
		Ledger:       f.ledger,
		Access:       f.access,
		Hasher:       cheapHasher(),
		Mailer:       f.mail,
		Clock:        clock,
		RefreshCodec: codec(t, jwtx.PurposeRefresh, refreshSecret, clock),
		ResetCodec:   codec(t, jwtx.PurposeReset, resetSecret, clock),
		Issuer:       testIssuer,
		ResetTTL:     time.Hour,
		ResetURL:     "https://app.example/reset",
		WelcomeURL:   "https://app.example/welcome",
		StoreTimeout: time.Second,
	}
	f.authz = &AuthorizationResolver{
		Store:        st,
		Fast:         fast,
		CacheTTL:     5 * time.Minute,
		StoreTimeout: time.Second,
	}
	f.roles = &RolesService{Store: st, Authz: f.authz, StoreTimeout: time.Second}
	f.users = &UserService{Store: st, Ledger: f.ledger, Authz: f.authz, StoreTimeout: time.Second}

	return f
}

func (f *fixture) register(t *testing.T, email, password string) domain.PublicUser {
	t.Helper()
	u, err := f.session.Register(f.ctx, email, password)
	require.NoError(t, err)
	return u
}

// grant creates a role holding the named permissions and assigns it.
func (f *fixture) grant(t *testing.T, userID int64, roleName string, perms ...string) domain.Role {
	t.Helper()

	role, err := f.roles.CreateRole(f.ctx, roleName, "")
	require.NoError(t, err)

	ids := make([]int64, 0, len(perms))
	for _, name := range perms {
		p, err := f.db.Permissions().GetPermissionByName(f.ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			p, err = f.roles.CreatePermission(f.ctx, name, "")
		}
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	require.NoError(t, f.roles.SetRolePermissions(f.ctx, role.ID, ids))
	require.NoError(t, f.roles.AssignRole(f.ctx, userID, role.ID))
	return role
}
