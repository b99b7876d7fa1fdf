package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/sadopc/sitelog/internal/apperr"
	"github.com/sadopc/sitelog/internal/auth"
	"github.com/sadopc/sitelog/internal/identity"
	"github.com/sadopc/sitelog/internal/store"
)

func newTestDirectory(t *testing.T) *identity.Store {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return identity.New(s, auth.NewManager("test", bcrypt.MinCost))
}

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, time.Minute), mr
}

func registerUser(t *testing.T, dir *identity.Store, email string, role store.Role) identity.PublicUser {
	t.Helper()
	u, err := dir.Register(context.Background(), identity.RegisterInput{Name: "U", Email: email, Password: "password1", Role: role})
	if err != nil {
		t.Fatal(err)
	}
	return u
}

// ============================================================
// Caches
// ============================================================

func testCacheContract(t *testing.T, c Cache) {
	ctx := context.Background()
	if _, err := c.Load(ctx, "missing"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	u := CurrentUser{SessionID: "s1", ID: "u1", Email: "a@b.c", Role: store.RoleLeader}
	if err := c.Save(ctx, u); err != nil {
		t.Fatal(err)
	}
	got, err := c.Load(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "u1" || got.Role != store.RoleLeader {
		t.Fatalf("unexpected %+v", got)
	}
	if err := c.Clear(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Load(ctx, "s1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after clear, got %v", err)
	}

	c.Save(ctx, CurrentUser{SessionID: "s2", ID: "u1", Email: "a@b.c"})
	if err := c.Revoke(ctx, "s2", time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Load(ctx, "s2"); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
	// A late refresh must not bring a revoked session back.
	c.Save(ctx, CurrentUser{SessionID: "s2", ID: "u1", Email: "a@b.c"})
	if _, err := c.Load(ctx, "s2"); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked after save, got %v", err)
	}
}

func TestMemoryCache(t *testing.T) {
	testCacheContract(t, NewMemoryCache(time.Minute))
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Save(context.Background(), CurrentUser{SessionID: "s1"})

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, err := c.Load(context.Background(), "s1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestMemoryCacheRevokeExpires(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Revoke(context.Background(), "s1", time.Hour)

	c.now = func() time.Time { return now.Add(30 * time.Minute) }
	if _, err := c.Load(context.Background(), "s1"); !errors.Is(err, ErrRevoked) {
		t.Fatalf("revocation must outlive the session ttl, got %v", err)
	}
	c.now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := c.Load(context.Background(), "s1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected revocation to lapse, got %v", err)
	}
}

func TestRedisCache(t *testing.T) {
	c, _ := newTestRedis(t)
	testCacheContract(t, c)
}

func TestRedisCacheExpiryAndSliding(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()
	c.Save(ctx, CurrentUser{SessionID: "s1", Email: "a@b.c"})

	mr.FastForward(40 * time.Second)
	if _, err := c.Load(ctx, "s1"); err != nil {
		t.Fatalf("expected hit before ttl, got %v", err)
	}
	// The read above reset the ttl to a full minute.
	mr.FastForward(40 * time.Second)
	if _, err := c.Load(ctx, "s1"); err != nil {
		t.Fatalf("expected sliding ttl, got %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := c.Load(ctx, "s1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestRedisCacheUnavailable(t *testing.T) {
	c, mr := newTestRedis(t)
	mr.Close()
	_, err := c.Load(context.Background(), "s1")
	if err == nil || errors.Is(err, ErrNoSession) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

// ============================================================
// Resolver
// ============================================================

// stubDirectory lets a test change an account behind the resolver's back.
type stubDirectory map[string]identity.PublicUser

func (d stubDirectory) Lookup(ctx context.Context, email string) (identity.PublicUser, error) {
	u, ok := d[email]
	if !ok {
		return identity.PublicUser{}, apperr.New(apperr.CodeNotFound, "user not found")
	}
	return u, nil
}

func TestBeginAndCurrent(t *testing.T) {
	dir := newTestDirectory(t)
	r := NewResolver(NewMemoryCache(time.Hour), dir, time.Hour)
	u := registerUser(t, dir, "lead@b.c", store.RoleLeader)

	cu, err := r.Begin(context.Background(), u)
	if err != nil {
		t.Fatal(err)
	}
	if cu.SessionID == "" || cu.ID != u.ID {
		t.Fatalf("unexpected %+v", cu)
	}
	got, err := r.Current(context.Background(), Credential{SessionID: cu.SessionID})
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "lead@b.c" {
		t.Fatalf("got %+v", got)
	}
}

func TestCurrentReadsThroughOnMiss(t *testing.T) {
	dir := newTestDirectory(t)
	cache := NewMemoryCache(time.Hour)
	r := NewResolver(cache, dir, time.Hour)
	u := registerUser(t, dir, "lead@b.c", store.RoleLeader)

	got, err := r.Current(context.Background(), Credential{SessionID: "restored-sid", UserID: u.ID, Email: "lead@b.c"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Role != store.RoleLeader {
		t.Fatalf("got %+v", got)
	}
	if _, err := cache.Load(context.Background(), "restored-sid"); err != nil {
		t.Fatal("read-through must repopulate the cache")
	}
}

func TestVerifySeesRoleChange(t *testing.T) {
	ctx := context.Background()
	dir := stubDirectory{"x@b.c": {ID: "u1", Name: "U", Email: "x@b.c", Role: store.RoleLeader}}
	r := NewResolver(NewMemoryCache(time.Hour), dir, time.Hour)
	cu, _ := r.Begin(ctx, dir["x@b.c"])

	dir["x@b.c"] = identity.PublicUser{ID: "u1", Name: "U", Email: "x@b.c", Role: store.RoleChecker}

	stale, _ := r.Current(ctx, Credential{SessionID: cu.SessionID})
	if stale.Role != store.RoleLeader {
		t.Fatal("Current is allowed to be stale")
	}
	fresh, err := r.Verify(ctx, Credential{SessionID: cu.SessionID})
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Role != store.RoleChecker {
		t.Fatalf("Verify must return the stored role, got %s", fresh.Role)
	}
}

func TestVerifyRejectsRecreatedAccount(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()
	cache := NewMemoryCache(time.Hour)
	r := NewResolver(cache, dir, time.Hour)
	u := registerUser(t, dir, "x@b.c", store.RoleLeader)
	cu, _ := r.Begin(ctx, u)

	dir.Delete(ctx, "x@b.c")
	registerUser(t, dir, "x@b.c", store.RoleAdmin)

	if _, err := r.Verify(ctx, Credential{SessionID: cu.SessionID}); !apperr.HasCode(err, apperr.CodeUnauthorized) {
		t.Fatalf("cached session: expected UNAUTHORIZED, got %v", err)
	}
	// Same with nothing cached, as after a restart: the token still names
	// the old account.
	cache.Clear(ctx, cu.SessionID)
	_, err := r.Verify(ctx, Credential{SessionID: cu.SessionID, UserID: u.ID, Email: "x@b.c"})
	if !apperr.HasCode(err, apperr.CodeUnauthorized) {
		t.Fatalf("token credential: expected UNAUTHORIZED, got %v", err)
	}
	if _, err := r.Current(ctx, Credential{SessionID: cu.SessionID, UserID: u.ID, Email: "x@b.c"}); err == nil {
		t.Fatal("Current must not hand out the new account")
	}
}

func TestVerifyDeletedAccount(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()
	cache := NewMemoryCache(time.Hour)
	r := NewResolver(cache, dir, time.Hour)
	u := registerUser(t, dir, "gone@b.c", store.RoleLeader)
	cu, _ := r.Begin(ctx, u)

	dir.Delete(ctx, "gone@b.c")
	if _, err := r.Verify(ctx, Credential{SessionID: cu.SessionID}); !apperr.HasCode(err, apperr.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
	if _, err := cache.Load(ctx, cu.SessionID); !errors.Is(err, ErrNoSession) {
		t.Fatal("stale session must be cleared")
	}
}

func TestVerifyWithoutSession(t *testing.T) {
	r := NewResolver(NewMemoryCache(time.Hour), newTestDirectory(t), time.Hour)
	if _, err := r.Verify(context.Background(), Credential{Email: "a@b.c"}); !apperr.HasCode(err, apperr.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
	if _, err := r.Verify(context.Background(), Credential{SessionID: "sid"}); !apperr.HasCode(err, apperr.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestEnd(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()
	cache := NewMemoryCache(time.Hour)
	r := NewResolver(cache, dir, time.Hour)
	u := registerUser(t, dir, "a@b.c", store.RoleOwner)
	cu, _ := r.Begin(ctx, u)

	if err := r.End(ctx, cu.SessionID); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Load(ctx, cu.SessionID); !errors.Is(err, ErrRevoked) {
		t.Fatalf("session should be revoked, got %v", err)
	}

	// Replaying the credential, with the email it carried, stays refused.
	cred := Credential{SessionID: cu.SessionID, UserID: u.ID, Email: "a@b.c"}
	if _, err := r.Verify(ctx, cred); !apperr.HasCode(err, apperr.CodeUnauthorized) {
		t.Fatalf("Verify after End: expected UNAUTHORIZED, got %v", err)
	}
	if _, err := r.Current(ctx, cred); !apperr.HasCode(err, apperr.CodeUnauthorized) {
		t.Fatalf("Current after End: expected UNAUTHORIZED, got %v", err)
	}
}

func TestEndOnRedis(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()
	cache, mr := newTestRedis(t)
	r := NewResolver(cache, dir, time.Hour)
	u := registerUser(t, dir, "a@b.c", store.RoleOwner)
	cu, _ := r.Begin(ctx, u)

	if err := r.End(ctx, cu.SessionID); err != nil {
		t.Fatal(err)
	}
	// Past the session ttl but inside the revocation window.
	mr.FastForward(10 * time.Minute)
	cred := Credential{SessionID: cu.SessionID, UserID: u.ID, Email: "a@b.c"}
	if _, err := r.Verify(ctx, cred); !apperr.HasCode(err, apperr.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestCurrentUserIs(t *testing.T) {
	u := CurrentUser{Role: store.RoleChecker}
	if !u.Is(store.RoleOwner, store.RoleChecker) || u.Is(store.RoleAdmin) {
		t.Fatal("unexpected role match")
	}
}
