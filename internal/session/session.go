// Package session keeps a non-authoritative cache of who is signed in.
// The identity store stays the source of truth: privileged actions go
// through Resolver.Verify, which re-reads the account.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/sitelog/internal/apperr"
	"github.com/sadopc/sitelog/internal/identity"
	"github.com/sadopc/sitelog/internal/store"
)

var (
	// ErrNoSession is returned by caches on a miss or after expiry.
	ErrNoSession = errors.New("no session")
	// ErrRevoked is returned by caches for a session that was ended.
	ErrRevoked = errors.New("session revoked")
)

// DefaultRevokeTTL is how long an ended session id stays refused when the
// resolver is not told the credential lifetime.
const DefaultRevokeTTL = 24 * time.Hour

// Credential is what a client presents: the session id and the account it
// was issued to. UserID and Email may be empty when the cache holds them.
type Credential struct {
	SessionID string
	UserID    string
	Email     string
}

// CurrentUser is the cached view of a signed-in account.
type CurrentUser struct {
	SessionID string     `json:"sessionId"`
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      store.Role `json:"role"`
	CachedAt  time.Time  `json:"cachedAt"`
}

// Is reports whether the user holds any of roles.
func (u CurrentUser) Is(roles ...store.Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

type Cache interface {
	Load(ctx context.Context, sid string) (CurrentUser, error)
	Save(ctx context.Context, u CurrentUser) error
	Clear(ctx context.Context, sid string) error
	// Revoke drops sid and makes Load return ErrRevoked for it until ttl
	// has passed.
	Revoke(ctx context.Context, sid string, ttl time.Duration) error
}

// Directory looks accounts up in the identity store.
type Directory interface {
	Lookup(ctx context.Context, email string) (identity.PublicUser, error)
}

type Resolver struct {
	cache     Cache
	dir       Directory
	revokeTTL time.Duration
	now       func() time.Time
}

// NewResolver returns a resolver over cache and dir. revokeTTL should cover
// the longest credential lifetime (token expiry, cookie max age) so an ended
// session cannot be replayed; zero means DefaultRevokeTTL.
func NewResolver(cache Cache, dir Directory, revokeTTL time.Duration) *Resolver {
	if revokeTTL <= 0 {
		revokeTTL = DefaultRevokeTTL
	}
	return &Resolver{cache: cache, dir: dir, revokeTTL: revokeTTL, now: time.Now}
}

// Begin opens a session for an authenticated user.
func (r *Resolver) Begin(ctx context.Context, u identity.PublicUser) (CurrentUser, error) {
	cu := r.fromPublic(uuid.NewString(), u)
	if err := r.cache.Save(ctx, cu); err != nil {
		return CurrentUser{}, apperr.Wrap(apperr.CodeUnavailable, "session cache unavailable", err)
	}
	return cu, nil
}

// Current returns the cached user, reading through to the identity store
// on a miss. The result may be stale; do not authorize writes with it.
func (r *Resolver) Current(ctx context.Context, c Credential) (CurrentUser, error) {
	cu, err := r.cache.Load(ctx, c.SessionID)
	if errors.Is(err, ErrRevoked) {
		return CurrentUser{}, apperr.New(apperr.CodeUnauthorized, "session ended")
	}
	if err == nil && (c.UserID == "" || c.UserID == cu.ID) {
		return cu, nil
	}
	// Misses, mismatches and cache failures fall back to the identity store.
	return r.Verify(ctx, c)
}

// Verify re-reads the account behind the credential from the identity store
// and refreshes the cache. The account must still be the one the session was
// issued to: a deleted and re-registered email does not inherit it.
func (r *Resolver) Verify(ctx context.Context, c Credential) (CurrentUser, error) {
	if c.SessionID == "" {
		return CurrentUser{}, apperr.New(apperr.CodeUnauthorized, "not signed in")
	}
	cached, err := r.cache.Load(ctx, c.SessionID)
	switch {
	case errors.Is(err, ErrRevoked):
		return CurrentUser{}, apperr.New(apperr.CodeUnauthorized, "session ended")
	case err == nil:
		if c.UserID != "" && c.UserID != cached.ID {
			return CurrentUser{}, apperr.New(apperr.CodeUnauthorized, "session belongs to another account")
		}
		c.UserID = cached.ID
		c.Email = cached.Email
	}
	if c.Email == "" {
		return CurrentUser{}, apperr.New(apperr.CodeUnauthorized, "session expired")
	}

	u, err := r.dir.Lookup(ctx, c.Email)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			r.cache.Clear(ctx, c.SessionID)
			return CurrentUser{}, apperr.New(apperr.CodeUnauthorized, "account no longer exists")
		}
		return CurrentUser{}, err
	}
	if c.UserID != "" && u.ID != c.UserID {
		r.cache.Clear(ctx, c.SessionID)
		return CurrentUser{}, apperr.New(apperr.CodeUnauthorized, "account no longer exists")
	}
	cu := r.fromPublic(c.SessionID, u)
	// The cache is only a hint; failing to refresh it is not an error.
	_ = r.cache.Save(ctx, cu)
	return cu, nil
}

// End closes a session. The id stays refused afterwards, so a copied cookie
// or token cannot bring it back.
func (r *Resolver) End(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	if err := r.cache.Revoke(ctx, sid, r.revokeTTL); err != nil {
		return apperr.Wrap(apperr.CodeUnavailable, "session cache unavailable", err)
	}
	return nil
}

func (r *Resolver) fromPublic(sid string, u identity.PublicUser) CurrentUser {
	return CurrentUser{
		SessionID: sid,
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CachedAt:  r.now().UTC(),
	}
}
