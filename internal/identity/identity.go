// Package identity registers accounts and verifies their credentials.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/sitelog/internal/apperr"
	"github.com/sadopc/sitelog/internal/auth"
	"github.com/sadopc/sitelog/internal/store"
)

const minPasswordLen = 6

// Hasher hashes and verifies credentials. *auth.Manager implements it.
type Hasher interface {
	HashPassword(password string) (string, error)
	ComparePassword(hash, password string) error
}

// PublicUser is a User without its credential hash.
type PublicUser struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  store.Role `json:"role"`
}

func publicUser(u *store.User) PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     store.Role
}

type Store struct {
	docs   store.Docs
	hasher Hasher
	now    func() time.Time
}

func New(docs store.Docs, hasher Hasher) *Store {
	return &Store{docs: docs, hasher: hasher, now: time.Now}
}

// Register creates an account. Concurrent registrations for one email
// produce a single document; the others fail with DUPLICATE_USER.
func (s *Store) Register(ctx context.Context, in RegisterInput) (PublicUser, error) {
	if !in.Role.Valid() {
		return PublicUser{}, apperr.New(apperr.CodeInvalidRole, fmt.Sprintf("invalid role %q", in.Role))
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" || in.Email == "" {
		return PublicUser{}, apperr.New(apperr.CodeValidation, "name and email are required")
	}
	if !strings.Contains(in.Email, "@") {
		return PublicUser{}, apperr.New(apperr.CodeValidation, "email is not valid")
	}
	if len(in.Password) < minPasswordLen {
		return PublicUser{}, apperr.New(apperr.CodeValidation, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}

	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return PublicUser{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	u := &store.User{
		ID:             uuid.NewString(),
		Name:           in.Name,
		Email:          in.Email,
		CredentialHash: hash,
		Role:           in.Role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.docs.Insert(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return PublicUser{}, apperr.New(apperr.CodeDuplicateUser, "user already exists")
		}
		return PublicUser{}, storeErr("register user", err)
	}
	return publicUser(u), nil
}

// Authenticate verifies a credential against the stored hash.
func (s *Store) Authenticate(ctx context.Context, email, password string) (PublicUser, error) {
	u, err := s.load(ctx, email)
	if err != nil {
		return PublicUser{}, err
	}
	if err := s.hasher.ComparePassword(u.CredentialHash, password); err != nil {
		if errors.Is(err, auth.ErrMismatch) {
			return PublicUser{}, apperr.New(apperr.CodeInvalidCredential, "invalid password")
		}
		return PublicUser{}, fmt.Errorf("compare password: %w", err)
	}
	return publicUser(u), nil
}

func (s *Store) ResetPassword(ctx context.Context, email, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return apperr.New(apperr.CodeValidation, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	u, err := s.load(ctx, email)
	if err != nil {
		return err
	}
	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.CredentialHash = hash
	u.UpdatedAt = s.now().UTC()
	if err := s.docs.Put(ctx, u); err != nil {
		return storeErr("reset password", err)
	}
	return nil
}

// Lookup returns the current account for email.
func (s *Store) Lookup(ctx context.Context, email string) (PublicUser, error) {
	u, err := s.load(ctx, email)
	if err != nil {
		return PublicUser{}, err
	}
	return publicUser(u), nil
}

// ByID returns the account with the given user id.
func (s *Store) ByID(ctx context.Context, id string) (PublicUser, error) {
	users, err := store.List[*store.User](ctx, s.docs, store.Query{Type: store.TypeUser}.Where("id", id))
	if err != nil {
		return PublicUser{}, storeErr("find user", err)
	}
	if len(users) == 0 {
		return PublicUser{}, apperr.New(apperr.CodeNotFound, "user not found")
	}
	return publicUser(users[0]), nil
}

// List returns accounts with role, or every account when role is empty.
func (s *Store) List(ctx context.Context, role store.Role) ([]PublicUser, error) {
	if role != "" && !role.Valid() {
		return nil, apperr.New(apperr.CodeInvalidRole, fmt.Sprintf("invalid role %q", role))
	}
	users, err := store.ListUsers(ctx, s.docs, role)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	out := make([]PublicUser, len(users))
	for i, u := range users {
		out[i] = publicUser(u)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, email string) error {
	if err := s.docs.Delete(ctx, store.UserKey(email)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.CodeNotFound, "user not found")
		}
		return storeErr("delete user", err)
	}
	return nil
}

// EnsureAccount registers in unless an account with its email already
// exists. It reports whether a new account was created.
func (s *Store) EnsureAccount(ctx context.Context, in RegisterInput) (bool, error) {
	_, err := s.Register(ctx, in)
	switch {
	case err == nil:
		return true, nil
	case apperr.HasCode(err, apperr.CodeDuplicateUser):
		return false, nil
	default:
		return false, err
	}
}

func (s *Store) load(ctx context.Context, email string) (*store.User, error) {
	u, err := store.GetUser(ctx, s.docs, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "user not found")
		}
		return nil, storeErr("load user", err)
	}
	return u, nil
}

// storeErr surfaces store outages as UNAVAILABLE and wraps everything else.
func storeErr(op string, err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return apperr.Wrap(apperr.CodeUnavailable, "store unavailable", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
