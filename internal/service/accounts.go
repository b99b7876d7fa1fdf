package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sadopc/sitelog/internal/identity"
	"github.com/sadopc/sitelog/internal/store"
)

func (s *Service) Register(ctx context.Context, in identity.RegisterInput) (_ identity.PublicUser, err error) {
	ctx, span := s.start(ctx, "Register", attribute.String("user.role", string(in.Role)))
	defer func() { finish(span, err) }()

	u, err := s.users.Register(ctx, in)
	if err != nil {
		return identity.PublicUser{}, err
	}
	s.log.InfoContext(ctx, "user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (_ identity.PublicUser, err error) {
	ctx, span := s.start(ctx, "Authenticate")
	defer func() { finish(span, err) }()

	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		s.log.InfoContext(ctx, "login failed", "reason", err.Error())
		return identity.PublicUser{}, err
	}
	return u, nil
}

func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) (err error) {
	ctx, span := s.start(ctx, "ResetPassword")
	defer func() { finish(span, err) }()

	if err := s.users.ResetPassword(ctx, email, newPassword); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "password reset")
	return nil
}

// Lookup returns the stored account for email.
func (s *Service) Lookup(ctx context.Context, email string) (identity.PublicUser, error) {
	return s.users.Lookup(ctx, email)
}

func (s *Service) Users(ctx context.Context, role store.Role) (_ []identity.PublicUser, err error) {
	ctx, span := s.start(ctx, "Users")
	defer func() { finish(span, err) }()
	return s.users.List(ctx, role)
}

func (s *Service) DeleteUser(ctx context.Context, email string) (err error) {
	ctx, span := s.start(ctx, "DeleteUser")
	defer func() { finish(span, err) }()

	if err := s.users.Delete(ctx, email); err != nil {
		return err
	}
	s.log.WarnContext(ctx, "user deleted")
	return nil
}
