package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sadopc/sitelog/internal/apperr"
	"github.com/sadopc/sitelog/internal/auth"
	"github.com/sadopc/sitelog/internal/session"
	"github.com/sadopc/sitelog/internal/store"
)

type ctxKey struct{}

func withUser(ctx context.Context, u session.CurrentUser) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func userFrom(ctx context.Context) session.CurrentUser {
	u, _ := ctx.Value(ctxKey{}).(session.CurrentUser)
	return u
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.log.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// credentials extracts the session credential from a bearer token or,
// failing that, the session cookie.
func (a *API) credentials(r *http.Request) (session.Credential, error) {
	if token, ok := auth.TokenFromRequest(r); ok {
		claims, err := a.auth.ParseToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return session.Credential{}, apperr.New(apperr.CodeUnauthorized, "token expired")
			}
			return session.Credential{}, apperr.New(apperr.CodeUnauthorized, "invalid token")
		}
		return session.Credential{SessionID: claims.SessionID, UserID: claims.Subject, Email: claims.Email}, nil
	}
	sess, _ := a.cookies.Get(r, cookieName)
	var c session.Credential
	c.SessionID, _ = sess.Values[cookieSID].(string)
	c.UserID, _ = sess.Values[cookieUID].(string)
	c.Email, _ = sess.Values[cookieEmail].(string)
	if c.SessionID == "" {
		return session.Credential{}, apperr.New(apperr.CodeUnauthorized, "not signed in")
	}
	return c, nil
}

// authenticate resolves the caller. Reads accept the cached session; every
// other method re-validates the account against the identity store.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred, err := a.credentials(r)
		if err != nil {
			a.writeAppError(w, r, err)
			return
		}
		var u session.CurrentUser
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			u, err = a.sessions.Current(r.Context(), cred)
		default:
			u, err = a.sessions.Verify(r.Context(), cred)
		}
		if err != nil {
			a.writeAppError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
	})
}

func requireRole(roles ...store.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !userFrom(r.Context()).Is(roles...) {
				writeError(w, http.StatusForbidden, apperr.CodeForbidden, "your role cannot perform this action", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
