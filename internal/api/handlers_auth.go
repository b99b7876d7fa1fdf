package api

import (
	"net/http"

	"github.com/sadopc/sitelog/internal/identity"
	"github.com/sadopc/sitelog/internal/store"
)

type signupRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Name     string     `json:"name"`
	Role     store.Role `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User  identity.PublicUser `json:"user"`
	Token string              `json:"token"`
}

type resetRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	u, err := a.svc.Register(r.Context(), identity.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	u, err := a.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	cu, err := a.sessions.Begin(r.Context(), u)
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}
	token, err := a.auth.GenerateToken(u.ID, u.Email, cu.SessionID, a.tokenTTL)
	if err != nil {
		a.writeAppError(w, r, err)
		return
	}

	sess, _ := a.cookies.Get(r, cookieName)
	sess.Values[cookieSID] = cu.SessionID
	sess.Values[cookieUID] = u.ID
	sess.Values[cookieEmail] = u.Email
	if err := sess.Save(r, w); err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{User: u, Token: token})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	if err := a.svc.ResetPassword(r.Context(), req.Email, req.NewPassword); err != nil {
		a.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleLogout revokes the session and drops the cookie. A bearer token
// issued with the same session is refused from then on.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cred, err := a.credentials(r); err == nil {
		if err := a.sessions.End(r.Context(), cred.SessionID); err != nil {
			a.log.WarnContext(r.Context(), "logout: clear session", "error", err)
		}
	}
	sess, _ := a.cookies.Get(r, cookieName)
	sess.Options.MaxAge = -1
	_ = sess.Save(r, w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"user": identity.PublicUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}})
}
