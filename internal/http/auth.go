package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"finconsole/internal/api"
	"finconsole/internal/core"
	applog "finconsole/internal/log"
	"finconsole/internal/storage"
)

const sessionCookie = "finconsole_session"

type sessionKey struct{}

// sessionFrom returns the session attached by requireSession.
func sessionFrom(ctx context.Context) (storage.SessionData, bool) {
	sess, ok := ctx.Value(sessionKey{}).(storage.SessionData)
	return sess, ok
}

// tokenExpiry reads the exp claim of a JWT bearer token without verifying
// the signature; the Entity Store remains the judge of validity. ok is
// false for opaque tokens and tokens without exp.
func tokenExpiry(token string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	nd, err := claims.GetExpirationTime()
	if err != nil || nd == nil {
		return time.Time{}, false
	}
	return nd.Time, true
}

func tokenExpired(token string, now time.Time) bool {
	if token == "" {
		return true
	}
	exp, ok := tokenExpiry(token)
	return ok && !exp.After(now)
}

// requireSession loads the session named by the cookie. Requests without
// a usable session go to the login page.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		c, err := r.Cookie(sessionCookie)
		if err != nil {
			s.redirectToLogin(w, r)
			return
		}
		sess, err := s.sessions.GetSession(ctx, c.Value)
		if err != nil {
			if !errors.Is(err, storage.ErrSessionNotFound) && !errors.Is(err, storage.ErrSessionExpired) {
				applog.FromContext(ctx).ErrorContext(ctx, "Session lookup failed", applog.FieldError, err)
			}
			s.clearCookie(w)
			s.redirectToLogin(w, r)
			return
		}
		if tokenExpired(sess.Token, time.Now()) {
			s.dropSession(w, r, sess)
			s.redirectToLogin(w, r)
			return
		}

		l := applog.FromContext(ctx).With(applog.FieldUserID, sess.User.ID)
		ctx = applog.WithLogger(context.WithValue(ctx, sessionKey{}, sess), l)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// redirectToLogin sends HTMX requests an HX-Redirect and everything else
// a 303.
func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/login").Write(w)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) dropSession(w http.ResponseWriter, r *http.Request, sess storage.SessionData) {
	if err := s.sessions.DeleteSession(r.Context(), sess.ID); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed to delete session", applog.FieldError, err)
	}
	s.clearCookie(w)
}

func (s *Server) setCookie(w http.ResponseWriter, sess storage.SessionData) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

type authPage struct {
	Error      string
	Notice     string
	Email      string
	FullName   string
	Registered bool
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := authPage{}
	if r.URL.Query().Get("registered") == "1" {
		data.Notice = "Account created. Please sign in."
	}
	s.render(w, r, http.StatusOK, "login_page", data)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in := core.LoginInput{}
	if err := DecodeForm(r, &in); err != nil {
		s.authFailed(w, r, "login_page", authPage{}, errBadForm)
		return
	}
	if err := core.Validate(&in); err != nil {
		s.authFailed(w, r, "login_page", authPage{Email: in.Email}, err)
		return
	}

	res, err := s.store.Login(ctx, in)
	if err != nil {
		s.authFailed(w, r, "login_page", authPage{Email: in.Email}, err)
		return
	}

	ttl := s.opts.SessionTTL
	if exp, ok := tokenExpiry(res.Token); ok {
		if until := time.Until(exp); until < ttl {
			ttl = until
		}
	}
	if ttl <= 0 {
		s.authFailed(w, r, "login_page", authPage{Email: in.Email}, &core.ValidationError{Reason: "The server issued an expired token"})
		return
	}
	sess, err := s.sessions.CreateSession(ctx, res.Token, res.User, ttl)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to create session", applog.FieldError, err)
		s.authFailed(w, r, "login_page", authPage{Email: in.Email}, errors.New("session"))
		return
	}
	s.setCookie(w, sess)

	applog.FromContext(ctx).InfoContext(ctx, "User logged in", applog.FieldUserID, res.User.ID)
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/").Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register_page", authPage{})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in := core.RegisterInput{}
	if err := DecodeForm(r, &in); err != nil {
		s.authFailed(w, r, "register_page", authPage{}, errBadForm)
		return
	}
	page := authPage{Email: in.Email, FullName: in.FullName}
	if err := core.Validate(&in); err != nil {
		s.authFailed(w, r, "register_page", page, err)
		return
	}
	user, err := s.store.Register(ctx, in)
	if err != nil {
		s.authFailed(w, r, "register_page", page, err)
		return
	}

	applog.FromContext(ctx).InfoContext(ctx, "User registered", applog.FieldUserID, user.ID)
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/login?registered=1").Write(w)
		return
	}
	http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if err := s.sessions.DeleteSession(r.Context(), c.Value); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed to delete session", applog.FieldError, err)
		}
	}
	s.clearCookie(w)
	s.redirectToLogin(w, r)
}

// authFailed reports a login or registration failure as a toast for HTMX
// forms and by re-rendering the page otherwise.
func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, page string, data authPage, err error) {
	kind, msg := api.Describe(err)
	status := statusFor(kind)
	if api.IsUnauthorized(err) {
		status = http.StatusUnauthorized
	}
	if isHTMX(r) {
		ToastError(status, msg).Write(w)
		return
	}
	data.Error = msg
	s.render(w, r, status, page, data)
}
