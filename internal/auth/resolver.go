package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-starter/internal/i18n"
	"github.com/odyssey-erp/odyssey-starter/internal/shared"
	"github.com/odyssey-erp/odyssey-starter/internal/users"
)

// LoginPath is where anonymous requests are sent.
const LoginPath = "/auth/login"

// Resolver loads the session's user from the store on every request so that
// role changes and deactivation apply immediately.
type Resolver struct {
	store  users.Store
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(store users.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Middleware attaches the current user to the request context. Identities
// that no longer resolve to an active user leave the request anonymous.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, err := res.store.FindByID(r.Context(), sess.User())
		switch {
		case err == nil && user.Active:
			r = r.WithContext(users.ContextWithUser(r.Context(), user))
		case err == nil, errors.Is(err, shared.ErrNotFound):
			res.logger.Info("session identity no longer valid", slog.String("user_id", sess.User()))
			sess.ClearUser()
		default:
			res.logger.Error("resolve session identity", slog.Any("error", err))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireLogin redirects anonymous requests to the login page.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if users.FromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "warning", Message: i18n.T(r.Context(), i18n.MsgLoginRequired)})
		}
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
	})
}
