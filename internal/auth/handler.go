package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-starter/internal/i18n"
	"github.com/odyssey-erp/odyssey-starter/internal/shared"
	"github.com/odyssey-erp/odyssey-starter/internal/users"
	"github.com/odyssey-erp/odyssey-starter/internal/view"
)

// Authenticator is the credential check the handler depends on.
type Authenticator interface {
	Authenticate(ctx context.Context, identifier, secret string) (*users.User, error)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        Authenticator
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
	loginLimit     int
}

// NewHandler constructs a Handler instance. loginLimit caps login
// submissions per client IP and minute; zero disables the limit.
func NewHandler(logger *slog.Logger, service Authenticator, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, loginLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
		loginLimit:     loginLimit,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Group(func(r chi.Router) {
		if h.loginLimit > 0 {
			r.Use(httprate.Limit(h.loginLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		}
		r.Post("/login", h.handleLogin)
	})
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Identifier string `validate:"required,max=150"`
	Password   string `validate:"required,min=6"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if users.FromContext(r.Context()) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, loginPageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)

	form := loginForm{
		Identifier: r.PostFormValue("identifier"),
		Password:   r.PostFormValue("password"),
	}
	data := loginPageData{Form: form, Errors: make(map[string]string)}

	// Field errors are folded into the generic message so a short password
	// reads the same as a wrong one.
	if err := h.validator.Struct(form); err != nil {
		data.Errors["general"] = i18n.T(ctx, i18n.MsgInvalidCredentials)
		h.renderLogin(w, r, http.StatusBadRequest, data)
		return
	}

	user, err := h.service.Authenticate(ctx, form.Identifier, form.Password)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, shared.ErrInvalidCredentials) {
			data.Errors["general"] = i18n.T(ctx, i18n.MsgInvalidCredentials)
		} else {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				h.logger.Error("credential verification failed", slog.String("user_id", authErr.UserID), slog.Any("error", authErr.Err))
			} else {
				h.logger.Error("authenticate", slog.Any("error", err))
			}
			status = http.StatusInternalServerError
			data.Errors["general"] = i18n.T(ctx, i18n.MsgLoginFailed)
		}
		h.renderLogin(w, r, status, data)
		return
	}

	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.sessionManager.Renew(sess)
	h.csrfManager.Rotate(sess)
	sess.SetUser(user.ID)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: i18n.T(ctx, i18n.MsgWelcomeBack, user.DisplayName())})
	h.logger.Info("user signed in", slog.String("user_id", user.ID))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if id := sess.User(); id != "" {
			h.logger.Info("user signed out", slog.String("user_id", id))
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, LoginPath+"?signed_out=1", http.StatusSeeOther)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)

	viewData := view.NewTemplateData(r, i18n.T(r.Context(), i18n.MsgSignIn))
	viewData.CSRFToken = csrfToken
	viewData.Data = data
	if viewData.Flash == nil && r.URL.Query().Get("signed_out") == "1" {
		viewData.Flash = &shared.FlashMessage{Kind: "info", Message: i18n.T(r.Context(), i18n.MsgSignedOut)}
	}

	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// HandleLogoutForTest exposes the logout handler for tests.
func (h *Handler) HandleLogoutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogout(w, r)
}
