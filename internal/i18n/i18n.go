// Package i18n negotiates the request language and translates UI strings.
package i18n

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys are the English texts.
const (
	MsgLoginRequired      = "Please log in to access the system."
	MsgInvalidCredentials = "Invalid username or password."
	MsgLoginFailed        = "Sign in is unavailable right now, please try again later."
	MsgWelcomeBack        = "Welcome back, %s."
	MsgSignedOut          = "You have been signed out."
	MsgSignIn             = "Sign in"
	MsgSignOut            = "Sign out"
	MsgIdentifier         = "Username or email"
	MsgPassword           = "Password"
	MsgHome               = "Home"
	MsgSignedInAs         = "Signed in as %s"
	MsgLastAccess         = "Last access"
)

var spanish = map[string]string{
	MsgLoginRequired:      "Favor iniciar sesión para acceder al sistema.",
	MsgInvalidCredentials: "Usuario o contraseña incorrectos.",
	MsgLoginFailed:        "No es posible iniciar sesión en este momento, intente más tarde.",
	MsgWelcomeBack:        "Bienvenido de nuevo, %s.",
	MsgSignedOut:          "Sesión cerrada correctamente.",
	MsgSignIn:             "Iniciar sesión",
	MsgSignOut:            "Cerrar sesión",
	MsgIdentifier:         "Usuario o correo electrónico",
	MsgPassword:           "Contraseña",
	MsgHome:               "Inicio",
	MsgSignedInAs:         "Sesión iniciada como %s",
	MsgLastAccess:         "Último acceso",
}

// Catalog holds the translations and the language matcher.
type Catalog struct {
	catalog   catalog.Catalog
	matcher   language.Matcher
	supported []language.Tag
}

// New builds the catalog. fallback must be one of the supported languages
// and is used when Accept-Language matches nothing.
func New(fallback string) (*Catalog, error) {
	def, err := language.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("i18n: parse default language: %w", err)
	}
	supported := []language.Tag{language.English, language.Spanish}
	defBase, _ := def.Base()
	idx := -1
	for i, tag := range supported {
		if base, _ := tag.Base(); base == defBase {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("i18n: unsupported default language %q", fallback)
	}
	// The matcher prefers its first tag when nothing matches.
	supported[0], supported[idx] = supported[idx], supported[0]

	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, text := range spanish {
		if err := b.SetString(language.Spanish, key, text); err != nil {
			return nil, fmt.Errorf("i18n: register %q: %w", key, err)
		}
	}
	return &Catalog{
		catalog:   b,
		matcher:   language.NewMatcher(supported),
		supported: supported,
	}, nil
}

// Negotiate picks the supported language for an Accept-Language header.
func (c *Catalog) Negotiate(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return c.supported[0]
	}
	_, idx, _ := c.matcher.Match(tags...)
	return c.supported[idx]
}

// Printer returns a printer for tag backed by the catalog.
func (c *Catalog) Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(c.catalog))
}

// Middleware stores the negotiated printer in the request context.
func (c *Catalog) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := c.Negotiate(r.Header.Get("Accept-Language"))
		w.Header().Add("Vary", "Accept-Language")
		ctx := WithLocale(r.Context(), tag, c.Printer(tag))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type localeKey struct{}

type locale struct {
	tag     language.Tag
	printer *message.Printer
}

// WithLocale stores the language and printer in ctx.
func WithLocale(ctx context.Context, tag language.Tag, p *message.Printer) context.Context {
	return context.WithValue(ctx, localeKey{}, locale{tag: tag, printer: p})
}

// Printer returns the request printer, or an English one without catalog.
func Printer(ctx context.Context) *message.Printer {
	if l, ok := ctx.Value(localeKey{}).(locale); ok && l.printer != nil {
		return l.printer
	}
	return message.NewPrinter(language.English)
}

// Lang returns the BCP 47 tag of the request language.
func Lang(ctx context.Context) string {
	if l, ok := ctx.Value(localeKey{}).(locale); ok {
		return l.tag.String()
	}
	return language.English.String()
}

// T translates key for the request language.
func T(ctx context.Context, key string, args ...any) string {
	return Printer(ctx).Sprintf(key, args...)
}
