// Package cookie writes plain and HMAC-signed cookies with shared defaults.
//
// Signed values are stored as base64url(value) "|" base64url(hmac-sha256).
// Several secrets may be configured: the first signs, all of them verify, so
// secrets can be rotated without logging everyone out.
package cookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"
)

// MaxCookieSize is the default Set-Cookie header limit.
const MaxCookieSize = 4096

// Config is the environment configuration for a Manager.
type Config struct {
	Secrets  string        `env:"COOKIE_SECRETS" envDefault:""`
	Path     string        `env:"COOKIE_PATH" envDefault:"/"`
	Domain   string        `env:"COOKIE_DOMAIN" envDefault:""`
	Secure   bool          `env:"COOKIE_SECURE" envDefault:"false"`
	HttpOnly bool          `env:"COOKIE_HTTP_ONLY" envDefault:"true"`
	SameSite http.SameSite `env:"COOKIE_SAME_SITE" envDefault:"2"`
	MaxSize  int           `env:"COOKIE_MAX_SIZE" envDefault:"4096"`
}

// Manager reads and writes cookies.
type Manager struct {
	secrets  []string
	defaults Options
	maxSize  int
}

// New returns a Manager. At least one secret of 32+ characters is required.
func New(secrets []string, opts ...Option) (*Manager, error) {
	if len(secrets) == 0 {
		return nil, ErrNoSecret
	}
	for _, s := range secrets {
		if len(s) < 32 {
			return nil, ErrSecretTooShort
		}
	}
	defaults := Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode}
	return &Manager{
		secrets:  secrets,
		defaults: defaults.with(opts),
		maxSize:  MaxCookieSize,
	}, nil
}

// NewFromConfig builds a Manager from cfg. Secrets are comma separated.
func NewFromConfig(cfg Config, opts ...Option) (*Manager, error) {
	var secrets []string
	for _, s := range strings.Split(cfg.Secrets, ",") {
		if s = strings.TrimSpace(s); s != "" {
			secrets = append(secrets, s)
		}
	}

	base := []Option{
		WithPath(cfg.Path),
		WithDomain(cfg.Domain),
		WithSecure(cfg.Secure),
		WithHTTPOnly(cfg.HttpOnly),
	}
	if cfg.SameSite != 0 {
		base = append(base, WithSameSite(cfg.SameSite))
	}

	m, err := New(secrets, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if cfg.MaxSize > 0 {
		m.maxSize = cfg.MaxSize
	}
	return m, nil
}

// Defaults returns the Manager's default options.
func (m *Manager) Defaults() Options { return m.defaults }

// Set writes a plain cookie.
func (m *Manager) Set(w http.ResponseWriter, name, value string, opts ...Option) error {
	o := m.defaults.with(opts)
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     o.Path,
		Domain:   o.Domain,
		MaxAge:   o.MaxAge,
		Secure:   o.Secure,
		HttpOnly: o.HttpOnly,
		SameSite: o.SameSite,
	}
	if o.MaxAge > 0 {
		c.Expires = time.Now().Add(time.Duration(o.MaxAge) * time.Second)
	}
	if size := len(c.String()); size > m.maxSize {
		return ErrCookieTooLarge{Name: name, Size: size, Max: m.maxSize}
	}
	http.SetCookie(w, c)
	return nil
}

// Get reads a plain cookie.
func (m *Manager) Get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if errors.Is(err, http.ErrNoCookie) {
		return "", ErrCookieNotFound
	}
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

// Delete expires a cookie using the default path and domain.
func (m *Manager) Delete(w http.ResponseWriter, name string, opts ...Option) {
	o := m.defaults.with(opts)
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Path:     o.Path,
		Domain:   o.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   o.Secure,
		HttpOnly: o.HttpOnly,
		SameSite: o.SameSite,
	})
}

// SetSigned writes value with an HMAC signature.
func (m *Manager) SetSigned(w http.ResponseWriter, name, value string, opts ...Option) error {
	return m.Set(w, name, m.sign(value), opts...)
}

// GetSigned reads and verifies a signed cookie.
func (m *Manager) GetSigned(r *http.Request, name string) (string, error) {
	raw, err := m.Get(r, name)
	if err != nil {
		return "", err
	}
	return m.verify(raw)
}

func (m *Manager) sign(value string) string {
	return base64.URLEncoding.EncodeToString([]byte(value)) + "|" + mac(m.secrets[0], []byte(value))
}

func (m *Manager) verify(signed string) (string, error) {
	encoded, sig, ok := strings.Cut(signed, "|")
	if !ok {
		return "", ErrInvalidFormat
	}
	value, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidFormat
	}
	for _, secret := range m.secrets {
		if subtle.ConstantTimeCompare([]byte(sig), []byte(mac(secret, value))) == 1 {
			return string(value), nil
		}
	}
	return "", ErrInvalidSignature
}

func mac(secret string, value []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(value)
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}
