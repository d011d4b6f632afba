package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/resonatehq/syncevents/internal/app/subsystems/api"
)

// SubjectKey holds the authenticated subject in the gin context.
const SubjectKey = "auth.subject"

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Error is an authentication failure along with the challenge sent back to
// the caller.
type Error struct {
	Challenge string
	Err       error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Authenticator interface {
	// Authenticate returns the subject of the caller of r.
	Authenticate(r *http.Request) (string, *Error)
}

// New returns the authenticator selected by cfg, nil when authentication is
// disabled.
func New(cfg *Config) (Authenticator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" && len(cfg.Basic) > 0 {
		provider = "basic"
	}

	switch provider {
	case "":
		return nil, nil
	case "basic":
		return newBasic(cfg.Basic)
	case "jwt":
		return newJWT(&cfg.JWT)
	default:
		return nil, fmt.Errorf("unsupported auth provider %q", cfg.Provider)
	}
}

// Middleware rejects requests a does not authenticate with a 401 in the
// error format of the api. A nil authenticator lets every request through.
func Middleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a == nil {
			c.Next()
			return
		}

		subject, err := a.Authenticate(c.Request)
		if err != nil {
			slog.Debug("request rejected", "path", c.Request.URL.Path, "err", err)

			c.Header("WWW-Authenticate", err.Challenge)
			e := api.AuthenticationError(err)
			c.AbortWithStatusJSON(e.Code, gin.H{"error": e})
			return
		}

		c.Set(SubjectKey, subject)
		c.Next()
	}
}

// Handler wraps next with the same checks as Middleware.
func Handler(a Authenticator, next http.Handler) http.Handler {
	if a == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := a.Authenticate(r); err != nil {
			w.Header().Set("WWW-Authenticate", err.Challenge)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Basic

type basic struct {
	credentials map[string]string
}

func newBasic(credentials map[string]string) (Authenticator, error) {
	b := &basic{credentials: map[string]string{}}
	for user, pass := range credentials {
		if user = strings.TrimSpace(user); user != "" {
			b.credentials[user] = pass
		}
	}

	if len(b.credentials) == 0 {
		return nil, errors.New("basic auth requires at least one username=password pair")
	}
	return b, nil
}

func (b *basic) Authenticate(r *http.Request) (string, *Error) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return "", b.fail(ErrMissingCredentials)
	}

	if expected, ok := b.credentials[user]; !ok || expected != pass {
		return "", b.fail(ErrInvalidCredentials)
	}

	return user, nil
}

func (b *basic) fail(err error) *Error {
	return &Error{Challenge: `Basic realm="syncevents"`, Err: err}
}

// JWT

type bearer struct {
	key    any
	parser *jwt.Parser
}

func newJWT(cfg *JWTConfig) (Authenticator, error) {
	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}

	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown jwt algorithm %q", algorithm)
	}

	material, err := keyMaterial(cfg)
	if err != nil {
		return nil, err
	}

	key, err := verificationKey(method.Alg(), material)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{method.Alg()})}
	if cfg.ClockSkew > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.ClockSkew))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if len(cfg.Audience) > 0 {
		opts = append(opts, jwt.WithAudience(cfg.Audience...))
	}

	return &bearer{key: key, parser: jwt.NewParser(opts...)}, nil
}

func (b *bearer) Authenticate(r *http.Request) (string, *Error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", b.fail(ErrMissingCredentials)
	}

	claims := jwt.MapClaims{}
	if _, err := b.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return b.key, nil }); err != nil {
		return "", b.fail(fmt.Errorf("%w: %w", ErrInvalidCredentials, err))
	}

	subject, err := claims.GetSubject()
	if err != nil {
		return "", b.fail(fmt.Errorf("%w: %w", ErrInvalidCredentials, err))
	}

	return subject, nil
}

func (b *bearer) fail(err error) *Error {
	return &Error{Challenge: `Bearer realm="syncevents"`, Err: err}
}

func keyMaterial(cfg *JWTConfig) ([]byte, error) {
	if cfg.KeyFile != "" {
		data, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read jwt key file: %w", err)
		}
		return data, nil
	}
	if cfg.Key != "" {
		return []byte(cfg.Key), nil
	}
	return nil, errors.New("jwt auth requires a key or a key file")
}

func verificationKey(algorithm string, material []byte) (any, error) {
	switch algorithm {
	case "HS256", "HS384", "HS512":
		return material, nil
	case "RS256", "RS384", "RS512", "PS256", "PS384", "PS512":
		return jwt.ParseRSAPublicKeyFromPEM(material)
	case "ES256", "ES384", "ES512":
		return jwt.ParseECPublicKeyFromPEM(material)
	case "EdDSA":
		return jwt.ParseEdPublicKeyFromPEM(material)
	default:
		return nil, fmt.Errorf("unsupported jwt algorithm %q", algorithm)
	}
}
