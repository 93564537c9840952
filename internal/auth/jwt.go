package auth

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const ctxUserID ctxKey = "uid"

// JWTCfg holds JWT authentication configuration
type JWTCfg struct {
	HS256Secret string // HMAC secret for HS256 tokens
	DevMode     bool   // Allow X-Debug-Sub header (DANGEROUS: only for local dev)
}

// Middleware creates HTTP middleware for JWT authentication.
// Supports two modes:
// 1. Production: Bearer token with JWT validation; the sub claim is the user UUID
// 2. Development: X-Debug-Sub header (ONLY when DevMode=true)
func Middleware(cfg JWTCfg) func(http.Handler) http.Handler {
	if cfg.DevMode {
		log.Warn().Msg("SECURITY WARNING: DevMode enabled - X-Debug-Sub header will bypass JWT authentication")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := ""
			if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
				tok = h[7:]
			}

			sub := ""

			// Development mode: accept X-Debug-Sub ONLY if DevMode is enabled and no token present
			if cfg.DevMode && tok == "" {
				sub = r.Header.Get("X-Debug-Sub")
				if sub != "" {
					log.Debug().Str("sub", sub).Msg("using X-Debug-Sub header (dev mode)")
				}
			}

			if tok != "" {
				claims := jwt.MapClaims{}
				t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, jwt.ErrSignatureInvalid
					}
					return []byte(cfg.HS256Secret), nil
				})

				if err != nil || !t.Valid {
					log.Warn().Err(err).Msg("jwt validation failed")
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}

				if s, ok := claims["sub"].(string); ok {
					sub = s
				}
			}

			userID, err := uuid.Parse(sub)
			if err != nil || userID == uuid.Nil {
				log.Warn().Msg("missing or malformed subject")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ctxUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated user ID from request context.
// Returns uuid.Nil if not authenticated (should never happen after middleware).
func UserID(ctx context.Context) uuid.UUID {
	if v := ctx.Value(ctxUserID); v != nil {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// WithUserID returns a context carrying the given user ID. Test helper.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxUserID, id)
}
