// Package middleware holds the HTTP middleware of the REST API.
package middleware

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"coredetect/pkg/auth"
	pkgerrors "coredetect/pkg/errors"

	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"go.uber.org/zap"
)

// Authenticator resolves the caller of each request.
// Requests that reached Lambda through an API Gateway JWT authorizer are trusted
// as-is; everything else must carry a bearer token the validator accepts.
type Authenticator struct {
	validator   *auth.JWTValidator
	ipLimiter   *auth.KeyedLimiter
	userLimiter *auth.KeyedLimiter
	errors      *pkgerrors.ErrorHandler
	logger      *zap.Logger
}

// NewAuthenticator creates an authenticator. A nil validator admits every request
// as the anonymous development user.
func NewAuthenticator(validator *auth.JWTValidator, ipLimiter, userLimiter *auth.KeyedLimiter, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		validator:   validator,
		ipLimiter:   ipLimiter,
		userLimiter: userLimiter,
		errors:      errHandler,
		logger:      logger,
	}
}

// Middleware authenticates and rate limits the request
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)
		if a.ipLimiter != nil && !a.ipLimiter.Allow("ip:"+clientIP) {
			a.errors.Handle(w, r, pkgerrors.NewRateLimitError("api"))
			return
		}

		user, err := a.authenticate(r)
		if err != nil {
			a.logger.Warn("Authentication failed",
				zap.Error(err),
				zap.String("ip", clientIP),
				zap.String("path", r.URL.Path),
			)
			a.errors.Handle(w, r, pkgerrors.NewUnauthorizedError(unauthorizedMessage(err)))
			return
		}

		if a.userLimiter != nil && !a.userLimiter.Allow("user:"+user.UserID) {
			a.errors.Handle(w, r, pkgerrors.NewRateLimitError("api"))
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetUserInContext(r.Context(), user)))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (*auth.UserContext, error) {
	if user, ok := gatewayUser(r); ok {
		return user, nil
	}
	if a.validator == nil {
		return &auth.UserContext{UserID: "anonymous", Roles: []string{"analyst"}}, nil
	}

	claims, err := a.validator.ValidateToken(extractToken(r))
	if err != nil {
		return nil, err
	}
	return &auth.UserContext{UserID: claims.UserID, Email: claims.Email, Roles: claims.Roles}, nil
}

// gatewayUser reads the claims an API Gateway JWT authorizer attached to the event
func gatewayUser(r *http.Request) (*auth.UserContext, bool) {
	reqCtx, ok := core.GetAPIGatewayV2ContextFromContext(r.Context())
	if !ok || reqCtx.Authorizer == nil || reqCtx.Authorizer.JWT == nil {
		return nil, false
	}
	claims := reqCtx.Authorizer.JWT.Claims
	if claims["sub"] == "" {
		return nil, false
	}
	user := &auth.UserContext{UserID: claims["sub"], Email: claims["email"], Roles: []string{"analyst"}}
	if roles := claims["roles"]; roles != "" {
		user.Roles = strings.Split(strings.Trim(roles, "[]"), " ")
	}
	return user, true
}

func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "Missing authentication token"
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token has expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "Invalid token signature"
	default:
		return "Invalid token"
	}
}

// extractToken reads the bearer token from the Authorization header
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return header
}

// getClientIP extracts the client IP address
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RequireRole rejects callers holding none of roles
func RequireRole(errHandler *pkgerrors.ErrorHandler, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.GetUserFromContext(r.Context())
			if err != nil {
				errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("Unauthorized"))
				return
			}
			if !user.HasRole(roles...) {
				errHandler.Handle(w, r, pkgerrors.NewForbiddenError("Insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
