// Package authgate resolves signed session tokens into the caller identity
// the incentive services authorize against. Authentication itself (issuing
// tokens) lives outside this service.
package authgate

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/goodhaul/incentive/pkg/incentive"
)

const (
	// ContextActorKey is the gin context key the middleware stores the
	// resolved incentive.Actor under.
	ContextActorKey = "incentive_actor"

	bearerPrefix = "Bearer "
)

var (
	ErrInvalidConfig = errors.New("invalid auth gate config")
	ErrInvalidToken  = errors.New("invalid session token")
)

// Claims is the signed session payload.
type Claims struct {
	UserID          string `json:"user_id"`
	Role            string `json:"role"`
	SponsorID       string `json:"sponsor_id,omitempty"`
	DriverProfileID string `json:"driver_profile_id,omitempty"`
	jwt.RegisteredClaims
}

// Config holds the validator settings.
type Config struct {
	SigningKey []byte
	Issuer     string
	CookieName string
}

// Validator verifies session tokens and produces actors.
type Validator struct {
	config Config
}

// New builds a Validator.
func New(config Config) (*Validator, error) {
	if len(config.SigningKey) == 0 {
		return nil, fmt.Errorf("%w: signing key is required", ErrInvalidConfig)
	}
	if config.Issuer == "" {
		return nil, fmt.Errorf("%w: issuer is required", ErrInvalidConfig)
	}
	return &Validator{config: config}, nil
}

// ResolveActor verifies a raw token and maps its claims to an actor.
func (validator *Validator) ResolveActor(rawToken string) (incentive.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, token.Header["alg"])
		}
		return validator.config.SigningKey, nil
	},
		jwt.WithIssuer(validator.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return incentive.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return incentive.Actor{}, ErrInvalidToken
	}
	return actorFromClaims(claims)
}

func actorFromClaims(claims *Claims) (incentive.Actor, error) {
	userID, err := incentive.NewUserID(claims.UserID)
	if err != nil {
		return incentive.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	role, err := incentive.ParseRole(claims.Role)
	if err != nil {
		return incentive.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	actor := incentive.Actor{UserID: userID, Role: role}
	switch role {
	case incentive.RoleSponsor:
		actor.SponsorID, err = incentive.NewSponsorID(claims.SponsorID)
		if err != nil {
			return incentive.Actor{}, fmt.Errorf("%w: sponsor claim: %v", ErrInvalidToken, err)
		}
	case incentive.RoleDriver:
		actor.DriverProfileID, err = incentive.NewDriverProfileID(claims.DriverProfileID)
		if err != nil {
			return incentive.Actor{}, fmt.Errorf("%w: driver claim: %v", ErrInvalidToken, err)
		}
	}
	return actor, nil
}

// GinMiddleware extracts the session token from the Authorization header or
// the configured cookie and stores the resolved actor on the context.
func (validator *Validator) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		rawToken := tokenFromRequest(ctx, validator.config.CookieName)
		if rawToken == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": "unauthorized", "message": "missing session"},
			})
			return
		}
		actor, err := validator.ResolveActor(rawToken)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": "unauthorized", "message": "invalid session"},
			})
			return
		}
		ctx.Set(ContextActorKey, actor)
		ctx.Next()
	}
}

// ActorFromContext returns the actor the middleware resolved.
func ActorFromContext(ctx *gin.Context) (incentive.Actor, bool) {
	value, ok := ctx.Get(ContextActorKey)
	if !ok {
		return incentive.Actor{}, false
	}
	actor, ok := value.(incentive.Actor)
	return actor, ok
}

func tokenFromRequest(ctx *gin.Context, cookieName string) string {
	header := ctx.GetHeader("Authorization")
	if strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	}
	if cookieName == "" {
		return ""
	}
	cookie, err := ctx.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return cookie
}
