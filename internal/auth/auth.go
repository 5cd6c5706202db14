// Package auth turns bearer tokens into the actor performing a request.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/dto"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
)

const actorKey = "actor"

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Role            string `json:"role"`
	ParticipantType string `json:"participant_type,omitempty"`
	Name            string `json:"name,omitempty"`
	Email           string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	key    []byte
	issuer string
}

func New(secret, issuer string) (*Authenticator, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: jwt secret is empty")
	}
	return &Authenticator{key: []byte(secret), issuer: issuer}, nil
}

// Issue signs a token for actor valid for ttl.
func (a *Authenticator) Issue(actor model.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role:            string(actor.Role),
		ParticipantType: string(actor.ParticipantType),
		Name:            actor.Name,
		Email:           actor.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.key)
}

func (a *Authenticator) Parse(tokenStr string) (model.Actor, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return a.key, nil
	}, opts...)
	if err != nil || !token.Valid {
		return model.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return model.Actor{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	role := model.Role(claims.Role)
	switch role {
	case model.RoleParticipant, model.RoleOrganizer, model.RoleAdmin:
	default:
		return model.Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return model.Actor{
		ID:              claims.Subject,
		Role:            role,
		ParticipantType: model.ParticipantType(claims.ParticipantType),
		Name:            claims.Name,
		Email:           claims.Email,
	}, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// actor on the context.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenStr) == "" {
			dto.UnauthorizedError(c, "Missing bearer token")
			return
		}
		actor, err := a.Parse(strings.TrimSpace(tokenStr))
		if err != nil {
			dto.UnauthorizedError(c, "Invalid or expired token")
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// ActorFrom returns the actor stored by Middleware.
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}

// WithActor stores actor on c.
func WithActor(c *gin.Context, actor model.Actor) {
	c.Set(actorKey, actor)
}
