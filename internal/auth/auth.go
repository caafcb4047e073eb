package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"socialmart/internal/content"
	"socialmart/internal/models"

	"github.com/c-pro/geche"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultTokenExpiry = 12 * time.Hour
	cleanupInterval    = time.Minute
)

// Claims are the JWT claims issued for a user. Subject is the user id.
type Claims struct {
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller behind a token.
type Identity struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	ExpiresAt   time.Time
}

type Config struct {
	Secret      string        `json:"secret"`
	secretBytes []byte        `json:"-"`
	Issuer      string        `json:"issuer"`
	TokenExpiry time.Duration `json:"tokenExpiry"`
}

type userStore interface {
	UpsertUser(user models.User) (models.User, error)
}

type AuthService struct {
	Config
	users    userStore
	verified geche.Geche[string, Identity]
	revoked  geche.Geche[string, struct{}]
	now      func() time.Time
}

func (c *Config) Validate() error {
	if c.Secret == "" {
		return errors.New("secret is required")
	}

	var err error
	c.secretBytes, err = base64.StdEncoding.DecodeString(c.Secret)
	if err != nil {
		return fmt.Errorf("auth secret is not a valid base64: %w", err)
	}

	if c.TokenExpiry == 0 {
		c.TokenExpiry = DefaultTokenExpiry
	}

	return nil
}

func NewAuthService(ctx context.Context, config Config, users userStore) (*AuthService, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &AuthService{
		Config:   config,
		users:    users,
		verified: geche.NewMapTTLCache[string, Identity](ctx, config.TokenExpiry, cleanupInterval),
		revoked:  geche.NewMapTTLCache[string, struct{}](ctx, config.TokenExpiry, cleanupInterval),
		now:      time.Now,
	}, nil
}

// GenerateToken signs a HS256 token for userID.
func GenerateToken(secret []byte, issuer, userID, displayName string, issuedAt time.Time, expiry time.Duration) (string, error) {
	claims := Claims{
		Name: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// IssueToken creates (or refreshes) the user record and returns a signed
// token with its expiry.
func (as *AuthService) IssueToken(userID, displayName string) (string, time.Time, error) {
	if err := content.ValidateID(userID); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
	}
	displayName = content.NormalizeName(displayName)
	if displayName == "" {
		displayName = userID
	}

	if _, err := as.users.UpsertUser(models.User{ID: userID, DisplayName: displayName}); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to upsert user: %w", err)
	}

	now := as.now()
	token, err := GenerateToken(as.secretBytes, as.Issuer, userID, displayName, now, as.TokenExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, now.Add(as.TokenExpiry), nil
}

// VerifyToken validates token and returns the identity behind it. The first
// successful verification of a token upserts the user record.
func (as *AuthService) VerifyToken(token string) (Identity, error) {
	if token == "" {
		return Identity{}, models.ErrUnauthorized
	}
	if _, err := as.revoked.Get(token); err == nil {
		return Identity{}, models.ErrUnauthorized
	}

	if id, err := as.verified.Get(token); err == nil {
		if as.now().Before(id.ExpiresAt) {
			return id, nil
		}
		_ = as.verified.Del(token)
		return Identity{}, fmt.Errorf("%w: token expired", models.ErrUnauthorized)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(as.now),
	}
	if as.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(as.Issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return as.secretBytes, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	if err := content.ValidateID(claims.Subject); err != nil {
		return Identity{}, fmt.Errorf("%w: bad subject: %v", models.ErrUnauthorized, err)
	}

	user, err := as.users.UpsertUser(models.User{
		ID:          claims.Subject,
		DisplayName: content.NormalizeName(claims.Name),
		AvatarURL:   claims.Picture,
	})
	if err != nil {
		slog.Error("failed to upsert user", "user_id", claims.Subject, "error", err)
		return Identity{}, fmt.Errorf("failed to upsert user: %w", err)
	}

	id := Identity{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		ExpiresAt:   claims.ExpiresAt.Time,
	}
	as.verified.Set(token, id)
	return id, nil
}

// Logoff revokes token for the lifetime of this process.
func (as *AuthService) Logoff(token string) error {
	if token == "" {
		return nil
	}
	as.revoked.Set(token, struct{}{})
	return as.verified.Del(token)
}
