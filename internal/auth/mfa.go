package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
)

const (
	mfaTokenExpiry = 5 * time.Minute
	mfaTokenType   = "mfa_challenge"
	totpIssuer     = "CoreTrack"
)

var ErrInvalidChallenge = errors.New("invalid or expired MFA challenge")

type MFAClaims struct {
	UserID    int64  `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Challenger issues the short-lived token that stands between a correct
// password and a session for accounts with two-factor authentication.
// Each token is single use.
type Challenger struct {
	secret []byte
	now    func() time.Time

	mu       sync.Mutex
	consumed map[string]time.Time
}

func NewChallenger(secret string) *Challenger {
	return &Challenger{
		secret:   []byte(secret),
		now:      time.Now,
		consumed: make(map[string]time.Time),
	}
}

// Issue returns a signed challenge token for the user.
func (c *Challenger) Issue(userID int64) (string, error) {
	now := c.now()
	claims := MFAClaims{
		UserID:    userID,
		TokenType: mfaTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprint(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(mfaTokenExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Peek validates the token without consuming it.
func (c *Challenger) Peek(tokenString string) (*MFAClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &MFAClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		return nil, ErrInvalidChallenge
	}

	claims, ok := token.Claims.(*MFAClaims)
	if !ok || !token.Valid || claims.TokenType != mfaTokenType || claims.ID == "" {
		return nil, ErrInvalidChallenge
	}

	c.mu.Lock()
	_, used := c.consumed[claims.ID]
	c.mu.Unlock()
	if used {
		return nil, ErrInvalidChallenge
	}
	return claims, nil
}

// Consume marks the token's ID as used. It returns false if it already was.
func (c *Challenger) Consume(claims *MFAClaims) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, used := c.consumed[claims.ID]; used {
		return false
	}
	c.consumed[claims.ID] = c.now()
	return true
}

// Cleanup forgets consumed IDs whose tokens have expired anyway.
func (c *Challenger) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for id, at := range c.consumed {
		if now.Sub(at) > mfaTokenExpiry {
			delete(c.consumed, id)
		}
	}
}

// TOTPEnrollment is what a user needs to add the account to an authenticator app.
type TOTPEnrollment struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
}

// GenerateTOTP creates a new TOTP secret for the account.
func GenerateTOTP(accountName string) (*TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp: %w", err)
	}
	return &TOTPEnrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

// ValidateTOTP checks a 6-digit code against the secret.
func ValidateTOTP(code, secret string) bool {
	if code == "" || secret == "" {
		return false
	}
	return totp.Validate(code, secret)
}
