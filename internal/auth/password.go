package auth

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// ErrWeakPassword is returned when a password does not meet every strength requirement.
var ErrWeakPassword = errors.New("password does not meet strength requirements")

const (
	minPasswordLength = 8
	specialChars      = `!@#$%^&*(),.?":{}|<>`
)

// Strength is the outcome of scoring a password against the four requirements.
type Strength struct {
	Score   int      `json:"score"`
	Label   string   `json:"label"`
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing"`
}

var strengthLabels = [...]string{"Very Weak", "Weak", "Fair", "Good", "Strong"}

// CheckStrength scores a password: one point each for length >= 8, an
// uppercase letter, a lowercase letter and a special character.
func CheckStrength(password string) Strength {
	var hasUpper, hasLower, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case strings.ContainsRune(specialChars, r):
			hasSpecial = true
		}
	}

	s := Strength{Missing: []string{}}
	check := func(ok bool, msg string) {
		if ok {
			s.Score++
		} else {
			s.Missing = append(s.Missing, msg)
		}
	}
	check(len([]rune(password)) >= minPasswordLength, "at least 8 characters")
	check(hasUpper, "an uppercase letter")
	check(hasLower, "a lowercase letter")
	check(hasSpecial, "a special character")

	s.Label = strengthLabels[s.Score]
	s.Valid = s.Score == len(strengthLabels)-1
	return s
}

// HashPassword validates strength and returns a bcrypt hash.
func HashPassword(password string) (string, error) {
	if !CheckStrength(password).Valid {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash. An empty
// hash (an account that never set a password) never matches.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
