package usecases

import (
	"crypto/rand"
	"fmt"
	"time"

	"botrelay/internal/entities"
	"botrelay/internal/infrastructure"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	AdminSessionTTL = 24 * time.Hour
	adminRole       = "admin"
)

// AuthUsecase checks the admin password and issues admin session tokens
type AuthUsecase struct {
	passwordHash []byte
	jwtSecret    []byte
}

// NewAuthUsecase prefers a precomputed bcrypt hash over a plain password.
// With neither configured admin login is disabled.
func NewAuthUsecase(cfg infrastructure.AdminConfig) (*AuthUsecase, error) {
	uc := &AuthUsecase{jwtSecret: []byte(cfg.SessionSecret)}

	switch {
	case cfg.PasswordHash != "":
		uc.passwordHash = []byte(cfg.PasswordHash)
	case cfg.Password != "":
		hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
		uc.passwordHash = hashed
	}

	if len(uc.jwtSecret) == 0 {
		// Sessions then only last for this process
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		uc.jwtSecret = secret
	}
	return uc, nil
}

// Enabled reports whether an admin password is configured
func (uc *AuthUsecase) Enabled() bool {
	return len(uc.passwordHash) > 0
}

// Login returns a signed session token for the right password
func (uc *AuthUsecase) Login(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is required: %w", entities.ErrInvalidInput)
	}
	if !uc.Enabled() {
		return "", fmt.Errorf("admin login disabled: %w", entities.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword(uc.passwordHash, []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials: %w", entities.ErrUnauthorized)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": adminRole,
		"iat":  now.Unix(),
		"exp":  now.Add(AdminSessionTTL).Unix(),
	})

	tokenString, err := token.SignedString(uc.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}
	return tokenString, nil
}

// VerifySession reports whether tokenString is a live admin session
func (uc *AuthUsecase) VerifySession(tokenString string) bool {
	if tokenString == "" {
		return false
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return uc.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	role, _ := claims["role"].(string)
	return role == adminRole
}
