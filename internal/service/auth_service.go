package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"bombona_tracker/internal/cache"
	"bombona_tracker/internal/logger"
	"bombona_tracker/internal/models"
	"bombona_tracker/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL = 12 * time.Hour
	revokedPrefix   = "auth:revoked:"
)

// AuthService handles user auth logic
type AuthService struct {
	authRepo   repository.Authorization
	kv         cache.KV
	signingKey []byte
	tokenTTL   time.Duration
	log        *logger.Logger
	now        func() time.Time
}

func NewAuthService(repo repository.Authorization, kv cache.KV, signingKey string, ttl time.Duration, log *logger.Logger) *AuthService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &AuthService{
		authRepo:   repo,
		kv:         kv,
		signingKey: []byte(signingKey),
		tokenTTL:   ttl,
		log:        log.Named("auth"),
		now:        time.Now,
	}
}

// SignUp hashes password and creates a new user
func (s *AuthService) SignUp(email, fullName, password string) (int, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return 0, fmt.Errorf("%w: email %q", ErrValidation, email)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	id, err := s.authRepo.Create(email, strings.TrimSpace(fullName), models.RoleUser, hash)
	if errors.Is(err, repository.ErrDuplicate) {
		return 0, fmt.Errorf("%w: email already registered", ErrConflict)
	}
	return id, err
}

// Claims defines JWT claims
type Claims struct {
	jwt.RegisteredClaims
	UserID int `json:"user_id"`
}

// GenerateToken validates credentials and returns JWT
func (s *AuthService) GenerateToken(_ context.Context, email, password string) (string, error) {
	u, err := s.authRepo.GetByEmail(email)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrUserNotFound
	}

	if err := verifyPassword(u.PasswordHash, password); err != nil {
		return "", ErrInvalidPassword
	}

	return s.issueToken(u.ID)
}

// ParseToken parses JWT and returns userID
func (s *AuthService) ParseToken(ctx context.Context, accessToken string) (int, error) {
	claims, err := s.parse(accessToken)
	if err != nil {
		return 0, err
	}

	if claims.ID != "" && s.kv != nil {
		_, err := s.kv.Get(ctx, revokedPrefix+claims.ID)
		switch {
		case err == nil:
			return 0, ErrTokenRevoked
		case !errors.Is(err, cache.ErrMiss):
			s.log.Warnw("revocation_lookup_failed", "err", err)
		}
	}

	return claims.UserID, nil
}

func (s *AuthService) CurrentUser(userID int) (models.Identity, error) {
	u, err := s.authRepo.GetByID(userID)
	if err != nil {
		return models.Identity{}, err
	}
	if u == nil {
		return models.Identity{}, ErrUserNotFound
	}
	return u.Identity(), nil
}

func (s *AuthService) Logout(ctx context.Context, accessToken string) {
	claims, err := s.parse(accessToken)
	if err != nil || claims.ID == "" || s.kv == nil {
		return
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	if ttl <= 0 {
		return
	}
	if err := s.kv.Set(ctx, revokedPrefix+claims.ID, "1", ttl); err != nil {
		s.log.Warnw("token_revoke_failed", "user_id", claims.UserID, "err", err)
		return
	}
	s.log.Infow("token_revoked", "user_id", claims.UserID)
}

func (s *AuthService) parse(accessToken string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Ensure HMAC signing is used
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// helper: hash password safely
func hashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// helper: verify password against hash
func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// helper: issue a signed JWT for a user
func (s *AuthService) issueToken(userID int) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
	})
	return token.SignedString(s.signingKey)
}
