package services

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/peerpay/backend/internal/config"
	"github.com/peerpay/backend/internal/models"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

// FlexBool accepts true/false as JSON booleans or as the strings a browser
// form submits ("true", "on", "1").
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*b = false
	case bool:
		*b = FlexBool(t)
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "on", "1", "yes":
			*b = true
		case "", "false", "off", "0", "no":
			*b = false
		default:
			return fmt.Errorf("invalid boolean %q", t)
		}
	default:
		return fmt.Errorf("invalid boolean %v", t)
	}
	return nil
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	Username string   `json:"username" validate:"required,min=3,max=64" example:"alice"`         // Unique username
	Password string   `json:"password" validate:"required,min=6" example:"password123"`          // User password
	Email    string   `json:"email" validate:"required,email" example:"alice@example.com"`       // User email address
	Name     string   `json:"name" validate:"max=255" example:"Alice Doe"`                       // Display name
	Address  string   `json:"address" validate:"max=500" example:"1 Main St"`                    // Postal address
	UserType string   `json:"user_type" validate:"omitempty,oneof=user merchant" example:"user"` // user or merchant
	TestMode FlexBool `json:"test_mode" swaggertype:"boolean" example:"true"`                    // Open a test-mode account
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Username string `json:"username" validate:"required" example:"alice"`
	Password string `json:"password" validate:"required" example:"password123"`
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token    string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	TestMode bool   `json:"test_mode" example:"true"`                                // Mode of the user's account
}

// TokenClaims is what a verified token carries.
type TokenClaims struct {
	UserID    int64
	ExpiresAt time.Time
}

const blacklistPrefix = "blacklist:"

// AuthService registers users, issues tokens and loads profiles. Account
// creation goes through the ledger so a user never exists without one.
type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	ledger    *LedgerService
	validator *ValidationHelper
	cfg       *config.LedgerConfig
	now       func() time.Time
}

func NewAuthService(db *sql.DB, redisClient *redis.Client, ledger *LedgerService, cfg *config.LedgerConfig) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		ledger:    ledger,
		validator: NewValidationHelper(),
		cfg:       cfg,
		now:       time.Now,
	}
}

// Register creates the user and their account in one transaction.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*models.Profile, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.UserType == "" {
		req.UserType = models.UserTypeUser
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		return nil, ErrInvalidRequest.WithMessage("Validation failed").Wrap(err)
	}

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	profile := &models.Profile{
		User: models.User{
			Username: req.Username,
			Email:    req.Email,
			Name:     req.Name,
			Address:  req.Address,
			UserType: req.UserType,
		},
		Currency: s.cfg.Currency,
		TestMode: bool(req.TestMode),
	}

	err = s.ledger.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO users (username, password_hash, email, name, address, user_type)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at`,
			req.Username, hashedPassword, req.Email, req.Name, req.Address, req.UserType,
		).Scan(&profile.ID, &profile.CreatedAt)
		if err != nil {
			return err
		}

		account, err := s.ledger.CreateAccount(ctx, tx, profile.ID, s.cfg.Currency, models.ModeFromTestFlag(bool(req.TestMode)))
		if err != nil {
			return err
		}
		profile.AccountID = account.ID
		profile.Balance = account.Balance
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}

	log.Printf("[AUTH] User created successfully - ID: %d, Username: %s, Mode: %s",
		profile.ID, profile.Username, models.ModeFromTestFlag(profile.TestMode))
	return profile, nil
}

// Login checks the password and returns a signed token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := s.validator.ValidateStruct(&req); err != nil {
		return nil, ErrInvalidRequest.WithMessage("Validation failed").Wrap(err)
	}

	var (
		userID         int64
		hashedPassword string
		mode           models.AccountMode
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.password_hash, a.mode
		FROM users u
		JOIN accounts a ON a.owner_id = u.id
		WHERE u.username = $1`,
		strings.TrimSpace(req.Username)).Scan(&userID, &hashedPassword, &mode)
	if errors.Is(err, sql.ErrNoRows) {
		log.Printf("[AUTH] User not found: %s", req.Username)
		return nil, ErrUnauthorized.WithMessage("Invalid credentials")
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	if !verifyPassword(req.Password, hashedPassword) {
		log.Printf("[AUTH] Invalid password for user: %s", req.Username)
		return nil, ErrUnauthorized.WithMessage("Invalid credentials")
	}

	token, _, err := GenerateToken(userID)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	log.Printf("[AUTH] Login successful for user %d", userID)
	return &AuthResponse{Token: token, TestMode: mode == models.AccountModeTest}, nil
}

// Logout blacklists the token until it would have expired anyway. Unknown
// or already invalid tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" || s.redis == nil {
		return nil
	}
	claims, err := ParseToken(token)
	if err != nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, blacklistPrefix+token, "1", ttl).Err(); err != nil {
		log.Printf("[AUTH] Failed to blacklist token: %v", err)
		return ErrUnavailable.Wrap(err)
	}
	log.Printf("[AUTH] Logout for user %d", claims.UserID)
	return nil
}

// IsBlacklisted reports whether the token was logged out.
func (s *AuthService) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	if s.redis == nil {
		return false, nil
	}
	n, err := s.redis.Exists(ctx, blacklistPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Profile returns the user with their account balance and mode.
func (s *AuthService) Profile(ctx context.Context, userID int64) (*models.Profile, error) {
	var (
		p    models.Profile
		mode models.AccountMode
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.email, u.name, u.address, u.user_type, u.created_at,
			a.id, a.balance, a.currency, a.mode
		FROM users u
		JOIN accounts a ON a.owner_id = u.id
		WHERE u.id = $1`, userID).Scan(
		&p.ID, &p.Username, &p.Email, &p.Name, &p.Address, &p.UserType, &p.CreatedAt,
		&p.AccountID, &p.Balance, &p.Currency, &mode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound.WithMessage("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	p.TestMode = mode == models.AccountModeTest
	return &p, nil
}

// GenerateToken signs an HS256 token for the user.
func GenerateToken(userID int64) (string, time.Time, error) {
	hours := viper.GetInt("jwt.expiry_hours")
	if hours <= 0 {
		hours = 24
	}
	expiresAt := time.Now().Add(time.Duration(hours) * time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": strconv.FormatInt(userID, 10),
		"exp":     expiresAt.Unix(),
	})

	signed, err := token.SignedString(jwtSecret())
	return signed, expiresAt, err
}

// ParseToken verifies signature and expiry and extracts the user id.
func ParseToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return jwtSecret(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	var userID int64
	switch v := claims["user_id"].(type) {
	case string:
		userID, err = strconv.ParseInt(v, 10, 64)
	case float64:
		userID = int64(v)
	default:
		err = errors.New("missing user_id claim")
	}
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("invalid user_id claim: %v", claims["user_id"])
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("missing exp claim")
	}
	return &TokenClaims{UserID: userID, ExpiresAt: exp.Time}, nil
}

func jwtSecret() []byte {
	return []byte(viper.GetString("jwt.secret_key"))
}

type argon2Params struct {
	time, memory, keyLength, saltLength uint32
	threads                             uint8
}

func loadArgon2Params() argon2Params {
	p := argon2Params{
		time:       uint32(viper.GetInt("argon2.time")),
		memory:     uint32(viper.GetInt("argon2.memory")),
		threads:    uint8(viper.GetInt("argon2.threads")),
		keyLength:  uint32(viper.GetInt("argon2.key_length")),
		saltLength: uint32(viper.GetInt("argon2.salt_length")),
	}
	if p.time == 0 {
		p.time = 1
	}
	if p.memory == 0 {
		p.memory = 64 * 1024
	}
	if p.threads == 0 {
		p.threads = 4
	}
	if p.keyLength == 0 {
		p.keyLength = 32
	}
	if p.saltLength == 0 {
		p.saltLength = 16
	}
	return p
}

func hashPassword(password string) (string, error) {
	p := loadArgon2Params()
	salt := make([]byte, p.saltLength)
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLength)
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	p := loadArgon2Params()
	computedHash := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computedHash) == 1
}
