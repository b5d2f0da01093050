package auth

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sikharm/moneyx-api/pkg/response"
)

var (
	ErrInvalidCredentials = errors.New("invalid API credentials")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

// Test credentials
var (
	TestAPIKey    = "test-api-key"
	TestAPISecret = "test-api-secret"
	TestUserID    = "user-test"
)

// Credentials represents the API authentication credentials
type Credentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// TokenResponse represents the JWT token response
type TokenResponse struct {
	Token      string    `json:"jwt_token"`
	Expiration time.Time `json:"expiration"`
}

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
	UserID      string   `json:"user_id"`
	Permissions []string `json:"permissions"`
}

type credential struct {
	secret      string
	userID      string
	permissions []string
}

// Service handles authentication and authorization operations
type Service struct {
	jwtSecret []byte
	// In a real implementation, this would be replaced with a database
	apiCredentials map[string]credential // map[APIKey]credential
}

// NewService creates a new authentication service with the given JWT secret
func NewService(jwtSecret string) *Service {
	return &Service{
		jwtSecret:      []byte(jwtSecret),
		apiCredentials: make(map[string]credential),
	}
}

// RegisterAPICredentials registers credentials for a dashboard user
func (s *Service) RegisterAPICredentials(apiKey, apiSecret, userID string) {
	s.apiCredentials[apiKey] = credential{
		secret:      apiSecret,
		userID:      userID,
		permissions: []string{"accounts"},
	}
}

// RegisterInternalCredentials registers credentials carrying the internal
// permission, used by scheduled jobs and the admin console
func (s *Service) RegisterInternalCredentials(apiKey, apiSecret, userID string) {
	s.apiCredentials[apiKey] = credential{
		secret:      apiSecret,
		userID:      userID,
		permissions: []string{"accounts", "internal"},
	}
}

// GenerateToken generates a JWT token for valid API credentials
// The token includes the owning user ID and permissions with 24-hour expiration
func (s *Service) GenerateToken(creds Credentials) (*TokenResponse, error) {
	cred, ok := s.apiCredentials[creds.APIKey]
	if !ok || cred.secret != creds.APISecret {
		return nil, ErrInvalidCredentials
	}

	// Create token expiration time (24 hours from now)
	expiration := time.Now().Add(24 * time.Hour)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		UserID:      cred.userID,
		Permissions: cred.permissions,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &TokenResponse{
		Token:      tokenString,
		Expiration: expiration,
	}, nil
}

// ValidateToken validates a JWT token and returns the claims
// Verifies token signature and expiration
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GenerateTokenHandler handles POST requests to generate JWT tokens
// Request body should contain API credentials
func (h *GinHandlers) GenerateTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.service.GenerateToken(creds)
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(c, err.Error())
			return
		}
		response.Handle(c, token, err)
	}
}

// GetUserID extracts the owning user ID from a JWT token
// Returns empty string if the claim is not found or invalid
func GetUserID(claims interface{}) string {
	if jwtClaims, ok := claims.(jwt.MapClaims); ok {
		if userID, ok := jwtClaims["user_id"].(string); ok {
			return userID
		}
	}
	return ""
}

// HasPermission reports whether the token claims carry the named permission
func HasPermission(claims interface{}, perm string) bool {
	jwtClaims, ok := claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	raw, ok := jwtClaims["permissions"].([]interface{})
	if !ok {
		return false
	}
	for _, p := range raw {
		if s, ok := p.(string); ok && s == perm {
			return true
		}
	}
	return false
}
