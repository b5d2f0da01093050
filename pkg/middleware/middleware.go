package middleware

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sikharm/moneyx-api/pkg/response"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	visitors = make(map[string]*visitor)
	mu       sync.RWMutex

	jwtSecret []byte

	// Configure limits per endpoint type
	authLimit   = rate.Limit(10.0 / 60.0)   // 10 requests per minute
	writeLimit  = rate.Limit(100.0 / 60.0)  // 100 requests per minute
	statusLimit = rate.Limit(1000.0 / 60.0) // 1000 requests per minute
)

// Configure sets the JWT secret used by the auth middlewares.
// Must be called once at startup before any routes are served.
func Configure(secret string) {
	jwtSecret = []byte(secret)
}

// Cleanup old visitors periodically
func init() {
	go cleanupVisitors()
}

func getLimiter(path, clientIP string) *rate.Limiter {
	mu.Lock()
	defer mu.Unlock()

	key := clientIP + ":" + path
	v, exists := visitors[key]

	if !exists {
		var limit rate.Limit
		switch {
		case strings.HasPrefix(path, "/api/v1/auth"):
			limit = authLimit
		case strings.HasPrefix(path, "/api/v1/accounts"):
			limit = writeLimit
		case strings.HasPrefix(path, "/api/v1/internal"):
			limit = statusLimit
		default:
			limit = rate.Inf // No limit for other paths
		}

		v = &visitor{
			limiter:  rate.NewLimiter(limit, 1), // burst of 1
			lastSeen: time.Now(),
		}
		visitors[key] = v
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func cleanupVisitors() {
	for {
		time.Sleep(time.Minute)

		mu.Lock()
		for ip, v := range visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(visitors, ip)
			}
		}
		mu.Unlock()
	}
}

func RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			userID = c.ClientIP()
		}

		limiter := getLimiter(c.FullPath(), userID)
		if !limiter.Allow() {
			response.BadRequest(c, "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}

		c.Next()
	}
}

func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := validateAndExtractClaims(c)
		if err != nil {
			return
		}

		// Ensure required claims exist
		requiredClaims := []string{"user_id", "exp"}
		for _, claim := range requiredClaims {
			if _, exists := claims[claim]; !exists {
				response.Unauthorized(c, fmt.Sprintf("Missing required claim: %s", claim))
				c.Abort()
				return
			}
		}

		// Set the full claims object and explicit user_id in the context
		c.Set("claims", claims)
		if userID, ok := claims["user_id"].(string); ok {
			c.Set("userID", userID)
		}

		c.Next()
	}
}

// InternalAuth protects endpoints meant for scheduled jobs and ops tooling.
// Requires a token carrying the internal permission.
func InternalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := validateAndExtractClaims(c)
		if err != nil {
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok {
			response.Unauthorized(c, "Invalid user ID in token")
			c.Abort()
			return
		}

		if !hasPermission(claims, "internal") {
			response.Forbidden(c, "Internal access required")
			c.Abort()
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}

func hasPermission(claims jwt.MapClaims, perm string) bool {
	raw, ok := claims["permissions"].([]interface{})
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

func validateAndExtractClaims(c *gin.Context) (jwt.MapClaims, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		response.Unauthorized(c, "Authorization header required")
		c.Abort()
		return nil, fmt.Errorf("authorization header required")
	}

	bearerToken := strings.Split(authHeader, " ")
	if len(bearerToken) != 2 || strings.ToLower(bearerToken[0]) != "bearer" {
		response.Unauthorized(c, "Invalid authorization header format")
		c.Abort()
		return nil, fmt.Errorf("invalid authorization header format")
	}

	tokenString := bearerToken[1]
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})

	if err != nil {
		response.Unauthorized(c, "Invalid token")
		c.Abort()
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		response.Unauthorized(c, "Invalid token claims")
		c.Abort()
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}
