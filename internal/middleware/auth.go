package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/emilythestrangee/main-feed/backend/internal/apperr"
	"github.com/emilythestrangee/main-feed/backend/internal/observability"
)

const (
	TokenHeader = "X-Security-Token"

	claimsKey = "mainfeed_token_claims"
)

// Client-facing rejection reasons.
const (
	ReasonMissing           = "X-Security-Token header is missing"
	ReasonExpired           = "Token has expired"
	ReasonInvalid           = "Invalid token"
	ReasonInsufficientScope = "Insufficient scope"
)

// Decision is the outcome of verifying a request's token. A zero Status
// means the request is forwarded.
type Decision struct {
	Status int
	Reason string
	Claims jwt.MapClaims

	// metric label for rejections
	label string
}

func (d Decision) Forwarded() bool {
	return d.Status == 0
}

// Verifier checks tokens signed with an HMAC key.
type Verifier struct {
	key    []byte
	parser *jwt.Parser
}

func NewVerifier(signingKey []byte) *Verifier {
	return &Verifier{
		key:    signingKey,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Verify decides whether a request carrying token may reach a handler that
// requires scope.
func (v *Verifier) Verify(token, scope string) Decision {
	if token == "" {
		return Decision{Status: http.StatusUnauthorized, Reason: ReasonMissing, label: "missing"}
	}

	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Decision{Status: http.StatusUnauthorized, Reason: ReasonExpired, label: "expired"}
		}
		return Decision{Status: http.StatusUnauthorized, Reason: ReasonInvalid, label: "invalid"}
	}

	if !slices.Contains(Scopes(claims), scope) {
		return Decision{Status: http.StatusForbidden, Reason: ReasonInsufficientScope, label: "scope"}
	}

	return Decision{Claims: claims}
}

// Scopes returns the space separated scope names of the token.
func Scopes(claims jwt.MapClaims) []string {
	raw, _ := claims["scope"].(string)
	return strings.Fields(raw)
}

// Auth rejects requests whose X-Security-Token is missing, invalid, expired
// or lacks scope. Verified claims are stored for the handler; nothing is kept
// between requests.
func Auth(verifier *Verifier, scope string, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := verifier.Verify(c.GetHeader(TokenHeader), scope)
		if !decision.Forwarded() {
			metrics.RecordAuthRejection(decision.label)
			err := &apperr.Error{Kind: apperr.AuthRejected, Status: decision.Status, Message: decision.Reason}
			Logger(c).Warn("request rejected", "error", err, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(decision.Status, gin.H{"error": decision.Reason})
			return
		}

		c.Set(claimsKey, decision.Claims)
		c.Next()
	}
}

// GetClaims returns the verified token claims of the current request, or nil.
func GetClaims(c *gin.Context) jwt.MapClaims {
	if v, exists := c.Get(claimsKey); exists {
		if claims, ok := v.(jwt.MapClaims); ok {
			return claims
		}
	}
	return nil
}
