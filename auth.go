package setlive

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenGrantsSubscriptions decides whether the configured token can carry
// live subscriptions. The claims are inspected without signature
// verification; the backend is the authority, this check only avoids
// opening channels that would be rejected anyway. An absent, unparseable or
// expired token puts the board in degraded mode.
func tokenGrantsSubscriptions(token string, now time.Time) bool {
	if token == "" {
		return false
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.After(now)
}
