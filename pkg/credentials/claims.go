package credentials

import (
	"fmt"
	"regexp"

	"github.com/golang-jwt/jwt/v5"
)

// tierPattern extracts the tier name from group-style claim values such as
// "tier-free:default" or "system:tier-premium:opendatahub".
var tierPattern = regexp.MustCompile(`tier-([^:]+):`)

// PeekTier decodes the token without signature verification and reports the
// subscription tier encoded in its claims. The gateway is the authority on
// the token's validity; the verifier only needs to see which tier the
// gateway believes it granted.
func PeekTier(token string) (string, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("failed to decode token claims: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims shape %T", parsed.Claims)
	}

	if tier, ok := claims["tier"].(string); ok && tier != "" {
		return tier, nil
	}

	// Fall back to scanning group-style claims for a tier marker.
	for _, value := range claims {
		switch v := value.(type) {
		case string:
			if tier := matchTier(v); tier != "" {
				return tier, nil
			}
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					if tier := matchTier(s); tier != "" {
						return tier, nil
					}
				}
			}
		}
	}
	return "", fmt.Errorf("no tier claim found in token")
}

func matchTier(s string) string {
	m := tierPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}
