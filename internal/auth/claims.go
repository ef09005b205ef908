package auth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// userIDClaims are checked in order; services disagree on the claim name.
var userIDClaims = []string{"id", "userId", "user_id", "sub"}

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// ReadClaims decodes the payload segment of a three-part credential WITHOUT
// verifying its signature. The result is a display hint only and must never
// be used to authorize anything; the service's 401 is the sole authority.
func ReadClaims(credential string) (userID, email string, ok bool) {
	parts := strings.Split(credential, ".")
	if len(parts) != 3 {
		return "", "", false
	}

	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return "", "", false
	}

	var claims jwt.MapClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", "", false
	}

	for _, name := range userIDClaims {
		if userID = claimID(claims[name]); userID != "" {
			break
		}
	}
	if userID == "" {
		return "", "", false
	}
	if v, isString := claims["email"].(string); isString {
		email = v
	}
	return userID, email, true
}

// claimID accepts string and numeric ids. Numbers are rendered without an
// exponent, so 42 becomes "42".
func claimID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		if id == 0 {
			return ""
		}
		if id == float64(int64(id)) {
			return fmt.Sprint(int64(id))
		}
		return fmt.Sprint(id)
	}
	return ""
}
