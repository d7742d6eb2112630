package dashboard

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// operatorClaims is the Dashboard Gateway's bearer token, grounded on the
// teacher's ServiceClaims (infrastructure/middleware/serviceauth.go) but
// simplified to a single shared HMAC secret: this gateway authenticates one
// operator console, not service-to-service calls.
type operatorClaims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// requireBearer guards the command endpoints (spec.md §4.14 POST routes)
// with an HS256 bearer token signed by secret. Read-mostly GET routes are
// mounted outside this middleware.
func requireBearer(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(raw, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims := &operatorClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !parsed.Valid {
				writeError(w, http.StatusUnauthorized, "invalid bearer token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IssueOperatorToken mints a bearer token for operator, valid until the
// caller-chosen expiry. Used by cmd/rewardsrund at startup to print an
// operator token to the log, and by tests.
func IssueOperatorToken(secret []byte, operator string, claims jwt.RegisteredClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &operatorClaims{
		Operator:          operator,
		RegisteredClaims: claims,
	})
	return token.SignedString(secret)
}
