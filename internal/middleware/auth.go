package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tidebrook/choretally/internal/auth"
	"github.com/tidebrook/choretally/internal/store"
)

// Claims is the JWT payload. Subject carries the user id; the household the
// token was minted for rides alongside.
type Claims struct {
	HouseholdID int64 `json:"household_id"`
	jwt.RegisteredClaims
}

// NewToken mints a signed bearer token for a user within a household.
func NewToken(secret []byte, userID, householdID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		HouseholdID: householdID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates a bearer token and returns the user and household ids.
func ParseToken(secret []byte, tokenString string) (userID, householdID int64, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return 0, 0, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, 0, fmt.Errorf("invalid token")
	}
	userID, err = strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid subject: %w", err)
	}
	return userID, claims.HouseholdID, nil
}

// RequireAuth validates the Authorization bearer token, confirms the user is
// still a member of the token's household, and populates AuthContext. The
// membership lookup means a removed member's outstanding tokens stop working
// immediately.
func RequireAuth(secret []byte, householdStore *store.HouseholdStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, found := strings.CutPrefix(header, "Bearer ")
			if !found || tokenString == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			userID, householdID, err := ParseToken(secret, tokenString)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			member, err := householdStore.GetMember(householdID, userID)
			if err != nil || member == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ac := auth.AuthContext{
				UserID:      userID,
				HouseholdID: householdID,
				Role:        member.Role,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the authenticated user has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
