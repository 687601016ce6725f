package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	ActionTokenHeader = "X-Action-Token"
	maxActionBody     = 1 << 20
)

var (
	ErrActionTokenMissing  = errors.New("action token is missing")
	ErrActionTokenMismatch = errors.New("action token was issued for another action or user")
)

// ActionTokens issues and checks short-lived anti-forgery tokens. A token
// is bound to one action name and one user.
type ActionTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewActionTokens(secret []byte, ttl time.Duration) *ActionTokens {
	return &ActionTokens{secret: secret, ttl: ttl, now: time.Now}
}

func (a *ActionTokens) Issue(userID int, action string) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.ttl)
	claims := jwt.MapClaims{
		jwtClaimUserID: userID,
		jwtClaimAction: action,
		"iat":          now.Unix(),
		"exp":          expires.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign action token: %w", err)
	}
	return signed, expires, nil
}

func (a *ActionTokens) Verify(tokenString string, userID int, action string) error {
	if tokenString == "" {
		return ErrActionTokenMissing
	}
	claims, err := parseHS256(a.secret, tokenString)
	if err != nil {
		return fmt.Errorf("invalid action token: %w", err)
	}
	act, _ := claims[jwtClaimAction].(string)
	owner, err := intClaim(claims, jwtClaimUserID)
	if err != nil || act != action || owner != userID {
		return ErrActionTokenMismatch
	}
	return nil
}

type actionEnvelope struct {
	Action string `json:"action"`
	Token  string `json:"token"`
}

// Require validates the token of a dispatch request before it reaches the
// handler. The action name and token come from the JSON or form body (the
// header wins for the token); the body is restored for the handler. It must
// run after Authenticate.
func (a *ActionTokens) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := GetUserIDFromContext(r.Context())
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxActionBody+1))
		if err != nil || len(body) > maxActionBody {
			http.Error(w, "request body too large or unreadable", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		env, err := readEnvelope(r.Header.Get("Content-Type"), body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if header := r.Header.Get(ActionTokenHeader); header != "" {
			env.Token = header
		}

		if err := a.Verify(env.Token, userID, env.Action); err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func readEnvelope(contentType string, body []byte) (actionEnvelope, error) {
	var env actionEnvelope
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/json" {
		if err := json.Unmarshal(body, &env); err != nil {
			return env, errors.New("body contains badly-formed JSON")
		}
		return env, nil
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return env, errors.New("body contains a malformed form")
	}
	env.Action = values.Get("action")
	env.Token = values.Get("token")
	return env, nil
}
