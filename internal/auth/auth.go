/*
Package auth identifies the anonymous session behind each request. API
clients present a signed bearer token; browsers get a cookie session that is
issued on first contact.
*/
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dropcheck/internal/utility"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const (
	AccessTokenDuration = 24 * time.Hour
	CookieMaxAge        = 30 * 24 * 60 * 60
	CookieName          = "dropcheck-session"
	Issuer              = "dropcheck"

	sessionIDValue = "session_id"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type SessionClaims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

type TokenResponse struct {
	SessionID   string `json:"session_id"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Authenticator signs session tokens and manages the cookie store.
type Authenticator struct {
	secret []byte
	store  *sessions.CookieStore
	now    func() time.Time
}

// NewAuthenticator builds an Authenticator. secure marks cookies Secure and
// should be set in production.
func NewAuthenticator(secret string, secure bool) *Authenticator {
	store := sessions.NewCookieStore([]byte(secret))
	store.MaxAge(CookieMaxAge)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode

	log.Info().Bool("secure_cookies", secure).Msg("Session auth initialized")

	return &Authenticator{secret: []byte(secret), store: store, now: time.Now}
}

// IssueToken signs an access token for the session.
func (a *Authenticator) IssueToken(sessionID string) (string, error) {
	now := a.now()
	claims := &SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ParseToken verifies the signature, expiry and issuer of tokenString.
func (a *Authenticator) ParseToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.SessionID); err != nil {
		return nil, fmt.Errorf("%w: bad session id", ErrInvalidToken)
	}
	return claims, nil
}

// SessionMiddleware resolves the session id and stores it in the echo
// context under "session_id". The request logger gains the same field.
func (a *Authenticator) SessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var sessionID string

		authHeader := c.Request().Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			claims, err := a.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				utility.GetLogger(c).Warn().Err(err).Msg("Token validation error")
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
			}
			sessionID = claims.SessionID
		} else {
			id, err := a.cookieSession(c)
			if err != nil {
				utility.GetLogger(c).Error().Err(err).Msg("Failed to establish cookie session")
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not establish session"})
			}
			sessionID = id
		}

		c.Set(sessionIDValue, sessionID)
		logger := utility.GetLogger(c).With().Str("session_id", sessionID).Logger()
		c.Set("logger", &logger)
		c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context())))

		return next(c)
	}
}

// cookieSession returns the id in the session cookie, issuing a new one when
// the cookie is missing or unreadable.
func (a *Authenticator) cookieSession(c echo.Context) (string, error) {
	sess, err := a.store.Get(c.Request(), CookieName)
	if err != nil {
		// A cookie signed with an old secret decodes to a fresh session.
		utility.GetLogger(c).Debug().Err(err).Msg("Discarding unreadable session cookie")
	}
	if id, ok := sess.Values[sessionIDValue].(string); ok && id != "" {
		return id, nil
	}
	id := uuid.New().String()
	sess.Values[sessionIDValue] = id
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return "", err
	}
	return id, nil
}

// StartSession creates a new session, stores it in the cookie and returns a
// bearer token for it.
func (a *Authenticator) StartSession(c echo.Context) (TokenResponse, error) {
	id := uuid.New().String()
	token, err := a.IssueToken(id)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("failed to sign token: %w", err)
	}

	sess, _ := a.store.Get(c.Request(), CookieName)
	sess.Values[sessionIDValue] = id
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return TokenResponse{}, fmt.Errorf("failed to save session cookie: %w", err)
	}

	return TokenResponse{
		SessionID:   id,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(AccessTokenDuration.Seconds()),
	}, nil
}

// EndSession expires the session cookie. Bearer tokens simply stop mapping
// to any state once the caller clears it.
func (a *Authenticator) EndSession(c echo.Context) error {
	sess, _ := a.store.Get(c.Request(), CookieName)
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}
