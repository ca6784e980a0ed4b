package server

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const sessionCookie = "sid"

// ensureSession resolves the caller's session id. Order of preference:
// explicit id from the request body, a valid signed cookie, then a fresh
// id. A new id is always written back as a signed cookie so follow-up
// requests stick to the same conversation.
func (s *Server) ensureSession(c echo.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if ck, err := c.Cookie(sessionCookie); err == nil {
		if sid, ok := s.verifySessionToken(ck.Value); ok {
			return sid, nil
		}
	}
	sid := uuid.NewString()
	signed, err := s.signSessionToken(sid)
	if err != nil {
		return "", err
	}
	cookie := new(http.Cookie)
	cookie.Name = sessionCookie
	cookie.Value = signed
	cookie.Path = "/"
	cookie.HttpOnly = true
	cookie.SameSite = http.SameSiteLaxMode
	cookie.MaxAge = int(s.sessionTTL / time.Second)
	c.SetCookie(cookie)
	return sid, nil
}

func (s *Server) signSessionToken(sid string) (string, error) {
	claims := jwt.MapClaims{
		"sub": sid,
		"exp": time.Now().Add(s.sessionTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Server) verifySessionToken(token string) (string, bool) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) { return s.secret, nil })
	if err != nil || !parsed.Valid {
		return "", false
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", false
	}
	return sub, true
}
