package identity

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	userIDClaims       = []string{"sub", "userId", "user_id"}
	organizationClaims = []string{"organizationId", "workspaceId", "org_id"}
	nameClaims         = []string{"name", "nickName", "preferred_username"}
)

type tokenClaims jwt.MapClaims

func parseUnverified(token string) (tokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return tokenClaims{}, err
	}
	return tokenClaims(claims), nil
}

// str returns the first non-empty string claim among keys.
func (c tokenClaims) str(keys ...string) string {
	for _, key := range keys {
		if v, ok := c[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func (c tokenClaims) userID() (uuid.UUID, error) {
	raw := c.str(userIDClaims...)
	if raw == "" {
		return uuid.Nil, jwt.ErrTokenInvalidClaims
	}
	return uuid.Parse(raw)
}

func (c tokenClaims) organizationID() (uuid.UUID, bool) {
	raw := c.str(organizationClaims...)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (c tokenClaims) displayName() string {
	return c.str(nameClaims...)
}

func (c tokenClaims) roles() []string {
	switch v := c["roles"].(type) {
	case []interface{}:
		roles := make([]string, 0, len(v))
		for _, r := range v {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	case string:
		return []string{v}
	}
	if role := c.str("role"); role != "" {
		return []string{role}
	}
	return nil
}
