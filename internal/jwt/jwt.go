package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

// Agent tokens carry a trailing marker so tokens minted for other
// audiences are rejected before signature checks.
const agentMarker = "1"

type Claims struct {
	UserID      string
	Email       string
	WorkspaceID string
	Role        string
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *Manager) CreateToken(c Claims) (string, error) {
	if len(m.secret) == 0 {
		return "", fmt.Errorf("jwt: signing secret is empty")
	}

	claims := jwt.MapClaims{
		"id":          c.UserID,
		"email":       c.Email,
		"workspaceId": c.WorkspaceID,
		"role":        c.Role,
		"exp":         m.now().Add(m.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", err
	}
	return signed + agentMarker, nil
}

func (m *Manager) ParseToken(tokenString string) (Claims, error) {
	if len(tokenString) == 0 {
		return Claims{}, fmt.Errorf("token string is empty")
	}
	if tokenString[len(tokenString)-1:] != agentMarker {
		return Claims{}, fmt.Errorf("invalid role character in token")
	}
	tokenString = tokenString[:len(tokenString)-1]

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("unauthorized: %v", err)
	}
	if !token.Valid {
		return Claims{}, fmt.Errorf("token is not valid - unauthorized")
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("claims of unauthorized type")
	}

	c := Claims{}
	c.UserID, _ = mc["id"].(string)
	c.Email, _ = mc["email"].(string)
	c.WorkspaceID, _ = mc["workspaceId"].(string)
	c.Role, _ = mc["role"].(string)
	return c, nil
}
