package server

import (
	"crypto/rand"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "beastmaster-realm"

// Claims identify the character a web token was issued to.
type Claims struct {
	Character uint64 `json:"chr"`
	Name      string `json:"name"`
	Class     string `json:"class"`
	jwt.RegisteredClaims
}

// AuthService issues and checks HS256 tokens for realm characters.
type AuthService struct {
	game   *Game
	key    []byte
	ttl    time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

// NewAuthService creates the token service. Without a secret a random key
// is used, so tokens die with the process.
func NewAuthService(game *Game, secret string, ttlSeconds int) *AuthService {
	key := []byte(secret)
	if secret == "" {
		key = make([]byte, 32)
		rand.Read(key)
		log.Printf("web: no jwt_secret configured, using a per-process key")
	}
	ttl := 24 * time.Hour
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return &AuthService{
		game: game,
		key:  key,
		ttl:  ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
		),
		now: time.Now,
	}
}

func (a *AuthService) issue(c *gamedb.Character) (string, error) {
	now := a.now()
	claims := Claims{
		Character: c.GUID,
		Name:      c.Name,
		Class:     c.Class.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(c.GUID, 10),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("web: sign token: %w", err)
	}
	return signed, nil
}

// Login checks a character's password and returns a token for it.
func (a *AuthService) Login(name, password string) (string, error) {
	c, err := a.game.Authenticate(name, password)
	if err != nil {
		return "", err
	}
	return a.issue(c)
}

// ValidateToken returns the claims of a token this service signed.
func (a *AuthService) ValidateToken(token string) (*Claims, error) {
	claims := &Claims{}
	if _, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.key, nil
	}); err != nil {
		return nil, fmt.Errorf("web: token: %w", err)
	}
	if claims.Character == 0 {
		return nil, fmt.Errorf("web: token: no character")
	}
	return claims, nil
}

// RefreshToken trades a valid token for a fresh one. The character is read
// again, so a deleted character cannot refresh.
func (a *AuthService) RefreshToken(token string) (string, error) {
	claims, err := a.ValidateToken(token)
	if err != nil {
		return "", err
	}
	c, err := a.game.Store.GetCharacter(claims.Character)
	if err != nil {
		return "", fmt.Errorf("web: refresh %d: %w", claims.Character, err)
	}
	return a.issue(c)
}
