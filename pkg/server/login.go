package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
	"golang.org/x/crypto/bcrypt"
)

// ParseConnect parses a login-screen command into (command, user, password, rest).
// Handles: "connect name password", "create name password class [level]".
// Quoted names are accepted for names with spaces.
func ParseConnect(msg string) (command, user, password, rest string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "", "", "", ""
	}

	// Split into command and rest
	parts := strings.SplitN(msg, " ", 2)
	command = strings.ToLower(parts[0])
	if len(parts) < 2 {
		return command, "", "", ""
	}

	tail := strings.TrimSpace(parts[1])
	if tail == "" {
		return command, "", "", ""
	}

	if tail[0] == '"' {
		if end := strings.Index(tail[1:], "\""); end >= 0 {
			user = tail[1 : end+1]
			tail = strings.TrimSpace(tail[end+2:])
		}
	}
	if user == "" {
		parts = strings.SplitN(tail, " ", 2)
		user = parts[0]
		tail = ""
		if len(parts) > 1 {
			tail = strings.TrimSpace(parts[1])
		}
	}

	parts = strings.SplitN(tail, " ", 2)
	password = parts[0]
	if len(parts) > 1 {
		rest = strings.TrimSpace(parts[1])
	}
	return
}

// HashPassword returns the bcrypt hash stored on a character.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// CheckPassword verifies a password against a character's bcrypt hash.
func CheckPassword(c *gamedb.Character, password string) bool {
	if c == nil || len(c.PassHash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(c.PassHash, []byte(password)) == nil
}

// Login errors.
var (
	ErrBadCredentials = errors.New("either that player does not exist, or has a different password")
	ErrBadName        = errors.New("that name is not allowed")
)

// ValidCharacterName accepts 2-12 letters.
func ValidCharacterName(name string) bool {
	if len(name) < 2 || len(name) > 12 {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) || r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// parseCreateArgs resolves "class [level]" for the create command.
func parseCreateArgs(rest string, defLevel int) (gamedb.Class, int, error) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, 0, fmt.Errorf("usage: create <name> <password> <class> [level]")
	}
	class, ok := gamedb.ParseClass(fields[0])
	if !ok {
		return 0, 0, fmt.Errorf("unknown class %q", fields[0])
	}
	level := defLevel
	if len(fields) > 1 {
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > gamedb.MaxLevel {
			return 0, 0, fmt.Errorf("level must be between 1 and %d", gamedb.MaxLevel)
		}
		level = n
	}
	return class, level, nil
}

// Authenticate looks a character up by name and checks its password.
func (g *Game) Authenticate(name, password string) (*gamedb.Character, error) {
	c, err := g.Store.FindByName(name)
	if err != nil {
		if errors.Is(err, gamedb.ErrNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("server: lookup %q: %w", name, err)
	}
	if !CheckPassword(c, password) {
		return nil, ErrBadCredentials
	}
	return c, nil
}

// CreateCharacter makes and persists a new character. Hunters start with
// their pet spells.
func (g *Game) CreateCharacter(name, password string, class gamedb.Class, level int) (*gamedb.Character, error) {
	if !ValidCharacterName(name) {
		return nil, ErrBadName
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("server: hash password: %w", err)
	}
	c := gamedb.NewCharacter(0, name, class, level)
	c.PassHash = hash
	if class == gamedb.ClassHunter {
		c.Spells[gamedb.SpellCallPet] = true
		c.Spells[gamedb.SpellTameBeast] = true
	}
	if err := g.Store.CreateCharacter(c); err != nil {
		return nil, err
	}
	return c, nil
}

// WelcomeText is the default welcome screen shown to new connections.
const WelcomeText = `
 ____                 _                       _
| __ )  ___  __ _ ___| |_ _ __ ___   __ _ ___| |_ ___ _ __
|  _ \ / _ \/ _' / __| __| '_ ' _ \ / _' / __| __/ _ \ '__|
| |_) |  __/ (_| \__ \ |_| | | | | | (_| \__ \ ||  __/ |
|____/ \___|\__,_|___/\__|_| |_| |_|\__,_|___/\__\___|_|

"connect <name> <password>" to connect to your existing character.
"create <name> <password> <class> [level]" to create a new character.
"WHO" to see who is connected.
"QUIT" to disconnect.

`
