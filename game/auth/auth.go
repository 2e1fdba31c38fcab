package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
)

const (
	TokenExpiry       = 7 * 24 * time.Hour
	DefaultBcryptCost = 12
	MinUsernameLength = 4
	MinPasswordLength = 4
)

var (
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
)

// Usernames are dot or dash separated runs of letters and digits
var usernamePattern = regexp.MustCompile(`(?i)^[a-z0-9]+((\.|-)?[a-z0-9]+)*$`)

// Account is a registered player
type Account struct {
	Username  string
	PassHash  string
	CreatedAt time.Time
}

// AccountStore persists accounts. GetAccount returns nil, nil for unknown usernames.
type AccountStore interface {
	GetAccount(ctx context.Context, username string) (*Account, error)
	CreateAccount(ctx context.Context, account Account) error
}

// Identity is a signed-in player. It satisfies engine.SessionProvider.
type Identity struct {
	Name string `json:"username"`
	Key  string `json:"auth_key"`
}

// Username returns the signed-in username
func (i Identity) Username() (string, error) {
	return engine.StaticSession{Name: i.Name, Key: i.Key}.Username()
}

// Credential returns the auth key derived at sign-in
func (i Identity) Credential() (string, error) {
	return engine.StaticSession{Name: i.Name, Key: i.Key}.Credential()
}

// Authenticator signs players in and issues HS256 tokens
type Authenticator struct {
	accounts   AccountStore
	secret     []byte
	expiry     time.Duration
	bcryptCost int
	now        func() time.Time
}

// Option configures an Authenticator
type Option func(*Authenticator)

// WithExpiry sets the token lifetime
func WithExpiry(d time.Duration) Option {
	return func(a *Authenticator) { a.expiry = d }
}

// WithBcryptCost sets the password hashing cost
func WithBcryptCost(cost int) Option {
	return func(a *Authenticator) { a.bcryptCost = cost }
}

// WithClock replaces the clock used for token timestamps
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// New creates an Authenticator. An empty secret is replaced by a random one,
// which invalidates tokens across restarts.
func New(accounts AccountStore, secret []byte, opts ...Option) *Authenticator {
	if accounts == nil {
		accounts = NewMemoryAccounts()
	}
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			panic("failed to generate token secret: " + err.Error())
		}
		log.Warn("no token secret configured, generated a random one")
	}

	a := &Authenticator{
		accounts:   accounts,
		secret:     secret,
		expiry:     TokenExpiry,
		bcryptCost: DefaultBcryptCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ValidateUsername checks the username format
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrInvalidUsername, MinUsernameLength)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: letters and digits optionally separated by '.' or '-'", ErrInvalidUsername)
	}
	return nil
}

// ValidatePassword checks the password length
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrInvalidPassword, MinPasswordLength)
	}
	return nil
}

// SessionKey derives the player credential from the username and the token secret.
// It carries nothing about the password, so tokens and robots never expose one.
func (a *Authenticator) SessionKey(username string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte("session/" + strings.ToLower(username)))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignIn verifies the password of a known account, or registers the username on
// first use, and returns the identity with a signed token.
func (a *Authenticator) SignIn(ctx context.Context, username, password string) (*Identity, string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if err := ValidateUsername(username); err != nil {
		return nil, "", err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, "", err
	}

	account, err := a.accounts.GetAccount(ctx, username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load account: %w", err)
	}

	if account == nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), a.bcryptCost)
		if err != nil {
			return nil, "", fmt.Errorf("failed to hash password: %w", err)
		}
		account = &Account{Username: username, PassHash: string(hash), CreatedAt: a.now()}
		if err := a.accounts.CreateAccount(ctx, *account); err != nil {
			return nil, "", fmt.Errorf("failed to create account: %w", err)
		}
		log.WithField("username", username).Info("account registered")
	} else if err := bcrypt.CompareHashAndPassword([]byte(account.PassHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	identity := &Identity{Name: username, Key: a.SessionKey(username)}
	token, err := a.issue(identity)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign token: %w", err)
	}
	return identity, token, nil
}

// Identify validates a token and returns the identity it carries
func (a *Authenticator) Identify(token string) (*Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	username, _ := claims["usr"].(string)
	if username == "" {
		return nil, fmt.Errorf("%w: missing claims", ErrInvalidToken)
	}

	return &Identity{Name: username, Key: a.SessionKey(username)}, nil
}

func (a *Authenticator) issue(identity *Identity) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"usr": identity.Name,
		"exp": now.Add(a.expiry).Unix(),
		"iat": now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// MemoryAccounts keeps accounts in memory
type MemoryAccounts struct {
	accounts map[string]Account
	mu       sync.RWMutex
}

// NewMemoryAccounts creates an empty in-memory account store
func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{accounts: make(map[string]Account)}
}

// GetAccount returns the account or nil when it does not exist
func (m *MemoryAccounts) GetAccount(_ context.Context, username string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[strings.ToLower(username)]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

// CreateAccount stores a new account
func (m *MemoryAccounts) CreateAccount(_ context.Context, account Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(account.Username)
	if _, exists := m.accounts[key]; exists {
		return fmt.Errorf("account %q already exists", account.Username)
	}
	m.accounts[key] = account
	return nil
}
