package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// DefaultAccessTokenLength is the length of tokens issued for new notes.
	DefaultAccessTokenLength = 24
	minValidTokenLength      = 16
	maxValidTokenLength      = 128
	minGeneratedTokenLength  = 3

	upperAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerAlphabet  = "abcdefghijklmnopqrstuvwxyz"
	digitAlphabet  = "0123456789"
	accessAlphabet = upperAlphabet + lowerAlphabet + digitAlphabet
)

var (
	// ErrTokenTooShort indicates a request for a token that cannot hold all three character classes.
	ErrTokenTooShort = errors.New("auth: access token length must be at least 3")
	// ErrRandomSource indicates the random source failed while producing a token.
	ErrRandomSource = errors.New("auth: random source failure")
)

// AccessGuardConfig configures the edit-access token guard.
type AccessGuardConfig struct {
	Random      io.Reader
	TokenLength int
}

// AccessGuard issues and checks the per-note edit access tokens.
type AccessGuard struct {
	random      io.Reader
	tokenLength int
}

// NewAccessGuard constructs a guard backed by crypto/rand unless another source is supplied.
func NewAccessGuard(cfg AccessGuardConfig) *AccessGuard {
	random := cfg.Random
	if random == nil {
		random = rand.Reader
	}
	length := cfg.TokenLength
	if length <= 0 {
		length = DefaultAccessTokenLength
	}
	return &AccessGuard{random: random, tokenLength: length}
}

// NewToken issues a token of the configured length.
func (g *AccessGuard) NewToken() (string, error) {
	return g.GenerateToken(g.tokenLength)
}

// GenerateToken fills length alphanumeric characters, then overwrites three distinct random
// positions with an uppercase letter, a lowercase letter and a digit.
func (g *AccessGuard) GenerateToken(length int) (string, error) {
	if length < minGeneratedTokenLength {
		return "", fmt.Errorf("%w: got %d", ErrTokenTooShort, length)
	}

	characters := make([]byte, length)
	for index := range characters {
		position, err := g.randomIndex(len(accessAlphabet))
		if err != nil {
			return "", err
		}
		characters[index] = accessAlphabet[position]
	}

	used := make(map[int]struct{}, 3)
	for _, alphabet := range []string{upperAlphabet, lowerAlphabet, digitAlphabet} {
		position, err := g.randomIndex(length)
		if err != nil {
			return "", err
		}
		for {
			if _, taken := used[position]; !taken {
				break
			}
			if position, err = g.randomIndex(length); err != nil {
				return "", err
			}
		}
		used[position] = struct{}{}

		choice, err := g.randomIndex(len(alphabet))
		if err != nil {
			return "", err
		}
		characters[position] = alphabet[choice]
	}

	return string(characters), nil
}

// EnsureToken returns current when it is a well-formed token and a freshly issued one otherwise.
// The boolean reports whether a new token was issued and therefore needs to be persisted.
func (g *AccessGuard) EnsureToken(current string) (string, bool, error) {
	if IsValidToken(current) {
		return current, false, nil
	}
	token, err := g.NewToken()
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

// randomIndex draws a uniform value in [0, maxExclusive) with rejection sampling.
func (g *AccessGuard) randomIndex(maxExclusive int) (int, error) {
	if maxExclusive <= 1 {
		return 0, nil
	}
	bound := uint32(maxExclusive)
	limit := ^uint32(0) - (^uint32(0) % bound)
	var buffer [4]byte
	for {
		if _, err := io.ReadFull(g.random, buffer[:]); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRandomSource, err)
		}
		value := binary.BigEndian.Uint32(buffer[:])
		if value < limit {
			return int(value % bound), nil
		}
	}
}

// IsValidToken checks the token shape only: 16-128 ASCII letters and digits with at least
// one uppercase letter, one lowercase letter and one digit.
func IsValidToken(token string) bool {
	if len(token) < minValidTokenLength || len(token) > maxValidTokenLength {
		return false
	}
	var hasUpper, hasLower, hasDigit bool
	for index := 0; index < len(token); index++ {
		character := token[index]
		switch {
		case character >= 'A' && character <= 'Z':
			hasUpper = true
		case character >= 'a' && character <= 'z':
			hasLower = true
		case character >= '0' && character <= '9':
			hasDigit = true
		default:
			return false
		}
	}
	return hasUpper && hasLower && hasDigit
}

// HasEditAccess reports whether the presented token matches the stored one.
func HasEditAccess(storedToken, presentedToken string) bool {
	if presentedToken == "" || storedToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(storedToken), []byte(presentedToken)) == 1
}
