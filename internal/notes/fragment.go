package notes

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	mathrand "math/rand/v2"
	"regexp"
	"time"
)

const fragmentSecretBytes = 16

var (
	fragmentSecretPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)
	errDigestLength       = errors.New("notes: fragment digest has unexpected length")
)

// FragmentConfig configures FragmentGenerator. Zero values select MD5, crypto/rand and time.Now.
type FragmentConfig struct {
	Digest     func(seed []byte) ([]byte, error)
	Random     io.Reader
	Clock      func() time.Time
	IDProvider IDProvider
}

// FragmentGenerator issues the 32 lowercase hex characters carried only in a note URL fragment.
type FragmentGenerator struct {
	digest func([]byte) ([]byte, error)
	random io.Reader
	clock  func() time.Time
	ids    IDProvider
}

// NewFragmentGenerator constructs a generator with defaults for unset fields.
func NewFragmentGenerator(cfg FragmentConfig) *FragmentGenerator {
	digest := cfg.Digest
	if digest == nil {
		digest = md5Digest
	}
	random := cfg.Random
	if random == nil {
		random = rand.Reader
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := cfg.IDProvider
	if ids == nil {
		ids = NewUUIDProvider()
	}
	return &FragmentGenerator{digest: digest, random: random, clock: clock, ids: ids}
}

// NewFragmentSecret hashes a uuid|millis|random seed; when hashing is unavailable it falls back
// to 16 random bytes. Both paths yield exactly 32 hex characters.
func (g *FragmentGenerator) NewFragmentSecret() (string, error) {
	if secret, err := g.digestSecret(); err == nil {
		return secret, nil
	}
	buffer := make([]byte, fragmentSecretBytes)
	if _, err := io.ReadFull(g.random, buffer); err != nil {
		return "", fmt.Errorf("notes: fragment secret: %w", err)
	}
	return hex.EncodeToString(buffer), nil
}

func (g *FragmentGenerator) digestSecret() (string, error) {
	seedID, err := g.ids.NewID()
	if err != nil {
		return "", err
	}
	seed := fmt.Sprintf("%s|%d|%v", seedID, g.clock().UnixMilli(), mathrand.Float64())
	sum, err := g.digest([]byte(seed))
	if err != nil {
		return "", err
	}
	if len(sum) != fragmentSecretBytes {
		return "", errDigestLength
	}
	return hex.EncodeToString(sum), nil
}

// IsFragmentSecret reports whether value has the fragment secret shape.
func IsFragmentSecret(value string) bool {
	return fragmentSecretPattern.MatchString(value)
}

func md5Digest(seed []byte) ([]byte, error) {
	sum := md5.Sum(seed)
	return sum[:], nil
}
