// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"
)

var errMalformedHash = errors.New("malformed password hash")

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

var currentParams = argonParams{
	memory:  64 * 1024,
	time:    1,
	threads: 4,
	keyLen:  32,
}

const saltLength = 16

// passwordHash is the PHC form stored in users.password_hash and
// users.temp_password_hash:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
type passwordHash struct {
	params argonParams
	salt   []byte
	key    []byte
}

func derive(password string, salt []byte, p argonParams) passwordHash {
	return passwordHash{
		params: p,
		salt:   salt,
		key: argon2.IDKey(
			[]byte(password), salt, p.time, p.memory, p.threads, p.keyLen,
		),
	}
}

func (h passwordHash) String() string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.memory,
		h.params.time,
		h.params.threads,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

func (h passwordHash) matches(password string) bool {
	other := derive(password, h.salt, h.params)
	return subtle.ConstantTimeCompare(h.key, other.key) == 1
}

func (h passwordHash) outdated() bool {
	return h.params != currentParams
}

func parsePasswordHash(encoded string) (passwordHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return passwordHash{}, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return passwordHash{}, fmt.Errorf("%w: version: %w", errMalformedHash, err)
	}
	if version != argon2.Version {
		return passwordHash{}, fmt.Errorf("%w: argon2 version %d", errMalformedHash, version)
	}

	var h passwordHash
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d",
		&h.params.memory, &h.params.time, &h.params.threads)
	if err != nil {
		return passwordHash{}, fmt.Errorf("%w: params: %w", errMalformedHash, err)
	}

	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return passwordHash{}, fmt.Errorf("%w: salt: %w", errMalformedHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return passwordHash{}, fmt.Errorf("%w: key: %w", errMalformedHash, err)
	}

	//nolint:gosec // G115: argon2id keys are 32 bytes
	h.params.keyLen = uint32(len(h.key))

	return h, nil
}

func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return derive(password, salt, currentParams).String(), nil
}

func VerifyPassword(password, encodedHash string) (bool, error) {
	h, err := parsePasswordHash(encodedHash)
	if err != nil {
		return false, err
	}
	return h.matches(password), nil
}

// VerifyPasswordWithRehash also returns a fresh hash when the stored one was
// produced with older argon2 parameters. An empty string means keep it.
func VerifyPasswordWithRehash(
	password, encodedHash string,
) (bool, string, error) {
	h, err := parsePasswordHash(encodedHash)
	if err != nil {
		return false, "", err
	}

	if !h.matches(password) {
		return false, "", nil
	}

	if h.outdated() {
		if upgraded, hashErr := HashPassword(password); hashErr == nil {
			return true, upgraded, nil
		}
	}

	return true, "", nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// VerifyPasswordTimingSafe spends the same argon2 work whether or not the
// account exists, so login latency does not reveal registered emails.
func VerifyPasswordTimingSafe(
	password string,
	encodedHash *string,
) (bool, string, error) {
	if encodedHash == nil || *encodedHash == "" {
		dummyHashOnce.Do(func() {
			dummyHash, _ = HashPassword("no-such-account")
		})
		//nolint:errcheck // result discarded, only the work matters
		_, _, _ = VerifyPasswordWithRehash(password, dummyHash)
		return false, "", nil
	}

	return VerifyPasswordWithRehash(password, *encodedHash)
}

// RandomToken returns n random bytes, URL-safe base64 encoded.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

const temporaryCredentialBytes = 4

// TemporaryCredential is a password-reset secret. Only Hash and ExpiresAt
// are persisted; Secret is handed to the user once.
type TemporaryCredential struct {
	Secret    string
	Hash      string
	ExpiresAt time.Time
}

func NewTemporaryCredential(now time.Time, ttl time.Duration) (TemporaryCredential, error) {
	b := make([]byte, temporaryCredentialBytes)
	if _, err := rand.Read(b); err != nil {
		return TemporaryCredential{}, fmt.Errorf("generate temporary credential: %w", err)
	}

	secret := hex.EncodeToString(b)
	hash, err := HashPassword(secret)
	if err != nil {
		return TemporaryCredential{}, fmt.Errorf("hash temporary credential: %w", err)
	}

	return TemporaryCredential{
		Secret:    secret,
		Hash:      hash,
		ExpiresAt: now.Add(ttl),
	}, nil
}

type TemporaryCredentialCheck int

const (
	TemporaryCredentialAbsent TemporaryCredentialCheck = iota
	TemporaryCredentialExpired
	TemporaryCredentialMismatch
	TemporaryCredentialMatch
)

// CheckTemporaryCredential classifies a login attempt against a stored reset
// secret. Expiry wins over a correct secret.
func CheckTemporaryCredential(
	secret string,
	hash *string,
	expiresAt *time.Time,
	now time.Time,
) (TemporaryCredentialCheck, error) {
	if hash == nil || *hash == "" {
		return TemporaryCredentialAbsent, nil
	}
	if expiresAt == nil || !now.Before(*expiresAt) {
		return TemporaryCredentialExpired, nil
	}

	ok, err := VerifyPassword(secret, *hash)
	if err != nil {
		return TemporaryCredentialMismatch, err
	}
	if !ok {
		return TemporaryCredentialMismatch, nil
	}
	return TemporaryCredentialMatch, nil
}
