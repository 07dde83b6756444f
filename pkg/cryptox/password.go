package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// ErrPasswordMismatch is returned by VerifyPassword when the hash is well
// formed but does not match.
var ErrPasswordMismatch = errors.New("password does not match")

// ErrMalformedHash is returned for a stored hash that is not a PHC
// argon2id string.
var ErrMalformedHash = errors.New("cryptox: malformed password hash")

// argonParams are the argon2id cost settings recorded in every hash.
type argonParams struct {
	Memory  uint32 // KiB
	Time    uint32
	Threads uint8
	KeyLen  uint32
}

// passwordParams is the OWASP minimum for argon2id: 19 MiB, two passes.
var passwordParams = argonParams{Memory: 19 * 1024, Time: 2, Threads: 1, KeyLen: 32}

const saltLength = 16

type phcHash struct {
	params argonParams
	salt   []byte
	key    []byte
}

// String renders $argon2id$v=19$m=..,t=..,p=..$salt$key.
func (h phcHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key))
}

func parsePHC(encoded string) (phcHash, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return phcHash{}, fmt.Errorf("%w: not argon2id", ErrMalformedHash)
	}
	if fields[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return phcHash{}, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, fields[2])
	}

	var h phcHash
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.params.Memory, &h.params.Time, &h.params.Threads); err != nil {
		return phcHash{}, fmt.Errorf("%w: parameters: %v", ErrMalformedHash, err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return phcHash{}, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return phcHash{}, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	h.params.KeyLen = uint32(len(h.key)) // #nosec G115 - decoded from a short string
	return h, nil
}

func deriveKey(password string, salt []byte, p argonParams) []byte {
	return argon2.IDKey([]byte(password+currentPepper()), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}

// HashPassword returns a salted, peppered argon2id hash in PHC format.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return phcHash{
		params: passwordParams,
		salt:   salt,
		key:    deriveKey(password, salt, passwordParams),
	}.String(), nil
}

// VerifyPassword checks password against a hash from HashPassword using
// the parameters recorded in the hash, so older hashes keep working after
// the defaults change.
func VerifyPassword(password, encodedHash string) error {
	h, err := parsePHC(encodedHash)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(deriveKey(password, h.salt, h.params), h.key) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// NeedsRehash reports whether encodedHash was made with parameters other
// than the current ones. Callers rehash after a successful verification.
func NeedsRehash(encodedHash string) bool {
	h, err := parsePHC(encodedHash)
	return err != nil || h.params != passwordParams
}

var dummyHash = sync.OnceValue(func() string {
	hash, err := HashPassword(MustGenerateToken(TokenSize128))
	if err != nil {
		panic(fmt.Sprintf("cryptox: build dummy hash: %v", err))
	}
	return hash
})

// VerifyDummy runs a full verification against a throwaway hash and always
// fails. Call it when there is no stored hash to compare against so the
// caller spends the same time as a real mismatch.
func VerifyDummy(password string) error {
	_ = VerifyPassword(password, dummyHash())
	return ErrPasswordMismatch
}
