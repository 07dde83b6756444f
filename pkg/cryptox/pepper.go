package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const pepperLength = 32

var (
	pepperMu sync.RWMutex
	pepper   string
)

// LoadPepper reads the server pepper from file, generating and writing a
// new one (mode 0600) when the file does not exist yet. It must be called
// before any password is hashed; losing the file invalidates every stored
// password hash.
func LoadPepper(file string) error {
	if strings.TrimSpace(file) == "" {
		return errors.New("cryptox: pepper file path is empty")
	}

	value, err := loadOrGeneratePepper(filepath.Clean(file))
	if err != nil {
		return err
	}

	SetPepper(value)
	return nil
}

// SetPepper installs a pepper directly. Used by LoadPepper and tests.
func SetPepper(value string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()
	pepper = value
}

// currentPepper returns the installed pepper. A process that never loaded
// one gets a random in-memory pepper, so hashes are only valid for the
// lifetime of the process.
func currentPepper() string {
	pepperMu.RLock()
	value := pepper
	pepperMu.RUnlock()
	if value != "" {
		return value
	}

	pepperMu.Lock()
	defer pepperMu.Unlock()
	if pepper == "" {
		pepper = MustGenerateToken(pepperLength)
	}
	return pepper
}

func loadOrGeneratePepper(file string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
		return "", err
	}

	data, err := os.ReadFile(file)
	if err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	raw := make([]byte, pepperLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	value := base64.RawURLEncoding.EncodeToString(raw)

	if err := os.WriteFile(file, []byte(value), 0600); err != nil {
		return "", err
	}
	return value, nil
}
