package remote

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrKeyNotFound is returned when no usable private key file exists for a
// host.
var ErrKeyNotFound = errors.New("no private key file found")

// DefaultKeyFile is tried when no key named after the instance's key pair
// exists in the key directory.
const DefaultKeyFile = "id_rsa"

// DefaultKeyDir returns the conventional key directory under the invoking
// user's home.
func DefaultKeyDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ssh")
}

// KeyPath locates the private key for a key pair name. It tries
// <keyDir>/<keyName>.pem first and falls back to the default key file.
func KeyPath(keyDir, keyName string) (string, error) {
	if keyDir == "" {
		keyDir = DefaultKeyDir()
	}

	if keyName != "" {
		named := filepath.Join(keyDir, keyName+".pem")
		if fileExists(named) {
			return named, nil
		}
	}

	fallback := filepath.Join(keyDir, DefaultKeyFile)
	if fileExists(fallback) {
		return fallback, nil
	}

	return "", fmt.Errorf("%w: tried %s.pem and %s in %s", ErrKeyNotFound, keyName, DefaultKeyFile, keyDir)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
