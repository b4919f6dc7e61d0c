package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Auth holds bot password credentials, stored in auth.toml:
//
//	username = "Bot@mfdarchiver"
//	password = "..."
type Auth struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

const authFileName = "auth.toml"

// AuthPath resolves the credentials file: the explicit path if given,
// otherwise ./auth.toml, otherwise $HOME/auth.toml.
func AuthPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if _, err := os.Stat(authFileName); err == nil {
		return authFileName, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home directory: %w", err)
	}
	return filepath.Join(home, authFileName), nil
}

// LoadAuth reads and validates the credentials file at path.
func LoadAuth(path string) (Auth, error) {
	var auth Auth
	if _, err := toml.DecodeFile(path, &auth); err != nil {
		return Auth{}, fmt.Errorf("read credentials %s: %w", path, err)
	}
	if auth.Username == "" || auth.Password == "" {
		return Auth{}, errors.New("credentials need both username and password")
	}
	return auth, nil
}
