package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/nao1215/archivist/internal/wayback"
)

// Environment variables holding the archive login cookies.
const (
	EnvLoggedInUser = "IA_LOGGED_IN_USER"
	EnvLoggedInSig  = "IA_LOGGED_IN_SIG"
)

// LoadCredentials reads the archive login cookies from path and the process
// environment. Process variables win over the file. A missing file is not an
// error; the credentials are then whatever the environment holds, possibly
// none.
func LoadCredentials(path string) (wayback.Credentials, error) {
	values := map[string]string{}
	if path != "" {
		env, err := godotenv.Read(path)
		switch {
		case err == nil:
			values = env
		case errors.Is(err, fs.ErrNotExist):
		default:
			return wayback.Credentials{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v
		}
		return values[key]
	}

	return wayback.Credentials{
		User: lookup(EnvLoggedInUser),
		Sig:  lookup(EnvLoggedInSig),
	}, nil
}
