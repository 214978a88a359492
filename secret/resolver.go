package secret

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotFound indicates a reference pointed at a missing source.
var ErrNotFound = errors.New("secret: not found")

// Resolve expands a secret reference to its value.
//
//	env:NAME    -> value of environment variable NAME
//	file:/path  -> trimmed contents of the file at /path
//	anything else is returned unchanged.
func Resolve(ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "env:"):
		name := strings.TrimPrefix(ref, "env:")
		if name == "" {
			return "", fmt.Errorf("%w: empty environment variable name", ErrNotFound)
		}
		value, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("%w: environment variable %q", ErrNotFound, name)
		}
		return value, nil

	case strings.HasPrefix(ref, "file:"):
		path := strings.TrimPrefix(ref, "file:")
		if path == "" {
			return "", fmt.Errorf("%w: empty file path", ErrNotFound)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("%w: file %q: %v", ErrNotFound, path, err)
		}
		return strings.TrimSpace(string(data)), nil

	default:
		return ref, nil
	}
}
