// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"os"
	"strings"

	sigilerr "github.com/sigil-dev/ssitem/pkg/errors"
	"github.com/spf13/viper"
)

const (
	keyringScheme = "keyring://"
	envScheme     = "env://"
)

// IsKeyringURI reports whether value uses the keyring:// URI scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// IsEnvURI reports whether value uses the env:// URI scheme.
func IsEnvURI(value string) bool {
	return strings.HasPrefix(value, envScheme)
}

// IsReference reports whether value names a secret instead of holding it.
func IsReference(value string) bool {
	return IsKeyringURI(value) || IsEnvURI(value)
}

// ParseKeyringURI extracts service and key from a keyring://service/key URI.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", sigilerr.Errorf(sigilerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	path := strings.TrimPrefix(uri, keyringScheme)
	service, key, ok := strings.Cut(path, "/")
	if !ok || service == "" || key == "" {
		return "", "", sigilerr.Errorf(sigilerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return service, key, nil
}

// ParseEnvURI extracts the variable name from an env://NAME URI.
func ParseEnvURI(uri string) (string, error) {
	if !IsEnvURI(uri) {
		return "", sigilerr.Errorf(sigilerr.CodeSecretInvalidInput, "not an env URI: %q", uri)
	}

	name := strings.TrimPrefix(uri, envScheme)
	if name == "" || strings.ContainsAny(name, "/= ") {
		return "", sigilerr.Errorf(sigilerr.CodeSecretInvalidInput,
			"invalid env URI %q: expected env://NAME", uri)
	}
	return name, nil
}

// Resolve returns the secret value named by value. Values that are not
// references are returned unchanged.
func Resolve(store Store, value string) (string, error) {
	switch {
	case IsKeyringURI(value):
		service, key, err := ParseKeyringURI(value)
		if err != nil {
			return "", err
		}
		secret, err := store.Retrieve(service, key)
		if err != nil {
			return "", sigilerr.Wrapf(err, sigilerr.CodeSecretResolveFailure, "resolving keyring URI %q", value)
		}
		return secret, nil

	case IsEnvURI(value):
		name, err := ParseEnvURI(value)
		if err != nil {
			return "", err
		}
		secret, ok := os.LookupEnv(name)
		if !ok {
			return "", sigilerr.Errorf(sigilerr.CodeSecretNotFound, "environment variable %s is not set", name)
		}
		return secret, nil

	default:
		return value, nil
	}
}

// ResolveViperSecrets replaces every string value in v that is a secret
// reference with the secret it names. It runs after loading, not as a
// decoder hook. Keys that fail to resolve keep their reference and are
// reported together in the returned error.
func ResolveViperSecrets(v *viper.Viper, store Store) error {
	var errs []error
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsReference(val) {
			continue
		}

		resolved, err := Resolve(store, val)
		if err != nil {
			errs = append(errs, sigilerr.Wrapf(err, sigilerr.CodeSecretResolveFailure,
				"config key %s: cannot resolve %q", key, val))
			continue
		}
		v.Set(key, resolved)
	}

	if len(errs) == 0 {
		return nil
	}
	return sigilerr.Join(errs...)
}
