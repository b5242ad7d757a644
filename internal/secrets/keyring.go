// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"errors"

	sigilerr "github.com/sigil-dev/ssitem/pkg/errors"
	"github.com/zalando/go-keyring"
)

// KeyringStore implements Store on the OS keyring via zalando/go-keyring.
// On Linux that is the Secret Service itself.
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkName("store", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return sigilerr.Wrapf(err, sigilerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return nil
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkName("retrieve", service, key); err != nil {
		return "", err
	}

	val, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", sigilerr.Errorf(sigilerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return "", sigilerr.Wrapf(err, sigilerr.CodeSecretResolveFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkName("delete", service, key); err != nil {
		return err
	}

	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return sigilerr.Errorf(sigilerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return sigilerr.Wrapf(err, sigilerr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}
	return nil
}

func checkName(op, service, key string) error {
	if service == "" {
		return sigilerr.New(sigilerr.CodeSecretInvalidInput, "secret "+op+": service must not be empty")
	}
	if key == "" {
		return sigilerr.New(sigilerr.CodeSecretInvalidInput, "secret "+op+": key must not be empty")
	}
	return nil
}
