// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package secrets resolves secret values that are given by reference
// instead of literally, and stores secrets for later reference.
package secrets

// ServiceName is the keyring service ssitem stores its own secrets under.
const ServiceName = "ssitem"

// Store keeps secrets under a service and key.
type Store interface {
	// Store saves value under service and key, replacing any existing value.
	Store(service, key, value string) error

	// Retrieve returns the value under service and key. A missing entry
	// carries sigilerr.CodeSecretNotFound.
	Retrieve(service, key string) (string, error)

	// Delete removes the value under service and key.
	Delete(service, key string) error
}
