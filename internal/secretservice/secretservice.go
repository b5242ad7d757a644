// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package secretservice is a client for the freedesktop Secret Service
// D-Bus API. It covers the calls needed to open a plain session, resolve a
// collection alias, lock or unlock objects (running the interactive prompt
// when the service asks for one) and create items.
package secretservice

import (
	"github.com/godbus/dbus/v5"
)

// ServiceName is the well-known bus name of the Secret Service.
const ServiceName = "org.freedesktop.secrets"

// ServicePath is the object path of the Secret Service.
const ServicePath = dbus.ObjectPath("/org/freedesktop/secrets")

const (
	ServiceInterface    = "org.freedesktop.Secret.Service"
	CollectionInterface = "org.freedesktop.Secret.Collection"
	ItemInterface       = "org.freedesktop.Secret.Item"
	SessionInterface    = "org.freedesktop.Secret.Session"
	PromptInterface     = "org.freedesktop.Secret.Prompt"
)

// AlgorithmPlain is the only session algorithm this client negotiates.
const AlgorithmPlain = "plain"

// DefaultAlias is the alias of the user's default collection.
const DefaultAlias = "default"

// NoObject is the path the service returns when there is no object, for
// example an alias with no collection or a call that needs no prompt.
const NoObject = dbus.ObjectPath("/")

// Ref is an object path that may be absent. It replaces comparisons
// against NoObject once a reply has crossed the bus boundary.
type Ref struct {
	Path  dbus.ObjectPath
	Valid bool
}

// RefOf converts a path received from the service into a Ref. NoObject,
// the empty path and malformed paths yield an invalid Ref.
func RefOf(path dbus.ObjectPath) Ref {
	if path == "" || path == NoObject || !path.IsValid() {
		return Ref{}
	}
	return Ref{Path: path, Valid: true}
}

// String returns the path, or "/" when the Ref is invalid.
func (r Ref) String() string {
	if !r.Valid {
		return string(NoObject)
	}
	return string(r.Path)
}
