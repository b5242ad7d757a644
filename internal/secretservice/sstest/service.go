// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sstest

import (
	"github.com/godbus/dbus/v5"
	"github.com/sigil-dev/ssitem/internal/secretservice"
)

// Paths used by NewService.
const (
	SessionPath    = dbus.ObjectPath("/org/freedesktop/secrets/session/s1")
	CollectionPath = dbus.ObjectPath("/org/freedesktop/secrets/collection/login")
	ItemPath       = dbus.ObjectPath("/org/freedesktop/secrets/collection/login/1")
	PromptPath     = dbus.ObjectPath("/org/freedesktop/secrets/prompt/p1")
)

// Method names as they appear in recorded calls.
const (
	OpenSession     = secretservice.ServiceInterface + ".OpenSession"
	ReadAlias       = secretservice.ServiceInterface + ".ReadAlias"
	Unlock          = secretservice.ServiceInterface + ".Unlock"
	Lock            = secretservice.ServiceInterface + ".Lock"
	SearchItems     = secretservice.ServiceInterface + ".SearchItems"
	CreateItem      = secretservice.CollectionInterface + ".CreateItem"
	CloseSession    = secretservice.SessionInterface + ".Close"
	PromptMethod    = secretservice.PromptInterface + ".Prompt"
	DismissMethod   = secretservice.PromptInterface + ".Dismiss"
	CompletedSignal = secretservice.PromptInterface + ".Completed"
)

// NewService returns a Transport that behaves like an unlocked keyring
// whose default alias points at CollectionPath. No call needs a prompt.
func NewService() *Transport {
	t := New()
	t.Reply(OpenSession, dbus.MakeVariant(""), SessionPath)
	t.Reply(ReadAlias, CollectionPath)
	t.Handle(Unlock, func(c Call) ([]any, error) {
		return []any{c.Args[0], secretservice.NoObject}, nil
	})
	t.Handle(Lock, func(c Call) ([]any, error) {
		return []any{c.Args[0], secretservice.NoObject}, nil
	})
	t.Reply(CreateItem, ItemPath, secretservice.NoObject)
	t.Reply(SearchItems, []dbus.ObjectPath{ItemPath}, []dbus.ObjectPath{})
	t.Reply(CloseSession)
	t.Reply(PromptMethod)
	t.Reply(DismissMethod)
	return t
}

// CompleteOnPrompt makes Prompt.Prompt emit Completed(dismissed, result)
// for the prompted path before the call returns.
func (t *Transport) CompleteOnPrompt(dismissed bool, result dbus.Variant) {
	t.Handle(PromptMethod, func(c Call) ([]any, error) {
		t.Emit(c.Path, CompletedSignal, dismissed, result)
		return nil, nil
	})
}
