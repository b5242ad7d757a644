// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/sigil-dev/ssitem/internal/config"
	"github.com/sigil-dev/ssitem/internal/secrets"
	"github.com/sigil-dev/ssitem/internal/secretservice/sstest"
	sigilerr "github.com/sigil-dev/ssitem/pkg/errors"
	"github.com/spf13/viper"
)

// fakeBus adds Ping and Close to an in-memory transport.
type fakeBus struct {
	*sstest.Transport
	pingErr error
	closed  int
}

func (f *fakeBus) Ping(context.Context) error { return f.pingErr }

func (f *fakeBus) Close() error {
	f.closed++
	return nil
}

// mockSecretStore is an in-memory secrets.Store for testing.
type mockSecretStore struct {
	data map[string]string // service/key -> value
}

func newMockSecretStore() *mockSecretStore {
	return &mockSecretStore{data: make(map[string]string)}
}

func (m *mockSecretStore) Store(service, key, value string) error {
	m.data[service+"/"+key] = value
	return nil
}

func (m *mockSecretStore) Retrieve(service, key string) (string, error) {
	v, ok := m.data[service+"/"+key]
	if !ok {
		return "", sigilerr.Errorf(sigilerr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(service, key string) error {
	if _, ok := m.data[service+"/"+key]; !ok {
		return sigilerr.Errorf(sigilerr.CodeSecretNotFound, "not found")
	}
	delete(m.data, service+"/"+key)
	return nil
}

type cliEnv struct {
	bus   *fakeBus
	store *mockSecretStore
	cfg   *config.Config // config the transport was last created with
}

// setupCLI isolates global state (viper, slog, factories, HOME) and wires
// the CLI to ft and an in-memory secret store.
func setupCLI(t *testing.T, ft *sstest.Transport) *cliEnv {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	origLogger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(origLogger) })

	t.Setenv("HOME", t.TempDir())
	t.Setenv("DBUS_SESSION_BUS_ADDRESS", "")

	env := &cliEnv{bus: &fakeBus{Transport: ft}, store: newMockSecretStore()}

	origTransport := transportFactory
	transportFactory = func(_ context.Context, cfg *config.Config) (busTransport, error) {
		env.cfg = cfg
		return env.bus, nil
	}
	t.Cleanup(func() { transportFactory = origTransport })

	origStore := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return env.store }
	t.Cleanup(func() { secretStoreFactory = origStore })

	return env
}

// execute runs the root command with args and returns stdout and stderr.
func execute(stdin string, args ...string) (string, string, error) {
	root := NewRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}
