// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secretservice_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sigil-dev/ssitem/internal/secretservice"
	sigilerr "github.com/sigil-dev/ssitem/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests talk to a real session bus, e.g. under dbus-run-session.

const (
	busPromptPath     = dbus.ObjectPath("/org/freedesktop/secrets/prompt/p1")
	busCollectionPath = dbus.ObjectPath("/org/freedesktop/secrets/collection/login")
	completedSignal   = secretservice.PromptInterface + ".Completed"
)

type busService struct {
	prompt dbus.ObjectPath
}

func (s *busService) Unlock(objects []dbus.ObjectPath) ([]dbus.ObjectPath, dbus.ObjectPath, *dbus.Error) {
	return []dbus.ObjectPath{}, s.prompt, nil
}

func (s *busService) Lock(objects []dbus.ObjectPath) ([]dbus.ObjectPath, dbus.ObjectPath, *dbus.Error) {
	return nil, "", dbus.NewError("org.freedesktop.Secret.Error.NoSuchObject", []any{"collection vanished"})
}

type busPrompt struct {
	conn   *dbus.Conn
	path   dbus.ObjectPath
	result []dbus.ObjectPath
}

// Prompt completes asynchronously, after a Completed from another prompt.
func (p *busPrompt) Prompt(windowID string) *dbus.Error {
	go func() {
		_ = p.conn.Emit("/org/freedesktop/secrets/prompt/other", completedSignal,
			true, dbus.MakeVariant([]dbus.ObjectPath{"/wrong"}))
		_ = p.conn.Emit(p.path, completedSignal, false, dbus.MakeVariant(p.result))
	}()
	return nil
}

func (p *busPrompt) Dismiss() *dbus.Error {
	return nil
}

// sessionBus connects to the session bus or skips the test.
func sessionBus(t *testing.T) *dbus.Conn {
	t.Helper()
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
		t.Skip("DBUS_SESSION_BUS_ADDRESS is not set")
	}
	conn, err := dbus.ConnectSessionBus()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// exportService exports a fake Secret Service on its own connection and
// returns a transport dialled to it.
func exportService(t *testing.T, ctx context.Context) (*secretservice.BusTransport, *dbus.Conn) {
	t.Helper()
	svc := sessionBus(t)

	require.NoError(t, svc.Export(&busService{prompt: busPromptPath},
		secretservice.ServicePath, secretservice.ServiceInterface))
	require.NoError(t, svc.Export(&busPrompt{conn: svc, path: busPromptPath, result: []dbus.ObjectPath{busCollectionPath}},
		busPromptPath, secretservice.PromptInterface))

	tr, err := secretservice.Dial(ctx, "", svc.Names()[0])
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr, svc
}

func TestBusTransport_UnlockThroughPrompt(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	tr, _ := exportService(t, ctx)

	require.NoError(t, tr.Ping(ctx))

	client := secretservice.NewClient(tr)
	affected, err := client.Unlock(ctx, busCollectionPath)
	require.NoError(t, err)
	assert.Equal(t, []dbus.ObjectPath{busCollectionPath}, affected)
}

func TestBusTransport_RemoteErrorPassesThrough(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	tr, _ := exportService(t, ctx)

	_, err := secretservice.NewClient(tr).Lock(ctx, busCollectionPath)
	require.Error(t, err)

	var dbusErr dbus.Error
	require.ErrorAs(t, err, &dbusErr)
	assert.Equal(t, "org.freedesktop.Secret.Error.NoSuchObject", dbusErr.Name)
	assert.True(t, sigilerr.HasCode(err, sigilerr.CodeLockFailure))
}

func TestBusTransport_PingUnknownName(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sessionBus(t)

	tr, err := secretservice.Dial(ctx, "", "org.example.ssitem.NotRegistered")
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()

	err = tr.Ping(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "org.example.ssitem.NotRegistered")
}

func TestBusTransport_WatchFiltersByPath(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	tr, svc := exportService(t, ctx)

	const (
		first  = dbus.ObjectPath("/org/freedesktop/secrets/prompt/a")
		second = dbus.ObjectPath("/org/freedesktop/secrets/prompt/b")
	)

	watch := func(path dbus.ObjectPath) (<-chan []any, func()) {
		bodies := make(chan []any, 4)
		stop, err := tr.Watch(ctx, path, secretservice.PromptInterface, "Completed", func(body []any, err error) {
			if err == nil {
				bodies <- body
			}
		})
		require.NoError(t, err)
		return bodies, stop
	}
	firstBodies, stopFirst := watch(first)
	secondBodies, stopSecond := watch(second)
	defer stopFirst()
	defer stopSecond()

	// Both match rules live on one connection, so each channel sees both
	// signals and must drop the one for the other path.
	require.NoError(t, svc.Emit(second, completedSignal, true, dbus.MakeVariant("b")))
	require.NoError(t, svc.Emit(first, completedSignal, false, dbus.MakeVariant("a")))

	select {
	case body := <-firstBodies:
		var res secretservice.PromptResult
		require.NoError(t, dbus.Store(body, &res.Dismissed, &res.Result))
		assert.False(t, res.Dismissed)
		assert.Equal(t, "a", res.Result.Value())
	case <-ctx.Done():
		t.Fatal("no Completed for the watched path")
	}

	select {
	case body := <-secondBodies:
		assert.Equal(t, true, body[0])
	case <-ctx.Done():
		t.Fatal("no Completed for the second path")
	}

	assert.Empty(t, firstBodies)
	assert.Empty(t, secondBodies)
}

func TestBusTransport_CloseEndsWatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	tr, _ := exportService(t, ctx)

	errs := make(chan error, 1)
	stop, err := tr.Watch(ctx, busPromptPath, secretservice.PromptInterface, "Completed", func(_ []any, err error) {
		if err != nil {
			errs <- err
		}
	})
	require.NoError(t, err)

	require.NoError(t, tr.Close())

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, secretservice.ErrBusClosed)
	case <-ctx.Done():
		t.Fatal("handler was not told the connection closed")
	}

	stop()
	stop()
}
