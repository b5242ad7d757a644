// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secretservice

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/godbus/dbus/v5"
	sigilerr "github.com/sigil-dev/ssitem/pkg/errors"
)

// ErrBusClosed is passed to a SignalHandler when the connection closes
// while the subscription is active.
var ErrBusClosed = errors.New("bus connection closed")

// SignalHandler receives either the body of a matching signal or the
// failure that ended the subscription. It may be called from a goroutine
// owned by the transport.
type SignalHandler func(body []any, err error)

// Transport is the part of a bus connection the client depends on.
type Transport interface {
	// Call invokes method on the object at path and stores the reply
	// values into reply.
	Call(ctx context.Context, path dbus.ObjectPath, method string, args []any, reply ...any) error

	// Watch subscribes handler to member signals of iface emitted by the
	// object at path. The subscription is active when Watch returns; the
	// returned cancel func ends it and is safe to call more than once.
	Watch(ctx context.Context, path dbus.ObjectPath, iface, member string, handler SignalHandler) (cancel func(), err error)
}

// BusTransport is a Transport over a godbus connection.
type BusTransport struct {
	conn *dbus.Conn
	dest string
}

// Dial connects to the bus at address, or to the session bus when address
// is empty, and returns a transport addressing the service that owns name
// (ServiceName when empty).
func Dial(ctx context.Context, address, name string) (*BusTransport, error) {
	if name == "" {
		name = ServiceName
	}

	var (
		conn *dbus.Conn
		err  error
	)
	if address == "" {
		conn, err = dbus.ConnectSessionBus(dbus.WithContext(ctx))
	} else {
		conn, err = dbus.Connect(address, dbus.WithContext(ctx))
	}
	if err != nil {
		return nil, sigilerr.Wrap(err, sigilerr.CodeBusConnectFailure, "connecting to session bus",
			sigilerr.Field("address", address))
	}
	return NewBusTransport(conn, name), nil
}

// NewBusTransport returns a transport that sends calls to dest over conn.
func NewBusTransport(conn *dbus.Conn, dest string) *BusTransport {
	return &BusTransport{conn: conn, dest: dest}
}

// Close closes the underlying connection.
func (t *BusTransport) Close() error {
	return t.conn.Close()
}

// Ping reports whether the service currently owns its bus name or can be
// started by the bus on first use.
func (t *BusTransport) Ping(ctx context.Context) error {
	bus := t.conn.BusObject()

	var owned bool
	if err := bus.CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, t.dest).Store(&owned); err != nil {
		return sigilerr.Wrap(err, sigilerr.CodeBusCallFailure, "checking service name owner",
			sigilerr.Field("name", t.dest))
	}
	if owned {
		return nil
	}

	var activatable []string
	if err := bus.CallWithContext(ctx, "org.freedesktop.DBus.ListActivatableNames", 0).Store(&activatable); err != nil {
		return sigilerr.Wrap(err, sigilerr.CodeBusCallFailure, "listing activatable names")
	}
	if slices.Contains(activatable, t.dest) {
		return nil
	}
	return sigilerr.Errorf(sigilerr.CodeBusConnectFailure, "no secret service is registered as %s", t.dest)
}

// Call implements Transport. Errors returned by the service are passed
// through as dbus.Error values.
func (t *BusTransport) Call(ctx context.Context, path dbus.ObjectPath, method string, args []any, reply ...any) error {
	call := t.conn.Object(t.dest, path).CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return call.Err
	}
	if len(reply) == 0 {
		return nil
	}
	return call.Store(reply...)
}

// Watch implements Transport.
func (t *BusTransport) Watch(ctx context.Context, path dbus.ObjectPath, iface, member string, handler SignalHandler) (func(), error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(iface),
		dbus.WithMatchMember(member),
	}
	if err := t.conn.AddMatchSignalContext(ctx, opts...); err != nil {
		return nil, err
	}

	signals := make(chan *dbus.Signal, 8)
	t.conn.Signal(signals)

	name := iface + "." + member
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case sig, ok := <-signals:
				if !ok {
					handler(nil, ErrBusClosed)
					return
				}
				if sig.Path != path || sig.Name != name {
					continue
				}
				handler(sig.Body, nil)
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			t.conn.RemoveSignal(signals)
			_ = t.conn.RemoveMatchSignal(opts...)
		})
	}
	return cancel, nil
}
