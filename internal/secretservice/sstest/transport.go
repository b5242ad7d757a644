// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package sstest provides an in-memory secretservice.Transport for tests.
package sstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/sigil-dev/ssitem/internal/secretservice"
)

// Call is one recorded method call.
type Call struct {
	Path   dbus.ObjectPath
	Method string
	Args   []any
}

// Responder produces the reply values for a call, or an error.
type Responder func(call Call) ([]any, error)

type watch struct {
	id      int
	path    dbus.ObjectPath
	name    string
	handler secretservice.SignalHandler
	active  bool
}

// Transport records calls and signal subscriptions. Replies come from the
// responder registered for the method; signals are delivered by Emit.
type Transport struct {
	mu         sync.Mutex
	calls      []Call
	events     []string
	responders map[string]Responder
	watches    []*watch
	nextID     int
}

var _ secretservice.Transport = (*Transport)(nil)

// New returns an empty Transport.
func New() *Transport {
	return &Transport{responders: make(map[string]Responder)}
}

// Handle registers r for method.
func (t *Transport) Handle(method string, r Responder) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responders[method] = r
}

// Reply registers fixed reply values for method.
func (t *Transport) Reply(method string, values ...any) {
	t.Handle(method, func(Call) ([]any, error) { return values, nil })
}

// Fail makes method return err.
func (t *Transport) Fail(method string, err error) {
	t.Handle(method, func(Call) ([]any, error) { return nil, err })
}

// Call implements secretservice.Transport.
func (t *Transport) Call(ctx context.Context, path dbus.ObjectPath, method string, args []any, reply ...any) error {
	call := Call{Path: path, Method: method, Args: args}

	t.mu.Lock()
	t.calls = append(t.calls, call)
	t.events = append(t.events, "call "+method)
	r, ok := t.responders[method]
	t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if !ok {
		return dbus.Error{
			Name: "org.freedesktop.DBus.Error.UnknownMethod",
			Body: []any{fmt.Sprintf("no responder for %s", method)},
		}
	}

	values, err := r(call)
	if err != nil {
		return err
	}
	if len(reply) == 0 {
		return nil
	}
	return dbus.Store(values, reply...)
}

// Watch implements secretservice.Transport.
func (t *Transport) Watch(_ context.Context, path dbus.ObjectPath, iface, member string, handler secretservice.SignalHandler) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	w := &watch{id: t.nextID, path: path, name: iface + "." + member, handler: handler, active: true}
	t.watches = append(t.watches, w)
	t.events = append(t.events, "watch "+w.name)

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		w.active = false
	}, nil
}

// Emit delivers a signal to every active subscription matching path and
// iface.member. It returns the number of handlers invoked.
func (t *Transport) Emit(path dbus.ObjectPath, name string, body ...any) int {
	return t.deliver(path, name, body, nil)
}

// EmitError delivers a subscription failure to every active subscription
// matching path and iface.member.
func (t *Transport) EmitError(path dbus.ObjectPath, name string, err error) int {
	return t.deliver(path, name, nil, err)
}

func (t *Transport) deliver(path dbus.ObjectPath, name string, body []any, err error) int {
	t.mu.Lock()
	var targets []secretservice.SignalHandler
	for _, w := range t.watches {
		if w.active && w.path == path && w.name == name {
			targets = append(targets, w.handler)
		}
	}
	t.mu.Unlock()

	for _, h := range targets {
		h(body, err)
	}
	return len(targets)
}

// Calls returns the recorded calls in order.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

// CallsTo returns the recorded calls of method.
func (t *Transport) CallsTo(method string) []Call {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Call
	for _, c := range t.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Events returns calls and subscriptions in the order they happened,
// formatted as "call <method>" and "watch <iface.member>".
func (t *Transport) Events() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

// ActiveWatches returns the number of subscriptions not yet cancelled.
func (t *Transport) ActiveWatches() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, w := range t.watches {
		if w.active {
			n++
		}
	}
	return n
}
