// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secretservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
	sigilerr "github.com/sigil-dev/ssitem/pkg/errors"
)

// Client issues Secret Service calls over a Transport. A Client holds no
// per-call state and may be shared.
type Client struct {
	transport     Transport
	servicePath   dbus.ObjectPath
	windowID      string
	promptTimeout time.Duration
	failOnDismiss bool
	logger        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithServicePath overrides the object path of the service.
func WithServicePath(path dbus.ObjectPath) Option {
	return func(c *Client) {
		c.servicePath = path
	}
}

// WithWindowID sets the platform window handle passed to Prompt.Prompt.
func WithWindowID(id string) Option {
	return func(c *Client) {
		c.windowID = id
	}
}

// WithPromptTimeout bounds how long Prompt waits for completion. Zero
// waits until the context ends.
func WithPromptTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.promptTimeout = d
	}
}

// WithFailOnDismiss makes Lock, Unlock and SetLocked return a
// secretservice.prompt.dismissed error when the user dismisses their prompt.
func WithFailOnDismiss(fail bool) Option {
	return func(c *Client) {
		c.failOnDismiss = fail
	}
}

// WithLogger sets the logger used for call tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient returns a Client using t.
func NewClient(t Transport, opts ...Option) *Client {
	c := &Client{
		transport:   t,
		servicePath: ServicePath,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenSession negotiates a session using algorithm and returns the
// algorithm output and the session path.
func (c *Client) OpenSession(ctx context.Context, algorithm string, input dbus.Variant) (dbus.Variant, dbus.ObjectPath, error) {
	var (
		output  dbus.Variant
		session dbus.ObjectPath
	)
	err := c.call(ctx, sigilerr.CodeSessionOpenFailure, c.servicePath, ServiceInterface+".OpenSession",
		[]any{algorithm, input}, &output, &session)
	if err != nil {
		return dbus.Variant{}, "", err
	}
	if !RefOf(session).Valid {
		return dbus.Variant{}, "", sigilerr.New(sigilerr.CodeSessionOpenFailure, "service returned no session",
			sigilerr.Field("algorithm", algorithm))
	}

	c.logger.DebugContext(ctx, "opened session", "session", session, "algorithm", algorithm)
	return output, session, nil
}

// CloseSession closes a session opened with OpenSession.
func (c *Client) CloseSession(ctx context.Context, session dbus.ObjectPath) error {
	return c.call(ctx, sigilerr.CodeBusCallFailure, session, SessionInterface+".Close", nil)
}

// ReadAlias resolves a collection alias. The returned Ref is invalid when
// no collection carries the alias.
func (c *Client) ReadAlias(ctx context.Context, name string) (Ref, error) {
	var path dbus.ObjectPath
	err := c.call(ctx, sigilerr.CodeAliasReadFailure, c.servicePath, ServiceInterface+".ReadAlias",
		[]any{name}, &path)
	if err != nil {
		return Ref{}, sigilerr.With(err, sigilerr.FieldAlias(name))
	}
	return RefOf(path), nil
}

// CreateItem creates an item in collection. The secret is validated before
// anything is sent. When the service answers with a prompt, the prompt is
// completed and the item path is taken from its result.
func (c *Client) CreateItem(ctx context.Context, collection dbus.ObjectPath, props map[string]dbus.Variant, secret Secret, replace bool) (item Ref, prompt Ref, err error) {
	if err := secret.Validate(); err != nil {
		return Ref{}, Ref{}, err
	}
	if !RefOf(collection).Valid {
		return Ref{}, Ref{}, sigilerr.New(sigilerr.CodeServiceRequestInvalid, "no collection to create the item in",
			sigilerr.FieldPath(string(collection)))
	}

	var itemPath, promptPath dbus.ObjectPath
	err = c.call(ctx, sigilerr.CodeItemCreateFailure, collection, CollectionInterface+".CreateItem",
		[]any{props, secret, replace}, &itemPath, &promptPath)
	if err != nil {
		return Ref{}, Ref{}, err
	}

	item, prompt = RefOf(itemPath), RefOf(promptPath)
	if !prompt.Valid {
		return item, prompt, nil
	}

	res, err := c.Prompt(ctx, prompt.Path)
	if err != nil {
		return Ref{}, prompt, err
	}
	if res.Dismissed {
		return Ref{}, prompt, sigilerr.New(sigilerr.CodePromptDismissed, "item creation prompt was dismissed",
			sigilerr.FieldPath(string(prompt.Path)))
	}

	var created dbus.ObjectPath
	if err := storeResult(res.Result, &created); err != nil {
		return Ref{}, prompt, sigilerr.Wrap(err, sigilerr.CodePromptFailure, "decoding created item path",
			sigilerr.FieldPath(string(prompt.Path)))
	}
	return RefOf(created), prompt, nil
}

// SearchItems returns the items whose attributes match attrs, split into
// unlocked and locked ones.
func (c *Client) SearchItems(ctx context.Context, attrs map[string]string) (unlocked, locked []dbus.ObjectPath, err error) {
	if attrs == nil {
		attrs = map[string]string{}
	}
	err = c.call(ctx, sigilerr.CodeItemSearchFailure, c.servicePath, ServiceInterface+".SearchItems",
		[]any{attrs}, &unlocked, &locked)
	if err != nil {
		return nil, nil, err
	}
	return unlocked, locked, nil
}

// call sends one request and wraps a failure with code. The original error
// stays reachable through errors.Is and errors.As.
func (c *Client) call(ctx context.Context, code sigilerr.Code, path dbus.ObjectPath, method string, args []any, reply ...any) error {
	c.logger.DebugContext(ctx, "calling secret service", "method", method, "path", path)

	if err := c.transport.Call(ctx, path, method, args, reply...); err != nil {
		return sigilerr.Wrap(err, code, "calling "+method,
			sigilerr.FieldMethod(method),
			sigilerr.FieldPath(string(path)),
		)
	}
	return nil
}
