// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secretservice

import (
	"context"

	"github.com/godbus/dbus/v5"
	sigilerr "github.com/sigil-dev/ssitem/pkg/errors"
)

// Unlock unlocks objects, running the service's prompt if it asks for one.
func (c *Client) Unlock(ctx context.Context, objects ...dbus.ObjectPath) ([]dbus.ObjectPath, error) {
	return c.SetLocked(ctx, false, objects...)
}

// Lock locks objects, running the service's prompt if it asks for one.
func (c *Client) Lock(ctx context.Context, objects ...dbus.ObjectPath) ([]dbus.ObjectPath, error) {
	return c.SetLocked(ctx, true, objects...)
}

// SetLocked moves objects to the requested lock state in one batched call
// and returns the objects whose state changed. If the service answers with
// a prompt, SetLocked returns only after the prompt completes.
//
// A dismissed prompt is a normal completion: SetLocked logs it and returns
// the objects changed so far, leaving later calls to fail against objects
// still locked. WithFailOnDismiss turns dismissal into an error.
func (c *Client) SetLocked(ctx context.Context, locked bool, objects ...dbus.ObjectPath) ([]dbus.ObjectPath, error) {
	if len(objects) == 0 {
		return nil, sigilerr.New(sigilerr.CodeServiceRequestInvalid, "no objects to lock or unlock")
	}

	method := ServiceInterface + ".Unlock"
	if locked {
		method = ServiceInterface + ".Lock"
	}

	var (
		affected   []dbus.ObjectPath
		promptPath dbus.ObjectPath
	)
	if err := c.call(ctx, sigilerr.CodeLockFailure, c.servicePath, method, []any{objects}, &affected, &promptPath); err != nil {
		return nil, err
	}

	prompt := RefOf(promptPath)
	if !prompt.Valid {
		return affected, nil
	}

	res, err := c.Prompt(ctx, prompt.Path)
	if err != nil {
		return nil, err
	}
	if res.Dismissed {
		c.logger.WarnContext(ctx, "lock state prompt dismissed", "prompt", prompt.Path, "locked", locked)
		if !c.failOnDismiss {
			return affected, nil
		}
		return nil, sigilerr.New(sigilerr.CodePromptDismissed, "lock state prompt was dismissed",
			sigilerr.FieldPath(string(prompt.Path)),
			sigilerr.FieldMethod(method),
		)
	}

	var prompted []dbus.ObjectPath
	if err := storeResult(res.Result, &prompted); err != nil {
		c.logger.DebugContext(ctx, "prompt result is not an object list", "prompt", prompt.Path, "error", err)
		return affected, nil
	}
	return append(affected, prompted...), nil
}
