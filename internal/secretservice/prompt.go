// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secretservice

import (
	"context"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	sigilerr "github.com/sigil-dev/ssitem/pkg/errors"
)

// dismissTimeout bounds the best-effort Dismiss sent after a wait ends
// without a completion.
const dismissTimeout = 5 * time.Second

// PromptResult is the payload of a prompt's Completed signal.
type PromptResult struct {
	Dismissed bool
	Result    dbus.Variant
}

// completion is a set-once cell shared by the Completed handler and the
// goroutine waiting in Prompt. Only the first trySet is recorded.
type completion struct {
	once   sync.Once
	done   chan struct{}
	result PromptResult
	err    error
}

func newCompletion() *completion {
	return &completion{done: make(chan struct{})}
}

// trySet records the outcome unless one is already recorded. It reports
// whether this call recorded it.
func (c *completion) trySet(res PromptResult, err error) bool {
	set := false
	c.once.Do(func() {
		c.result, c.err = res, err
		set = true
		close(c.done)
	})
	return set
}

// outcome returns the recorded outcome. It must only be called after done
// is closed.
func (c *completion) outcome() (PromptResult, error) {
	<-c.done
	return c.result, c.err
}

// Prompt runs the prompt at path: it subscribes to Completed, asks the
// service to show the prompt, and waits for the first completion. A
// failure reported by the subscription is returned as the prompt's error.
//
// When ctx ends or the client's prompt timeout passes first, the prompt is
// dismissed and a timeout error is returned.
func (c *Client) Prompt(ctx context.Context, path dbus.ObjectPath) (PromptResult, error) {
	if !RefOf(path).Valid {
		return PromptResult{}, sigilerr.New(sigilerr.CodeServiceRequestInvalid, "no prompt to run",
			sigilerr.FieldPath(string(path)))
	}

	log := c.logger.With("prompt", path)
	cell := newCompletion()

	cancel, err := c.transport.Watch(ctx, path, PromptInterface, "Completed", func(body []any, err error) {
		if err != nil {
			if !cell.trySet(PromptResult{}, sigilerr.Wrap(err, sigilerr.CodePromptFailure, "waiting for prompt completion",
				sigilerr.FieldPath(string(path)))) {
				log.Debug("ignoring prompt failure after completion", "error", err)
			}
			return
		}

		var res PromptResult
		if err := dbus.Store(body, &res.Dismissed, &res.Result); err != nil {
			cell.trySet(PromptResult{}, sigilerr.Wrap(err, sigilerr.CodePromptFailure, "decoding prompt completion",
				sigilerr.FieldPath(string(path))))
			return
		}
		if !cell.trySet(res, nil) {
			log.Debug("ignoring repeated prompt completion")
		}
	})
	if err != nil {
		return PromptResult{}, sigilerr.Wrap(err, sigilerr.CodeBusSignalFailure, "subscribing to prompt completion",
			sigilerr.FieldPath(string(path)))
	}
	defer cancel()
	log.DebugContext(ctx, "prompt subscribed")

	if err := c.call(ctx, sigilerr.CodePromptFailure, path, PromptInterface+".Prompt", []any{c.windowID}); err != nil {
		return PromptResult{}, err
	}

	waitCtx := ctx
	if c.promptTimeout > 0 {
		var stop context.CancelFunc
		waitCtx, stop = context.WithTimeout(ctx, c.promptTimeout)
		defer stop()
	}

	select {
	case <-cell.done:
	case <-waitCtx.Done():
		expired := sigilerr.Wrap(waitCtx.Err(), sigilerr.CodePromptTimeout, "waiting for prompt completion",
			sigilerr.FieldPath(string(path)))
		if cell.trySet(PromptResult{}, expired) {
			c.dismiss(ctx, path)
		}
	}

	res, err := cell.outcome()
	if err != nil {
		return PromptResult{}, err
	}
	log.DebugContext(ctx, "prompt completed", "dismissed", res.Dismissed)
	return res, nil
}

// storeResult decodes a prompt result variant into dest.
func storeResult(v dbus.Variant, dest any) error {
	if v.Value() == nil {
		return sigilerr.New(sigilerr.CodePromptFailure, "prompt result is empty")
	}
	return dbus.Store([]any{v}, dest)
}

// dismiss asks the service to close a prompt nobody is waiting for.
func (c *Client) dismiss(ctx context.Context, path dbus.ObjectPath) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dismissTimeout)
	defer cancel()

	if err := c.call(ctx, sigilerr.CodePromptFailure, path, PromptInterface+".Dismiss", nil); err != nil {
		c.logger.WarnContext(ctx, "failed to dismiss prompt", "prompt", path, "error", err)
	}
}
