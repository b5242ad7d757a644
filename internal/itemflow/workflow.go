// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package itemflow runs the item creation workflow against a Secret
// Service: open a session, resolve a collection alias, unlock the
// collection and create an item in it.
package itemflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/sigil-dev/ssitem/internal/secretservice"
	sigilerr "github.com/sigil-dev/ssitem/pkg/errors"
)

// Service is the subset of *secretservice.Client the workflow needs.
type Service interface {
	OpenSession(ctx context.Context, algorithm string, input dbus.Variant) (dbus.Variant, dbus.ObjectPath, error)
	CloseSession(ctx context.Context, session dbus.ObjectPath) error
	ReadAlias(ctx context.Context, name string) (secretservice.Ref, error)
	SetLocked(ctx context.Context, locked bool, objects ...dbus.ObjectPath) ([]dbus.ObjectPath, error)
	CreateItem(ctx context.Context, collection dbus.ObjectPath, props map[string]dbus.Variant, secret secretservice.Secret, replace bool) (secretservice.Ref, secretservice.Ref, error)
}

var _ Service = (*secretservice.Client)(nil)

// Options controls one workflow run.
type Options struct {
	Algorithm   string
	Alias       string
	Label       string
	Attributes  map[string]string
	Secret      string
	ContentType string
	Replace     bool

	// Reveal prints the secret value in the progress output. When false
	// the value is masked.
	Reveal bool

	Logger *slog.Logger
}

// DefaultOptions returns the options of a plain run against the default
// collection.
func DefaultOptions() Options {
	return Options{
		Algorithm:   secretservice.AlgorithmPlain,
		Alias:       secretservice.DefaultAlias,
		Label:       "label",
		Attributes:  map[string]string{"test-lookup-attribute": "value"},
		Secret:      "secret value",
		ContentType: "text/plain; charset=utf-8",
		Replace:     true,
		Reveal:      true,
	}
}

// Result describes what a run did.
type Result struct {
	RunID      string
	Session    secretservice.Ref
	Collection secretservice.Ref
	Item       secretservice.Ref
	Prompt     secretservice.Ref

	// NoCollection is set when the alias resolves to no collection. The
	// run then stops without unlocking or creating anything.
	NoCollection bool
}

const maskedSecret = "********"

// Run executes the workflow, printing one progress line per step to out.
// An alias with no collection is reported on out and is not an error.
func Run(ctx context.Context, svc Service, opts Options, out io.Writer) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	log := logger(opts).With("run_id", res.RunID)

	fmt.Fprintln(out, "Opening D-Bus secret service session")
	_, session, err := svc.OpenSession(ctx, opts.Algorithm, dbus.MakeVariant(""))
	if err != nil {
		return res, err
	}
	res.Session = secretservice.RefOf(session)
	fmt.Fprintf(out, "Opened new session at path %s\n", session)
	log.DebugContext(ctx, "session opened", "session", session)

	defer func() {
		closeCtx := context.WithoutCancel(ctx)
		if err := svc.CloseSession(closeCtx, session); err != nil {
			log.WarnContext(closeCtx, "failed to close session", "session", session, "error", err)
		}
	}()

	collection, err := resolveCollection(ctx, svc, opts.Alias, out)
	if err != nil {
		return res, err
	}
	if !collection.Valid {
		res.NoCollection = true
		log.InfoContext(ctx, "alias has no collection", "alias", opts.Alias)
		return res, nil
	}
	res.Collection = collection

	fmt.Fprintln(out, "Unlocking collection")
	if _, err := svc.SetLocked(ctx, false, collection.Path); err != nil {
		return res, err
	}

	props := secretservice.ItemProperties(opts.Label, opts.Attributes)
	secret := secretservice.NewPlainSecret(session, []byte(opts.Secret), opts.ContentType)

	shown := maskedSecret
	if opts.Reveal {
		shown = opts.Secret
	}
	fmt.Fprintf(out, "Creating new item with secret value '%s'\n", shown)
	log.DebugContext(ctx, "creating item", "collection", collection.Path, "secret", secret, "replace", opts.Replace)

	item, prompt, err := svc.CreateItem(ctx, collection.Path, props, secret, opts.Replace)
	if err != nil {
		return res, err
	}
	res.Item, res.Prompt = item, prompt
	fmt.Fprintf(out, "Created new item at path %s\n", item)
	log.InfoContext(ctx, "item created", "item", item.String(), "collection", collection.Path)

	return res, nil
}

// LockCollection resolves alias and locks or unlocks the collection it
// names. The returned Ref is invalid when the alias has no collection.
func LockCollection(ctx context.Context, svc Service, alias string, locked bool, out io.Writer) (secretservice.Ref, error) {
	collection, err := resolveCollection(ctx, svc, alias, out)
	if err != nil || !collection.Valid {
		return collection, err
	}

	verb, state := "Unlocking", "unlocked"
	if locked {
		verb, state = "Locking", "locked"
	}
	fmt.Fprintf(out, "%s collection\n", verb)

	affected, err := svc.SetLocked(ctx, locked, collection.Path)
	if err != nil {
		return collection, sigilerr.With(err, sigilerr.FieldAlias(alias))
	}
	fmt.Fprintf(out, "Collection %s is %s (%d objects changed)\n", collection, state, len(affected))
	return collection, nil
}

func resolveCollection(ctx context.Context, svc Service, alias string, out io.Writer) (secretservice.Ref, error) {
	fmt.Fprintf(out, "Retrieving %s collection\n", alias)
	collection, err := svc.ReadAlias(ctx, alias)
	if err != nil {
		return secretservice.Ref{}, err
	}
	if !collection.Valid {
		fmt.Fprintf(out, "Could not retrieve %s collection\n", alias)
		return collection, nil
	}
	fmt.Fprintf(out, "Retrieved %s collection at %s\n", alias, collection)
	return collection, nil
}

func logger(opts Options) *slog.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return slog.Default()
}
