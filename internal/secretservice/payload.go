// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secretservice

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/godbus/dbus/v5"
	sigilerr "github.com/sigil-dev/ssitem/pkg/errors"
)

// Item property names understood by Collection.CreateItem.
const (
	LabelProperty      = "org.freedesktop.Secret.Item.Label"
	AttributesProperty = "org.freedesktop.Secret.Item.Attributes"
)

// SecretSignature is the wire signature of a Secret:
// session path, parameters, value, content type.
const SecretSignature = "(oayays)"

var attributesSignature = dbus.ParseSignatureMust("a{ss}")

// Secret is the structure the service exchanges secrets in. All four
// fields are always marshalled, in this order.
type Secret struct {
	Session     dbus.ObjectPath
	Parameters  []byte
	Value       []byte
	ContentType string
}

// NewPlainSecret builds a Secret for a session opened with the plain
// algorithm, which carries no encoding parameters.
func NewPlainSecret(session dbus.ObjectPath, value []byte, contentType string) Secret {
	return Secret{
		Session:     session,
		Parameters:  []byte{},
		Value:       value,
		ContentType: contentType,
	}
}

// Validate reports whether s can be sent to the service.
func (s Secret) Validate() error {
	if err := ValidateRecord(s); err != nil {
		return err
	}
	if !RefOf(s.Session).Valid {
		return sigilerr.New(sigilerr.CodeRecordInvalid, "secret record has no session",
			sigilerr.FieldPath(string(s.Session)))
	}
	if s.ContentType == "" {
		return sigilerr.New(sigilerr.CodeRecordInvalid, "secret record has no content type",
			sigilerr.Field("content_type", s.ContentType))
	}
	return nil
}

// LogValue keeps the secret value out of logs.
func (s Secret) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("session", string(s.Session)),
		slog.Int("parameters", len(s.Parameters)),
		slog.Int("value_bytes", len(s.Value)),
		slog.String("content_type", s.ContentType),
	)
}

// ValidateRecord checks that v marshals to the Secret wire signature. A
// record type missing any of the four fields is rejected here instead of
// being truncated on the wire.
func ValidateRecord(v any) (err error) {
	if v == nil {
		return sigilerr.New(sigilerr.CodeRecordInvalid, "secret record is nil")
	}

	defer func() {
		if r := recover(); r != nil {
			err = sigilerr.Errorf(sigilerr.CodeRecordInvalid, "secret record %T cannot be marshalled: %v", v, r)
		}
	}()

	sig := dbus.SignatureOf(v).String()
	if sig != SecretSignature {
		return sigilerr.New(sigilerr.CodeRecordInvalid,
			fmt.Sprintf("secret record has signature %s, want %s", sig, SecretSignature),
			sigilerr.Field("signature", sig),
		)
	}
	return nil
}

// ItemProperties builds the properties argument of CreateItem: the label
// as an "s" variant and the lookup attributes as an "a{ss}" variant. A nil
// or empty attrs map yields an empty array.
func ItemProperties(label string, attrs map[string]string) map[string]dbus.Variant {
	entries := make(map[string]string, len(attrs))
	maps.Copy(entries, attrs)

	return map[string]dbus.Variant{
		LabelProperty:      dbus.MakeVariant(label),
		AttributesProperty: dbus.MakeVariantWithSignature(entries, attributesSignature),
	}
}

// Attributes decodes the lookup attributes from item properties.
func Attributes(props map[string]dbus.Variant) (map[string]string, error) {
	v, ok := props[AttributesProperty]
	if !ok {
		return nil, sigilerr.New(sigilerr.CodeServiceRequestInvalid, "item properties have no attributes")
	}
	if sig := v.Signature().String(); sig != attributesSignature.String() {
		return nil, sigilerr.New(sigilerr.CodeServiceRequestInvalid,
			fmt.Sprintf("item attributes have signature %s, want %s", sig, attributesSignature),
			sigilerr.Field("signature", sig),
		)
	}

	var attrs map[string]string
	if err := dbus.Store([]any{v}, &attrs); err != nil {
		return nil, sigilerr.Wrap(err, sigilerr.CodeServiceRequestInvalid, "decoding item attributes")
	}
	return attrs, nil
}
