// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/sigil-dev/ssitem/internal/secretservice"
	"github.com/sigil-dev/ssitem/internal/secretservice/sstest"
	sigilerr "github.com/sigil-dev/ssitem/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createdSecret(t *testing.T, ft *sstest.Transport) (map[string]string, secretservice.Secret) {
	t.Helper()

	calls := ft.CallsTo(sstest.CreateItem)
	require.Len(t, calls, 1)

	attrs, err := secretservice.Attributes(calls[0].Args[0].(map[string]dbus.Variant))
	require.NoError(t, err)
	secret, ok := calls[0].Args[1].(secretservice.Secret)
	require.True(t, ok)
	return attrs, secret
}

func TestCreate_Defaults(t *testing.T) {
	ft := sstest.NewService()
	env := setupCLI(t, ft)

	out, _, err := execute("", "create", "--no-wait")
	require.NoError(t, err)

	assert.Equal(t, ""+
		"Opening D-Bus secret service session\n"+
		"Opened new session at path /org/freedesktop/secrets/session/s1\n"+
		"Retrieving default collection\n"+
		"Retrieved default collection at /org/freedesktop/secrets/collection/login\n"+
		"Unlocking collection\n"+
		"Creating new item with secret value 'secret value'\n"+
		"Created new item at path /org/freedesktop/secrets/collection/login/1\n",
		out)

	attrs, secret := createdSecret(t, ft)
	assert.Equal(t, map[string]string{"test-lookup-attribute": "value"}, attrs)
	assert.Equal(t, []byte("secret value"), secret.Value)
	assert.Equal(t, "text/plain; charset=utf-8", secret.ContentType)
	assert.Equal(t, 1, env.bus.closed)
}

func TestCreate_WaitsForEnter(t *testing.T) {
	setupCLI(t, sstest.NewService())

	out, _, err := execute("\n", "create")
	require.NoError(t, err)
	assert.Contains(t, out, "Created new item at path")
	assert.Contains(t, out, "Press Enter to exit\n")
}

func TestCreate_NoCollection(t *testing.T) {
	ft := sstest.NewService()
	ft.Reply(sstest.ReadAlias, secretservice.NoObject)
	setupCLI(t, ft)

	out, _, err := execute("", "create")
	require.NoError(t, err)
	assert.Contains(t, out, "Could not retrieve default collection\n")
	assert.NotContains(t, out, "Press Enter")
	assert.Empty(t, ft.CallsTo(sstest.Unlock))
	assert.Empty(t, ft.CallsTo(sstest.CreateItem))
}

func TestCreate_Flags(t *testing.T) {
	ft := sstest.NewService()
	setupCLI(t, ft)

	out, _, err := execute("", "create", "--no-wait",
		"--alias", "login",
		"--label", "db password",
		"--secret", "hunter2",
		"--content-type", "application/octet-stream",
		"--attr", "service=postgres",
		"--attr", "user=app",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Retrieving login collection\n")
	assert.Equal(t, []any{"login"}, ft.CallsTo(sstest.ReadAlias)[0].Args)

	attrs, secret := createdSecret(t, ft)
	assert.Equal(t, map[string]string{"service": "postgres", "user": "app"}, attrs)
	assert.Equal(t, []byte("hunter2"), secret.Value)
	assert.Equal(t, "application/octet-stream", secret.ContentType)

	props := ft.CallsTo(sstest.CreateItem)[0].Args[0].(map[string]dbus.Variant)
	assert.Equal(t, "db password", props[secretservice.LabelProperty].Value())
}

func TestCreate_EnvOverride(t *testing.T) {
	ft := sstest.NewService()
	setupCLI(t, ft)
	t.Setenv("SSITEM_ITEM_LABEL", "from env")
	t.Setenv("SSITEM_PROMPT_WINDOW_ID", "x11:0x2a00004")
	ft.Reply(sstest.Unlock, []dbus.ObjectPath{}, sstest.PromptPath)
	ft.CompleteOnPrompt(false, dbus.MakeVariant([]dbus.ObjectPath{sstest.CollectionPath}))

	_, _, err := execute("", "create", "--no-wait")
	require.NoError(t, err)

	props := ft.CallsTo(sstest.CreateItem)[0].Args[0].(map[string]dbus.Variant)
	assert.Equal(t, "from env", props[secretservice.LabelProperty].Value())
	assert.Equal(t, []any{"x11:0x2a00004"}, ft.CallsTo(sstest.PromptMethod)[0].Args)
}

func TestCreate_SecretReference(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		setup  func(t *testing.T, env *cliEnv)
	}{
		{
			name:   "keyring",
			secret: "keyring://ssitem/db-password",
			setup: func(t *testing.T, env *cliEnv) {
				require.NoError(t, env.store.Store("ssitem", "db-password", "hunter2"))
			},
		},
		{
			name:   "env",
			secret: "env://SSITEM_TEST_DB_PASSWORD",
			setup: func(t *testing.T, _ *cliEnv) {
				t.Setenv("SSITEM_TEST_DB_PASSWORD", "hunter2")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := sstest.NewService()
			env := setupCLI(t, ft)
			tt.setup(t, env)

			out, _, err := execute("", "create", "--no-wait", "--secret", tt.secret)
			require.NoError(t, err)
			assert.NotContains(t, out, "hunter2")
			assert.Contains(t, out, "Creating new item with secret value '********'")

			_, secret := createdSecret(t, ft)
			assert.Equal(t, []byte("hunter2"), secret.Value)
		})
	}
}

func TestCreate_UnresolvableSecret(t *testing.T) {
	ft := sstest.NewService()
	setupCLI(t, ft)

	_, _, err := execute("", "create", "--no-wait", "--secret", "keyring://ssitem/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item.secret")
	assert.Empty(t, ft.Calls(), "nothing is sent when the secret cannot be resolved")
}

func TestCreate_InvalidAttribute(t *testing.T) {
	ft := sstest.NewService()
	setupCLI(t, ft)

	_, _, err := execute("", "create", "--attr", "no-equals-sign")
	require.Error(t, err)
	assert.Equal(t, 2, sigilerr.ExitCode(err))
	assert.Empty(t, ft.Calls())
}

func TestCreate_InvalidConfig(t *testing.T) {
	ft := sstest.NewService()
	setupCLI(t, ft)
	t.Setenv("SSITEM_SESSION_ALGORITHM", "dh-ietf1024-sha256-aes128-cbc-pkcs7")

	_, _, err := execute("", "create", "--no-wait")
	require.Error(t, err)
	assert.True(t, sigilerr.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "session.algorithm")
	assert.Empty(t, ft.Calls())
}

func TestCreate_PromptDismissed(t *testing.T) {
	tests := []struct {
		name          string
		failOnDismiss string
		wantExit      int
		wantCreate    int
	}{
		{"continues by default", "", 0, 1},
		{"fails when configured", "true", 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := sstest.NewService()
			ft.Reply(sstest.Unlock, []dbus.ObjectPath{}, sstest.PromptPath)
			ft.CompleteOnPrompt(true, dbus.MakeVariant(""))
			env := setupCLI(t, ft)
			if tt.failOnDismiss != "" {
				t.Setenv("SSITEM_PROMPT_FAIL_ON_DISMISS", tt.failOnDismiss)
			}

			_, _, err := execute("", "create", "--no-wait")
			assert.Equal(t, tt.wantExit, sigilerr.ExitCode(err))
			assert.Len(t, ft.CallsTo(sstest.CreateItem), tt.wantCreate)
			assert.Equal(t, 1, env.bus.closed)
		})
	}
}

func TestCreate_RemoteFailure(t *testing.T) {
	ft := sstest.NewService()
	ft.Fail(sstest.CreateItem, dbus.Error{Name: "org.freedesktop.Secret.Error.IsLocked", Body: []any{"collection is locked"}})
	setupCLI(t, ft)

	_, _, err := execute("", "create", "--no-wait")
	require.Error(t, err)
	assert.Equal(t, 1, sigilerr.ExitCode(err))
	assert.Contains(t, err.Error(), "collection is locked")
}

func TestParseAttributes(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{"single", []string{"a=1"}, map[string]string{"a": "1"}, false},
		{"empty value", []string{"a="}, map[string]string{"a": ""}, false},
		{"equals in value", []string{"url=a=b"}, map[string]string{"url": "a=b"}, false},
		{"last wins", []string{"a=1", "a=2"}, map[string]string{"a": "2"}, false},
		{"no equals", []string{"a"}, nil, true},
		{"empty name", []string{"=1"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAttributes(tt.pairs)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, sigilerr.HasCode(err, sigilerr.CodeCLIInputInvalid))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
