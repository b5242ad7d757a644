// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/sigil-dev/ssitem/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"
)

// doctorTimeout bounds the bus round trips of the service check.
const doctorTimeout = 5 * time.Second

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the binary, the session bus socket, whether a Secret Service is registered, and the config file.",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	address := viper.GetString("bus.address")

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Bus Socket", func() string { return checkBusSocket(address) }},
		{"Secret Service", func() string { return checkService(cmd.Context()) }},
		{"Config", checkConfig},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("ssitem %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkBusSocket(address string) string {
	if address == "" {
		address = os.Getenv("DBUS_SESSION_BUS_ADDRESS")
	}
	if address == "" {
		return "DBUS_SESSION_BUS_ADDRESS is not set"
	}

	path, ok := unixSocketPath(address)
	if !ok {
		return fmt.Sprintf("%s (not a unix path address, not checked)", address)
	}

	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fmt.Sprintf("unable to check %s: %s", path, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFSOCK {
		return fmt.Sprintf("%s is not a socket", path)
	}
	if err := unix.Access(path, unix.W_OK); err != nil {
		return fmt.Sprintf("%s is not writable: %s", path, err)
	}
	return fmt.Sprintf("socket at %s", path)
}

// unixSocketPath returns the path of the first unix:path= entry of a D-Bus
// address list.
func unixSocketPath(address string) (string, bool) {
	for entry := range strings.SplitSeq(address, ";") {
		params, ok := strings.CutPrefix(entry, "unix:")
		if !ok {
			continue
		}
		for kv := range strings.SplitSeq(params, ",") {
			if path, ok := strings.CutPrefix(kv, "path="); ok && path != "" {
				return path, true
			}
		}
	}
	return "", false
}

func checkService(ctx context.Context) string {
	cfg, err := loadConfig(false)
	if err != nil {
		return fmt.Sprintf("config invalid: %s", err)
	}

	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	bus, err := transportFactory(ctx, cfg)
	if err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	defer closeBus(bus)

	if err := bus.Ping(ctx); err != nil {
		return fmt.Sprintf("not available: %s", err)
	}
	return fmt.Sprintf("%s is available", cfg.Service.Name)
}

func checkConfig() string {
	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		return "using defaults (no config file found)"
	}

	perm, exposed, err := config.ExposedMode(cfgFile)
	if err != nil {
		return fmt.Sprintf("loaded from %s (unable to stat: %s)", cfgFile, err)
	}
	if exposed {
		return fmt.Sprintf("loaded from %s (mode %s, readable by others; use 0600)", cfgFile, perm)
	}
	if _, err := config.Load(cfgFile); err != nil {
		return fmt.Sprintf("loaded from %s (invalid: %s)", cfgFile, err)
	}
	return fmt.Sprintf("loaded from %s", cfgFile)
}
