// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/assets/lib/config"
	"github.com/bureau-foundation/assets/lib/service"
	"github.com/bureau-foundation/assets/lib/version"
)

func main() {
	if err := root().Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func root() *Command {
	return &Command{
		Name:    "bureau-asset",
		Summary: "Upload, inspect and fetch assets in a bureau-asset-service store.",
		Subcommands: []*Command{
			uploadCommand(),
			downloadCommand(),
			listCommand(),
			uploadsCommand(),
			deleteCommand(),
			trustCommand(),
			statusCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Println(version.Full())
					return nil
				},
			},
		},
	}
}

// connection holds the flags that locate the service socket.
type connection struct {
	socket     string
	configPath string
}

// AddFlags registers --socket and --config on flagSet.
func (c *connection) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.socket, "socket", "", "service socket (default: paths.socket from the configuration)")
	flagSet.StringVar(&c.configPath, "config", "", "configuration file (default: $"+config.EnvVar+")")
}

// socketPath resolves the socket from the flags, the configuration
// file or the built-in default, in that order.
func (c *connection) socketPath() (string, error) {
	if c.socket != "" {
		return c.socket, nil
	}
	path := c.configPath
	if path == "" {
		path = os.Getenv(config.EnvVar)
	}
	if path == "" {
		return config.Default().Paths.Socket, nil
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return "", fmt.Errorf("loading configuration: %w", err)
	}
	return cfg.Paths.Socket, nil
}

// Client returns a service client for the resolved socket.
func (c *connection) Client() (*service.Client, error) {
	socketPath, err := c.socketPath()
	if err != nil {
		return nil, err
	}
	return service.NewClient(socketPath), nil
}
