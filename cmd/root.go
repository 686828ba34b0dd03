// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"hermannm.dev/devlog"

	"github.com/zhangjinde/go-fdo-quic/config"
)

var (
	configFilePath string
	debug          bool
	logLevel       slog.LevelVar
)

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "quicdemo",
	Short: "Minimal QUIC v1 + TLS 1.3 client/server demo",
	Long: `A loopback-over-UDP demonstration of this module's embedded QUIC v1
transport and TLS 1.3 handshake.

quicdemo server listens on a UDP address, completes one handshake, and
echoes back whatever bytes the client streams to it. quicdemo client
connects to a server, completes the handshake, sends one message on a
new stream, and prints whatever comes back.
`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{
		Level: &logLevel,
	})))

	rootCmd.PersistentFlags().StringVar(&configFilePath, "config", "", "Pathname of the configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Print debug contents")
}

// loadConfig reads the endpoint configuration from --config (if given),
// applying --debug to the process-wide log level.
func loadConfig() (*config.EndpointConfig, error) {
	if debug {
		logLevel.Set(slog.LevelDebug)
	}
	return config.Load(configFilePath)
}
