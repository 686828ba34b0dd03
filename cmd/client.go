// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zhangjinde/go-fdo-quic/config"
	"github.com/zhangjinde/go-fdo-quic/internal/conn"
)

var (
	clientServerAddress string
	clientMessage       string
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Connect to a quicdemo server, send one message, print the echo",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runClient(cfg)
	},
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.Flags().StringVar(&clientServerAddress, "address", "127.0.0.1:4433", "UDP address of the quicdemo server")
	clientCmd.Flags().StringVar(&clientMessage, "message", "hello over quic", "message to send on the first stream")
}

var demoLocalClientCID = []byte{0xfd, 0xc1, 0xc2, 0xc3}

func runClient(cfg *config.EndpointConfig) error {
	raddr, err := net.ResolveUDPAddr("udp", clientServerAddress)
	if err != nil {
		return fmt.Errorf("quicdemo client: resolve %s: %w", clientServerAddress, err)
	}
	pc, err := net.ListenPacket("udp", "0.0.0.0:0")
	if err != nil {
		return fmt.Errorf("quicdemo client: listen: %w", err)
	}
	defer func() { _ = pc.Close() }()

	client, err := conn.NewClient(demoLocalClientCID, cfg.Transport.TransportParameters(), newUDPPort(pc, raddr))
	if err != nil {
		return fmt.Errorf("quicdemo client: %w", err)
	}

	sessionID := uuid.NewString()
	stop := make(chan os.Signal, 1)
	if err := driveHandshake(client, cfg.Transport.HandshakeTimeout(), stop); err != nil {
		return fmt.Errorf("quicdemo client: %w", err)
	}
	slog.Info("handshake complete", "session", sessionID, "suite", client.NegotiatedSuite())

	id := client.OpenBidiStream()
	client.WriteStream(id, []byte(clientMessage), true)

	got, err := readEcho(client, id, cfg.Transport.IdleTimeout())
	if err != nil {
		return fmt.Errorf("quicdemo client: %w", err)
	}

	fmt.Printf("echo: %s\n", got)
	return nil
}

func readEcho(c *conn.Connection, streamID uint64, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	var got []byte
	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for echo")
		}
		if _, err := c.Act(); err != nil {
			return nil, err
		}
		data, atEOF, err := c.ReadStream(streamID)
		if err != nil {
			return nil, err
		}
		got = append(got, data...)
		if atEOF {
			return got, nil
		}
		time.Sleep(time.Millisecond)
	}
}
