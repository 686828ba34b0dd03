// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zhangjinde/go-fdo-quic/config"
	"github.com/zhangjinde/go-fdo-quic/internal/conn"
)

var serverAddress string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Accept one QUIC connection and echo its first stream back",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serverAddress != "" {
			cfg.Transport.ListenAddress = serverAddress
		}
		return runServer(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVar(&serverAddress, "address", "", "UDP address to listen on (overrides config)")
}

// demoLocalServerCID is a fixed local connection ID for this
// single-connection demo; a real deployment would generate one per
// accepted connection.
var demoLocalServerCID = []byte{0xfd, 0x51, 0x52, 0x53}

func runServer(cfg *config.EndpointConfig) error {
	pc, err := net.ListenPacket("udp", cfg.Transport.ListenAddress)
	if err != nil {
		return fmt.Errorf("quicdemo server: listen: %w", err)
	}
	defer func() { _ = pc.Close() }()

	sessionID := uuid.NewString()
	slog.Info("quicdemo server listening", "addr", pc.LocalAddr().String(), "session", sessionID)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := conn.NewServer(demoLocalServerCID, cfg.Transport.TransportParameters(), nil, newUDPPort(pc, nil))

	if err := driveHandshake(server, cfg.Transport.HandshakeTimeout(), stop); err != nil {
		return fmt.Errorf("quicdemo server: %w", err)
	}
	slog.Info("handshake complete", "session", sessionID, "suite", server.NegotiatedSuite())

	return echoLoop(server, cfg.Transport.IdleTimeout(), stop)
}

// driveHandshake pumps Act until the connection reaches HandshakeDone, a
// stop signal arrives, or deadline elapses.
func driveHandshake(c *conn.Connection, timeout time.Duration, stop <-chan os.Signal) error {
	deadline := time.Now().Add(timeout)
	for c.State() != conn.HandshakeDone {
		select {
		case <-stop:
			return fmt.Errorf("interrupted")
		default:
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("handshake timed out")
		}
		if _, err := c.Act(); err != nil {
			return err
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// echoLoop reads the first bidi stream (id 0) opened by the client and
// writes back every chunk it receives, ending once the client's FIN has
// been echoed too.
func echoLoop(c *conn.Connection, idleTimeout time.Duration, stop <-chan os.Signal) error {
	const streamID = 0
	deadline := time.Now().Add(idleTimeout)
	finSent := false
	var echoed []byte
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		if time.Now().After(deadline) {
			slog.Info("quicdemo server: idle timeout, shutting down")
			return nil
		}
		if _, err := c.Act(); err != nil {
			return err
		}
		data, atEOF, err := c.ReadStream(streamID)
		if err != nil {
			// stream not opened by the client yet; keep polling.
			time.Sleep(time.Millisecond)
			continue
		}
		if len(data) > 0 || atEOF {
			slog.Info("quicdemo server: echoing", "bytes", len(data))
			echoed = append(echoed, data...)
			c.WriteStream(streamID, echoed, atEOF)
			deadline = time.Now().Add(idleTimeout)
		}
		if atEOF && !finSent {
			finSent = true
			// give the final fragment a few more rounds to flush before
			// tearing the port down.
			for i := 0; i < 20; i++ {
				if _, err := c.Act(); err != nil {
					return err
				}
			}
			return nil
		}
		time.Sleep(time.Millisecond)
	}
}
