// Package config loads this endpoint's configuration: listen address,
// idle/handshake timeouts, datagram sizing, initial flow-control limits,
// and certificate paths. Grounded on the teacher's cmd/config.go
// (FDOServerConfig/HTTPConfig) and cmd/rendezvous.go's viper/config-file
// wiring, generalized from an HTTP server's config to a QUIC endpoint's.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/zhangjinde/go-fdo-quic/internal/tlsengine"
)

// Defaults applied when a key is absent from both flags and the config
// file, mirroring QUIC v1's own suggested minimums (RFC 9000 §18.2).
const (
	DefaultIdleTimeoutSeconds      = 30
	DefaultHandshakeTimeoutSeconds = 10
	DefaultMaxUDPPayloadSize       = 1452
	DefaultInitialMaxData          = 1 << 20
	DefaultInitialMaxStreamData    = 256 * 1024
	DefaultInitialMaxStreamsBidi   = 16
	DefaultInitialMaxStreamsUni    = 16
)

// LogConfig controls the slog handler installed by the cmd entrypoint.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// TLSConfig holds the certificate used by a server endpoint. Left both
// empty, the endpoint runs without a configured certificate (§1 delegates
// certificate/key loading and PKI verification to external collaborators;
// this struct only carries the paths, it never parses them).
type TLSConfig struct {
	CertPath string `mapstructure:"cert"`
	KeyPath  string `mapstructure:"key"`
}

// UseTLS reports whether both a certificate and key path are set.
func (t TLSConfig) UseTLS() bool {
	return t.CertPath != "" && t.KeyPath != ""
}

func (t TLSConfig) validate() error {
	if (t.CertPath == "") != (t.KeyPath == "") {
		return errors.New("config: tls cert and key must be provided together, or neither")
	}
	return nil
}

// TransportConfig carries the QUIC transport settings an endpoint
// announces to its peer via the quic_transport_parameters extension
// (§6), plus the local listen address and loop timing.
type TransportConfig struct {
	ListenAddress           string `mapstructure:"listen_address"`
	IdleTimeoutSeconds      int    `mapstructure:"idle_timeout_seconds"`
	HandshakeTimeoutSeconds int    `mapstructure:"handshake_timeout_seconds"`
	MaxUDPPayloadSize       uint64 `mapstructure:"max_udp_payload_size"`
	InitialMaxData          uint64 `mapstructure:"initial_max_data"`
	InitialMaxStreamData    uint64 `mapstructure:"initial_max_stream_data"`
	InitialMaxStreamsBidi   uint64 `mapstructure:"initial_max_streams_bidi"`
	InitialMaxStreamsUni    uint64 `mapstructure:"initial_max_streams_uni"`
}

// IdleTimeout and HandshakeTimeout convert the configured second counts
// into time.Duration for use by the cmd entrypoint's deadlines.
func (t TransportConfig) IdleTimeout() time.Duration {
	return time.Duration(t.IdleTimeoutSeconds) * time.Second
}

func (t TransportConfig) HandshakeTimeout() time.Duration {
	return time.Duration(t.HandshakeTimeoutSeconds) * time.Second
}

// TransportParameters builds the tlsengine.TransportParameters this
// endpoint announces, from the configured flow-control limits.
func (t TransportConfig) TransportParameters() tlsengine.TransportParameters {
	return tlsengine.TransportParameters{
		MaxIdleTimeout:                 uint64(t.IdleTimeoutSeconds) * 1000,
		MaxUDPPayloadSize:              t.MaxUDPPayloadSize,
		InitialMaxData:                 t.InitialMaxData,
		InitialMaxStreamDataBidiLocal:  t.InitialMaxStreamData,
		InitialMaxStreamDataBidiRemote: t.InitialMaxStreamData,
		InitialMaxStreamDataUni:        t.InitialMaxStreamData,
		InitialMaxStreamsBidi:          t.InitialMaxStreamsBidi,
		InitialMaxStreamsUni:           t.InitialMaxStreamsUni,
	}
}

func (t TransportConfig) validate() error {
	if t.ListenAddress == "" {
		return errors.New("config: transport.listen_address is required")
	}
	if t.MaxUDPPayloadSize < 1200 {
		return fmt.Errorf("config: transport.max_udp_payload_size must be at least 1200, got %d", t.MaxUDPPayloadSize)
	}
	return nil
}

// EndpointConfig is the top-level configuration structure, unmarshaled
// from a viper instance that layers a YAML config file over built-in
// defaults; environment variables are not read.
type EndpointConfig struct {
	Log       LogConfig       `mapstructure:"log"`
	Transport TransportConfig `mapstructure:"transport"`
	TLS       TLSConfig       `mapstructure:"tls"`
}

func (c *EndpointConfig) validate() error {
	if err := c.Transport.validate(); err != nil {
		return err
	}
	if err := c.TLS.validate(); err != nil {
		return err
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transport.idle_timeout_seconds", DefaultIdleTimeoutSeconds)
	v.SetDefault("transport.handshake_timeout_seconds", DefaultHandshakeTimeoutSeconds)
	v.SetDefault("transport.max_udp_payload_size", DefaultMaxUDPPayloadSize)
	v.SetDefault("transport.initial_max_data", DefaultInitialMaxData)
	v.SetDefault("transport.initial_max_stream_data", DefaultInitialMaxStreamData)
	v.SetDefault("transport.initial_max_streams_bidi", DefaultInitialMaxStreamsBidi)
	v.SetDefault("transport.initial_max_streams_uni", DefaultInitialMaxStreamsUni)
	v.SetDefault("log.level", "info")
}

// Load reads configFilePath (if non-empty) into a fresh viper instance
// layered over the defaults above, unmarshals it into an EndpointConfig,
// and validates the result. Mirrors the teacher's
// rendezvousCmdLoadConfig: config file first, defaults fill the rest.
func Load(configFilePath string) (*EndpointConfig, error) {
	v := viper.New()
	setDefaults(v)

	if configFilePath != "" {
		v.SetConfigFile(configFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", configFilePath, err)
		}
	}

	var cfg EndpointConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to decode configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
