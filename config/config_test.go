package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
transport:
  listen_address: "127.0.0.1:4433"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport.IdleTimeoutSeconds != DefaultIdleTimeoutSeconds {
		t.Fatalf("idle timeout = %d, want default %d", cfg.Transport.IdleTimeoutSeconds, DefaultIdleTimeoutSeconds)
	}
	if cfg.Transport.MaxUDPPayloadSize != DefaultMaxUDPPayloadSize {
		t.Fatalf("max udp payload size = %d, want default %d", cfg.Transport.MaxUDPPayloadSize, DefaultMaxUDPPayloadSize)
	}
	if cfg.TLS.UseTLS() {
		t.Fatal("expected UseTLS() false with no cert/key configured")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
transport:
  listen_address: "0.0.0.0:9443"
  idle_timeout_seconds: 60
  max_udp_payload_size: 1400
  initial_max_streams_bidi: 4
tls:
  cert: "server.crt"
  key: "server.key"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport.ListenAddress != "0.0.0.0:9443" {
		t.Fatalf("listen address = %q", cfg.Transport.ListenAddress)
	}
	if cfg.Transport.IdleTimeout().Seconds() != 60 {
		t.Fatalf("idle timeout = %v, want 60s", cfg.Transport.IdleTimeout())
	}
	if cfg.Transport.InitialMaxStreamsBidi != 4 {
		t.Fatalf("initial_max_streams_bidi = %d, want 4", cfg.Transport.InitialMaxStreamsBidi)
	}
	if !cfg.TLS.UseTLS() {
		t.Fatal("expected UseTLS() true with cert and key both configured")
	}
}

func TestLoadMissingListenAddress(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing transport.listen_address")
	}
}

func TestLoadMismatchedTLSPaths(t *testing.T) {
	path := writeConfig(t, `
transport:
  listen_address: "127.0.0.1:4433"
tls:
  cert: "server.crt"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for cert without key")
	}
}

func TestLoadRejectsSmallPayloadSize(t *testing.T) {
	path := writeConfig(t, `
transport:
  listen_address: "127.0.0.1:4433"
  max_udp_payload_size: 100
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for undersized max_udp_payload_size")
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := Load("/no/such/file.yaml"); err == nil {
		t.Fatal("expected error reading missing config file")
	}
}

func TestTransportParametersMapping(t *testing.T) {
	tc := TransportConfig{
		IdleTimeoutSeconds:    30,
		MaxUDPPayloadSize:     1452,
		InitialMaxData:        1 << 20,
		InitialMaxStreamData:  65536,
		InitialMaxStreamsBidi: 8,
		InitialMaxStreamsUni:  8,
	}
	tp := tc.TransportParameters()
	if tp.MaxIdleTimeout != 30000 {
		t.Fatalf("MaxIdleTimeout = %d, want 30000", tp.MaxIdleTimeout)
	}
	if tp.InitialMaxStreamDataBidiLocal != 65536 || tp.InitialMaxStreamDataBidiRemote != 65536 || tp.InitialMaxStreamDataUni != 65536 {
		t.Fatalf("stream data limits not mapped: %+v", tp)
	}
	if tp.InitialMaxStreamsBidi != 8 || tp.InitialMaxStreamsUni != 8 {
		t.Fatalf("stream count limits not mapped: %+v", tp)
	}
}
