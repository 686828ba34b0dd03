package keys

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture: %v", err)
	}
	return b
}

// TestRFC9001AppendixA checks the P3 fixed vector: client/server initial
// IVs derived from DCID 8394c8f03e515708.
func TestRFC9001AppendixA(t *testing.T) {
	dcid := mustHex(t, "8394c8f03e515708")
	secrets := DeriveInitial(dcid)

	clientKeys, err := DeriveDirectional(InitialSuite, secrets.Client)
	if err != nil {
		t.Fatalf("derive client keys: %v", err)
	}
	serverKeys, err := DeriveDirectional(InitialSuite, secrets.Server)
	if err != nil {
		t.Fatalf("derive server keys: %v", err)
	}

	wantClientIV := mustHex(t, "fa044b2f42a3fd3b46fb255c")
	wantServerIV := mustHex(t, "0ac1493ca1905853b0bba03e")

	if !bytes.Equal(clientKeys.IV[:], wantClientIV) {
		t.Fatalf("client_iv = %x, want %x", clientKeys.IV[:], wantClientIV)
	}
	if !bytes.Equal(serverKeys.IV[:], wantServerIV) {
		t.Fatalf("server_iv = %x, want %x", serverKeys.IV[:], wantServerIV)
	}
}

func TestAEADRoundTrip(t *testing.T) {
	secrets := DeriveInitial([]byte{0x83, 0x94, 0xc8, 0xf0})
	dk, err := DeriveDirectional(InitialSuite, secrets.Client)
	if err != nil {
		t.Fatal(err)
	}
	aad := []byte{0xc3, 0, 0, 0, 1}
	plaintext := []byte("hello quic")

	ct := dk.Seal(7, aad, plaintext)
	pt, err := dk.Open(7, aad, ct)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", pt, plaintext)
	}

	// Tamper with a ciphertext byte.
	bad := append([]byte(nil), ct...)
	bad[0] ^= 0xff
	if _, err := dk.Open(7, aad, bad); err == nil {
		t.Fatal("expected decrypt failure on tampered ciphertext")
	}

	// Tamper with AAD.
	badAAD := append([]byte(nil), aad...)
	badAAD[0] ^= 0xff
	if _, err := dk.Open(7, badAAD, ct); err == nil {
		t.Fatal("expected decrypt failure on tampered aad")
	}

	// Tamper with the packet number (changes the nonce).
	if _, err := dk.Open(8, aad, ct); err == nil {
		t.Fatal("expected decrypt failure on wrong packet number")
	}
}
