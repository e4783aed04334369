package enode

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/nodelink/p2phandshake/pkg/crypto"
)

func testID(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return hex.EncodeToString(key.PublicKeyBytes())
}

func TestParse(t *testing.T) {
	id := testID(t)

	tests := []struct {
		name   string
		record string
		host   string
		port   uint16
	}{
		{"WithScheme", "enode://" + id + "@10.0.0.1:30303", "10.0.0.1", 30303},
		{"WithoutScheme", id + "@10.0.0.1:30303", "10.0.0.1", 30303},
		{"Hostname", "enode://" + id + "@node.example.org:443", "node.example.org", 443},
		{"IPv6", "enode://" + id + "@[::1]:30303", "::1", 30303},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := Parse(tt.record)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.record, err)
			}
			if hex.EncodeToString(node.ID) != id {
				t.Errorf("ID mismatch")
			}
			if node.Host != tt.host || node.Port != tt.port {
				t.Errorf("endpoint = %s:%d, want %s:%d", node.Host, node.Port, tt.host, tt.port)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	id := testID(t)

	tests := []struct {
		name   string
		record string
		want   error
	}{
		{"Empty", "", ErrInvalidRecord},
		{"NoSeparator", "enode://" + id, ErrInvalidRecord},
		{"ShortID", "enode://abcdef@10.0.0.1:30303", ErrInvalidNodeID},
		{"NonHexID", "enode://" + strings.Repeat("zz", 64) + "@10.0.0.1:30303", ErrInvalidNodeID},
		{"NotOnCurve", "enode://" + strings.Repeat("ff", 64) + "@10.0.0.1:30303", ErrInvalidNodeID},
		{"MissingPort", "enode://" + id + "@10.0.0.1", ErrInvalidEndpoint},
		{"EmptyHost", "enode://" + id + "@:30303", ErrInvalidEndpoint},
		{"PortZero", "enode://" + id + "@10.0.0.1:0", ErrInvalidEndpoint},
		{"PortTooLarge", "enode://" + id + "@10.0.0.1:70000", ErrInvalidEndpoint},
		{"PortNotANumber", "enode://" + id + "@10.0.0.1:abc", ErrInvalidEndpoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.record)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Parse(%q) error = %v, want %v", tt.record, err, tt.want)
			}
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	record := "enode://" + testID(t) + "@10.0.0.1:30303"
	node, err := Parse(record)
	if err != nil {
		t.Fatal(err)
	}
	if node.String() != record {
		t.Fatalf("String() = %q, want %q", node.String(), record)
	}
	again, err := Parse(node.String())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again.ID, node.ID) || again.Addr() != node.Addr() {
		t.Fatal("round trip mismatch")
	}
}

func TestAddr(t *testing.T) {
	node, err := Parse("enode://" + testID(t) + "@[::1]:30303")
	if err != nil {
		t.Fatal(err)
	}
	if node.Addr() != "[::1]:30303" {
		t.Fatalf("Addr() = %q", node.Addr())
	}
}
