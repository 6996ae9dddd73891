package snmp

import (
	"context"
	"testing"

	"github.com/gosnmp/gosnmp"
)

func TestSumPDUs(t *testing.T) {
	pdus := []gosnmp.SnmpPDU{
		{Name: ".1.3.6.1.4.1.9.9.1.1", Type: gosnmp.Gauge32, Value: uint(12)},
		{Name: ".1.3.6.1.4.1.9.9.1.2", Type: gosnmp.Integer, Value: 7},
		{Name: ".1.3.6.1.4.1.9.9.1.3", Type: gosnmp.Counter64, Value: uint64(3)},
		{Name: ".1.3.6.1.4.1.9.9.1.4", Type: gosnmp.OctetString, Value: []byte("radio0")},
		{Name: ".1.3.6.1.4.1.9.9.1.5", Type: gosnmp.Integer, Value: -2},
	}

	got, err := sumPDUs(pdus)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 22 {
		t.Fatalf("expected 22, got %d", got)
	}
}

func TestSumPDUs_noIntegers(t *testing.T) {
	pdus := []gosnmp.SnmpPDU{
		{Name: ".1.3.6.1.4.1.9.9.1.0", Type: gosnmp.NoSuchObject},
		{Name: ".1.3.6.1.4.1.9.9.1.1", Type: gosnmp.OctetString, Value: "n/a"},
	}
	if _, err := sumPDUs(pdus); err == nil {
		t.Fatalf("expected error when no integer values are present")
	}
	if _, err := sumPDUs(nil); err == nil {
		t.Fatalf("expected error for empty walk")
	}
}

func TestPDUInt64_ignoresExceptionTypes(t *testing.T) {
	for _, typ := range []gosnmp.Asn1BER{gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null} {
		if _, ok := pduInt64(gosnmp.SnmpPDU{Type: typ, Value: 5}); ok {
			t.Fatalf("expected type %v to be ignored", typ)
		}
	}
}

func TestNormalizeOID(t *testing.T) {
	if got := normalizeOID("  .1.3.6.1.2.1.1.5.0 "); got != "1.3.6.1.2.1.1.5.0" {
		t.Fatalf("unexpected oid %q", got)
	}
}

func TestSNMPVersion(t *testing.T) {
	cases := map[string]gosnmp.SnmpVersion{
		"":    gosnmp.Version2c,
		"2c":  gosnmp.Version2c,
		"V2C": gosnmp.Version2c,
		"1":   gosnmp.Version1,
	}
	for in, want := range cases {
		got, err := snmpVersion(in)
		if err != nil || got != want {
			t.Fatalf("snmpVersion(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := snmpVersion("3"); err == nil {
		t.Fatalf("expected v3 to be rejected")
	}
}

func TestNewClient_defaults(t *testing.T) {
	c := NewClient(Config{Retries: -1})
	if c.cfg.Community != "public" || c.cfg.Version != "2c" || c.cfg.Port != 161 {
		t.Fatalf("unexpected defaults %+v", c.cfg)
	}
	if c.cfg.Retries != 0 || c.cfg.MaxRepetitions != 10 || c.cfg.Timeout <= 0 {
		t.Fatalf("unexpected defaults %+v", c.cfg)
	}
}

func TestCountClients_rejectsBadInput(t *testing.T) {
	var nilClient *Client
	if _, err := nilClient.CountClients(context.Background(), Target{Address: "127.0.0.1"}, "1.3.6"); err == nil {
		t.Fatalf("expected error from nil client")
	}
	c := NewClient(Config{})
	if _, err := c.CountClients(context.Background(), Target{Address: "127.0.0.1"}, "  "); err == nil {
		t.Fatalf("expected error for empty oid")
	}
	v3 := NewClient(Config{Version: "3"})
	if _, err := v3.CountClients(context.Background(), Target{Address: "127.0.0.1"}, "1.3.6"); err == nil {
		t.Fatalf("expected error for unsupported version")
	}
}
