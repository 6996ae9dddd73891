package snmp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

// Config describes how access points are queried.
type Config struct {
	Community      string
	Version        string // "2c" (default) | "1"
	Port           uint16
	Timeout        time.Duration
	Retries        int
	MaxRepetitions uint32
}

// Target is an access point reachable over SNMP.
type Target struct {
	ID      int64
	Address string
}

// Client wraps a minimal SNMPv1/v2c implementation.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.Community) == "" {
		cfg.Community = "public"
	}
	if strings.TrimSpace(cfg.Version) == "" {
		cfg.Version = "2c"
	}
	if cfg.Port == 0 {
		cfg.Port = 161
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 900 * time.Millisecond
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.MaxRepetitions == 0 {
		cfg.MaxRepetitions = 10
	}
	return &Client{cfg: cfg}
}

func snmpVersion(v string) (gosnmp.SnmpVersion, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "2c", "v2c", "":
		return gosnmp.Version2c, nil
	case "1", "v1":
		return gosnmp.Version1, nil
	default:
		return 0, fmt.Errorf("unsupported snmp version %q", v)
	}
}

func (c *Client) connect(ctx context.Context, target Target) (*gosnmp.GoSNMP, error) {
	version, err := snmpVersion(c.cfg.Version)
	if err != nil {
		return nil, err
	}

	s := &gosnmp.GoSNMP{
		Context:        ctx,
		Target:         target.Address,
		Port:           c.cfg.Port,
		Community:      c.cfg.Community,
		Version:        version,
		Timeout:        c.cfg.Timeout,
		Retries:        c.cfg.Retries,
		MaxRepetitions: c.cfg.MaxRepetitions,
	}
	if err := s.Connect(); err != nil {
		return nil, err
	}
	return s, nil
}

// CountClients walks oid on target and sums the integer values found. A
// scalar OID yields its own value; per-radio or per-SSID tables are summed.
func (c *Client) CountClients(ctx context.Context, target Target, oid string) (int, error) {
	if c == nil {
		return 0, errors.New("snmp client is nil")
	}
	oid = normalizeOID(oid)
	if oid == "" {
		return 0, errors.New("client count oid is empty")
	}

	s, err := c.connect(ctx, target)
	if err != nil {
		return 0, err
	}
	defer s.Conn.Close()

	var pdus []gosnmp.SnmpPDU
	if s.Version == gosnmp.Version1 {
		pdus, err = s.WalkAll(oid)
	} else {
		pdus, err = s.BulkWalkAll(oid)
	}
	if err != nil {
		return 0, err
	}
	if len(pdus) == 0 {
		// BulkWalk starts after oid, so a scalar instance needs a Get.
		pkt, err := s.Get([]string{oid})
		if err != nil {
			return 0, err
		}
		pdus = pkt.Variables
	}
	return sumPDUs(pdus)
}

func normalizeOID(oid string) string {
	oid = strings.TrimSpace(oid)
	return strings.TrimPrefix(oid, ".")
}

// sumPDUs adds up every integer value. Non-integer values are skipped; when
// nothing numeric was returned the OID is reported as missing.
func sumPDUs(pdus []gosnmp.SnmpPDU) (int, error) {
	var total int64
	var found bool
	for _, p := range pdus {
		n, ok := pduInt64(p)
		if !ok || n == nil {
			continue
		}
		found = true
		if *n > 0 {
			total += *n
		}
	}
	if !found {
		return 0, errors.New("no integer values returned")
	}
	return int(total), nil
}

func pduInt64(pdu gosnmp.SnmpPDU) (*int64, bool) {
	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return nil, false
	}
	switch v := pdu.Value.(type) {
	case int:
		n := int64(v)
		return &n, true
	case int32:
		n := int64(v)
		return &n, true
	case uint:
		n := int64(v)
		return &n, true
	case uint32:
		n := int64(v)
		return &n, true
	case int64:
		n := v
		return &n, true
	case uint64:
		n := int64(v)
		return &n, true
	default:
		return nil, false
	}
}
