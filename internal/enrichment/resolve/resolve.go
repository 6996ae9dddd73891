// Package resolve looks up access point host names over DNS.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const defaultResolvConf = "/etc/resolv.conf"

// Resolver sends A and AAAA queries to a single DNS server.
type Resolver struct {
	server string
	client *dns.Client
}

type Options struct {
	// Server is host:port. Empty uses the first nameserver of
	// /etc/resolv.conf.
	Server  string
	Timeout time.Duration
}

func New(opts Options) (*Resolver, error) {
	server := strings.TrimSpace(opts.Server)
	if server == "" {
		cfg, err := dns.ClientConfigFromFile(defaultResolvConf)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", defaultResolvConf, err)
		}
		if len(cfg.Servers) == 0 {
			return nil, fmt.Errorf("no nameserver in %s", defaultResolvConf)
		}
		server = net.JoinHostPort(cfg.Servers[0], cfg.Port)
	} else if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 250 * time.Millisecond
	}

	return &Resolver{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}, nil
}

func (r *Resolver) Server() string {
	if r == nil {
		return ""
	}
	return r.server
}

// LookupHost returns the IPv4 addresses of name followed by its IPv6
// addresses. An IP literal is returned as is.
func (r *Resolver) LookupHost(ctx context.Context, name string) ([]netip.Addr, error) {
	if r == nil {
		return nil, errors.New("resolver is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("empty host name")
	}
	if a, err := netip.ParseAddr(name); err == nil {
		return []netip.Addr{a.Unmap()}, nil
	}

	var out []netip.Addr
	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		addrs, err := r.query(ctx, name, qtype)
		if err != nil {
			lastErr = err
			continue
		}
		out = append(out, addrs...)
	}
	if len(out) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("no addresses for %s", name)
		}
		return nil, lastErr
	}
	return out, nil
}

func (r *Resolver) query(ctx context.Context, name string, qtype uint16) ([]netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return nil, err
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("lookup %s %s: %s", name, dns.TypeToString[qtype], dns.RcodeToString[in.Rcode])
	}

	var out []netip.Addr
	for _, rr := range in.Answer {
		var ip net.IP
		switch v := rr.(type) {
		case *dns.A:
			ip = v.A
		case *dns.AAAA:
			ip = v.AAAA
		default:
			continue
		}
		if a, ok := netip.AddrFromSlice(ip); ok {
			out = append(out, a.Unmap())
		}
	}
	return out, nil
}
