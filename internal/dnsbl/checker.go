// Package dnsbl checks connecting client addresses against DNS blocklists.
package dnsbl

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
)

// Config contains configuration for the blocklist checker.
type Config struct {
	// Zones is the list of blocklist zones to query, e.g. "zen.spamhaus.org".
	Zones []string

	// Nameservers is a list of DNS servers to query (e.g. "8.8.8.8:53").
	// If empty, system resolvers from /etc/resolv.conf are used, falling
	// back to public DNS (8.8.8.8, 1.1.1.1).
	Nameservers []string

	// Timeout is the timeout for individual DNS queries. Default is 3 seconds.
	Timeout time.Duration
}

// Checker queries DNS blocklists for client addresses.
type Checker struct {
	zones       []string
	nameservers []string
	client      *mdns.Client
}

// New creates a checker for the configured zones.
func New(config Config) *Checker {
	if config.Timeout == 0 {
		config.Timeout = 3 * time.Second
	}
	nameservers := config.Nameservers
	if len(nameservers) == 0 {
		nameservers = getSystemNameservers()
	}

	return &Checker{
		zones:       config.Zones,
		nameservers: nameservers,
		client: &mdns.Client{
			Timeout: config.Timeout,
		},
	}
}

// getSystemNameservers tries to get system DNS servers from resolv.conf.
func getSystemNameservers() []string {
	config, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(config.Servers) == 0 {
		return []string{"8.8.8.8:53", "1.1.1.1:53"}
	}

	servers := make([]string, 0, len(config.Servers))
	for _, s := range config.Servers {
		if !strings.Contains(s, ":") {
			s = s + ":53"
		}
		servers = append(servers, s)
	}
	return servers
}

// Lookup queries every configured zone for the given client address and
// returns the zones that list it. A zone answering NXDOMAIN means the
// address is not listed there. An error is returned only when no zone could
// be queried at all.
func (c *Checker) Lookup(ctx context.Context, address string) ([]string, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return nil, fmt.Errorf("dnsbl: not an IP address: %q", address)
	}

	var hits []string
	var lastErr error
	for _, zone := range c.zones {
		listed, err := c.queryZone(ctx, ip, zone)
		if err != nil {
			lastErr = err
			continue
		}
		if listed {
			hits = append(hits, zone)
		}
	}

	if len(hits) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return hits, nil
}

func (c *Checker) queryZone(ctx context.Context, ip net.IP, zone string) (bool, error) {
	name, err := queryName(ip, zone)
	if err != nil {
		return false, err
	}

	m := new(mdns.Msg)
	m.SetQuestion(name, mdns.TypeA)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range c.nameservers {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		resp, _, err := c.client.ExchangeContext(ctx, m, server)
		if err != nil {
			lastErr = fmt.Errorf("dnsbl: query %s: %w", zone, err)
			continue
		}

		switch resp.Rcode {
		case mdns.RcodeSuccess:
			for _, rr := range resp.Answer {
				if _, ok := rr.(*mdns.A); ok {
					return true, nil
				}
			}
			return false, nil
		case mdns.RcodeNameError: // NXDOMAIN: not listed
			return false, nil
		default:
			lastErr = fmt.Errorf("dnsbl: query %s: rcode %s", zone, mdns.RcodeToString[resp.Rcode])
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("dnsbl: no nameservers configured")
	}
	return false, lastErr
}

// queryName builds the blocklist query name: the address labels reversed,
// followed by the zone, e.g. "1.0.168.192.zen.spamhaus.org.".
func queryName(ip net.IP, zone string) (string, error) {
	arpa, err := mdns.ReverseAddr(ip.String())
	if err != nil {
		return "", fmt.Errorf("dnsbl: reverse %s: %w", ip, err)
	}

	var labels string
	switch {
	case strings.HasSuffix(arpa, ".in-addr.arpa."):
		labels = strings.TrimSuffix(arpa, "in-addr.arpa.")
	case strings.HasSuffix(arpa, ".ip6.arpa."):
		labels = strings.TrimSuffix(arpa, "ip6.arpa.")
	default:
		return "", fmt.Errorf("dnsbl: unexpected reverse name %q", arpa)
	}

	return labels + mdns.Fqdn(zone), nil
}
