package enum

import (
	"bufio"
	"context"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
)

// publicResolvers back up the system configuration when /etc/resolv.conf
// is absent or empty (containers, odd setups)
var publicResolvers = []string{
	"1.1.1.1:53",
	"8.8.8.8:53",
	"9.9.9.9:53",
	"208.67.222.222:53",
}

// Resolver answers existence checks for speculative hostnames. One
// query, one attempt: a speculation miss is cheap and not worth retries.
type Resolver struct {
	servers []string
	udp     *dns.Client
	tcp     *dns.Client
	next    atomic.Uint64
}

// NewResolver builds a resolver from the system configuration with
// public fallbacks, using the given per-query timeout
func NewResolver(timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{
		servers: systemResolvers("/etc/resolv.conf"),
		udp:     &dns.Client{Net: "udp", Timeout: timeout},
		tcp:     &dns.Client{Net: "tcp", Timeout: timeout},
	}
}

// Exists reports whether the hostname resolves to at least one A record.
// Any failure (timeout, SERVFAIL, NXDOMAIN) reads as "does not exist".
func (r *Resolver) Exists(ctx context.Context, hostname string) bool {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(hostname), dns.TypeA)
	msg.RecursionDesired = true

	server := r.pick()
	resp, _, err := r.udp.ExchangeContext(ctx, msg, server)
	// Truncated or failed UDP answers retry once over TCP
	if err != nil || resp == nil || resp.Truncated {
		resp, _, err = r.tcp.ExchangeContext(ctx, msg, server)
		if err != nil || resp == nil {
			return false
		}
	}
	if resp.Rcode != dns.RcodeSuccess {
		return false
	}
	for _, rr := range resp.Answer {
		if _, ok := rr.(*dns.A); ok {
			return true
		}
	}
	return false
}

// pick rotates through the configured servers
func (r *Resolver) pick() string {
	n := r.next.Add(1)
	return r.servers[int(n-1)%len(r.servers)]
}

// systemResolvers reads nameserver entries from a resolv.conf style
// file, appending the public fallbacks
func systemResolvers(path string) []string {
	servers := make([]string, 0, 8)

	if f, err := os.Open(path); err == nil {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "nameserver") {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			if ip := net.ParseIP(fields[1]); ip != nil {
				servers = append(servers, net.JoinHostPort(fields[1], "53"))
			}
		}
	}

	return append(servers, publicResolvers...)
}
