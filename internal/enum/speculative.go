package enum

import (
	"context"
	"sync"
)

// speculativePrefixes are the per-provider candidate labels tried when
// a credentialed source cannot be queried. Each list reflects the kind
// of hostname that provider historically surfaces.
var speculativePrefixes = map[string][]string{
	"securitytrails": {"news", "blog", "cdn", "media", "static", "events", "community"},
	"censys":         {"docs", "admin", "app", "auth", "help", "login", "remote", "vpn"},
	"certspotter":    {"www", "mail", "blog", "dev", "api", "m", "shop", "support", "portal"},
}

// speculate builds prefix.domain candidates and keeps only those that
// positively resolve. A nil verifier keeps nothing: guessed hostnames
// are never reported unverified.
func speculate(ctx context.Context, verifier Verifier, domain string, prefixes []string) []string {
	if verifier == nil || len(prefixes) == 0 {
		return nil
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		verified []string
	)
	for _, prefix := range prefixes {
		hostname := prefix + "." + domain
		wg.Add(1)
		go func(h string) {
			defer wg.Done()
			if verifier.Exists(ctx, h) {
				mu.Lock()
				verified = append(verified, h)
				mu.Unlock()
			}
		}(hostname)
	}
	wg.Wait()
	return verified
}
