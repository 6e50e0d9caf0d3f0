package enum

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultChunkSize is the number of sources a chunked window covers
const DefaultChunkSize = 5

// Result is the outcome of one enumeration run or chunk window
type Result struct {
	Domain           string         `json:"domain"`
	Subdomains       []string       `json:"subdomains"`
	Sources          map[string]int `json:"sources"`
	CompletedSources []string       `json:"completedSources"`
	NextFrom         int            `json:"nextFrom"`
	Done             bool           `json:"done"`
	Duration         time.Duration  `json:"duration"`
}

// Orchestrator fans a domain out to every source in parallel and merges
// the answers into one deduplicated set. Source failures never abort a
// run: each adapter degrades to an empty contribution on its own.
type Orchestrator struct {
	sources  []Source
	limiters map[string]*rate.Limiter
	log      *logrus.Entry

	// OnProgress, when set, is invoked as each source completes. Used by
	// the server to stream progress over the websocket hub.
	OnProgress func(source string, found int)

	// SourceTimeout bounds each source's Fetch. Zero means the default.
	SourceTimeout time.Duration
}

// NewOrchestrator wires the given sources with per-source rate limits
func NewOrchestrator(sources []Source, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	limiters := make(map[string]*rate.Limiter, len(sources))
	for _, src := range sources {
		// one request per second per provider, small burst for chunk
		// boundaries landing on the same source
		limiters[src.Name()] = rate.NewLimiter(rate.Every(time.Second), 2)
	}
	return &Orchestrator{
		sources:  sources,
		limiters: limiters,
		log:      log.WithField("component", "enum"),
	}
}

// SourceCount returns how many sources are configured
func (o *Orchestrator) SourceCount() int {
	return len(o.sources)
}

// Enumerate runs every source against the domain
func (o *Orchestrator) Enumerate(ctx context.Context, domain string) (*Result, error) {
	return o.EnumerateFrom(ctx, domain, 0, len(o.sources))
}

// EnumerateFrom runs the window of sources [startFrom, startFrom+chunkSize)
// against the domain. The root domain is always part of the result, so
// even a window of entirely failing sources yields at least one
// hostname. NextFrom and Done let callers drive the next window.
func (o *Orchestrator) EnumerateFrom(ctx context.Context, domain string, startFrom, chunkSize int) (*Result, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if err := validateDomain(domain); err != nil {
		return nil, err
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if startFrom < 0 {
		startFrom = 0
	}
	if startFrom > len(o.sources) {
		startFrom = len(o.sources)
	}
	end := startFrom + chunkSize
	if end > len(o.sources) {
		end = len(o.sources)
	}
	window := o.sources[startFrom:end]

	start := time.Now()
	o.log.WithFields(logrus.Fields{
		"domain":  domain,
		"sources": len(window),
		"from":    startFrom,
	}).Info("enumeration window starting")

	var (
		mu        sync.Mutex
		merged    = map[string]struct{}{domain: {}}
		counts    = make(map[string]int, len(window))
		completed = make([]string, 0, len(window))
	)

	timeout := o.SourceTimeout
	if timeout <= 0 {
		timeout = sourceTimeout
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range window {
		src := src
		g.Go(func() error {
			if lim := o.limiters[src.Name()]; lim != nil {
				if err := lim.Wait(gctx); err != nil {
					return err
				}
			}
			fctx, cancel := context.WithTimeout(gctx, timeout)
			subs := src.Fetch(fctx, domain)
			cancel()

			mu.Lock()
			counts[src.Name()] = len(subs)
			completed = append(completed, src.Name())
			for _, s := range subs {
				merged[s] = struct{}{}
			}
			mu.Unlock()

			if o.OnProgress != nil {
				o.OnProgress(src.Name(), len(subs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// only context cancellation reaches here; adapters never error
		return nil, err
	}

	subdomains := make([]string, 0, len(merged))
	for s := range merged {
		subdomains = append(subdomains, s)
	}
	sort.Strings(subdomains)
	sort.Strings(completed)

	result := &Result{
		Domain:           domain,
		Subdomains:       subdomains,
		Sources:          counts,
		CompletedSources: completed,
		NextFrom:         end,
		Done:             end >= len(o.sources),
		Duration:         time.Since(start),
	}
	o.log.WithFields(logrus.Fields{
		"domain":     domain,
		"subdomains": len(result.Subdomains),
		"duration":   result.Duration.Round(time.Millisecond).String(),
	}).Info("enumeration window finished")
	return result, nil
}

func validateDomain(domain string) error {
	if domain == "" {
		return fmt.Errorf("domain is required")
	}
	if strings.ContainsAny(domain, " \t/\\") || strings.Contains(domain, "://") {
		return fmt.Errorf("invalid domain %q", domain)
	}
	if !strings.Contains(domain, ".") {
		return fmt.Errorf("invalid domain %q", domain)
	}
	return nil
}
