package enum

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	name string
	subs []string
}

func (s *stubSource) Name() string                               { return s.name }
func (s *stubSource) Fetch(_ context.Context, _ string) []string { return s.subs }

func TestEnumerateSeedsRootDomain(t *testing.T) {
	o := NewOrchestrator([]Source{
		&stubSource{name: "a", subs: []string{"www.example.com"}},
	}, nil)

	res, err := o.Enumerate(context.Background(), "Example.COM")
	require.NoError(t, err)
	assert.Contains(t, res.Subdomains, "example.com")
	assert.Contains(t, res.Subdomains, "www.example.com")
	assert.Equal(t, "example.com", res.Domain)
}

func TestEnumerateAllSourcesFailing(t *testing.T) {
	o := NewOrchestrator([]Source{
		&stubSource{name: "a"},
		&stubSource{name: "b"},
		&stubSource{name: "c"},
	}, nil)

	res, err := o.Enumerate(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com"}, res.Subdomains)
	assert.Len(t, res.CompletedSources, 3)
	assert.True(t, res.Done)
}

func TestEnumerateMergesExactStrings(t *testing.T) {
	o := NewOrchestrator([]Source{
		&stubSource{name: "a", subs: []string{"www.example.com", "api.example.com"}},
		&stubSource{name: "b", subs: []string{"api.example.com", "mail.example.com"}},
	}, nil)

	res, err := o.Enumerate(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"api.example.com", "example.com", "mail.example.com", "www.example.com",
	}, res.Subdomains)
	assert.Equal(t, 2, res.Sources["a"])
	assert.Equal(t, 2, res.Sources["b"])
}

func TestEnumerateMergeIdempotence(t *testing.T) {
	src := &stubSource{name: "a", subs: []string{"www.example.com", "www.example.com"}}
	o := NewOrchestrator([]Source{src, &stubSource{name: "b", subs: src.subs}}, nil)

	res, err := o.Enumerate(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "www.example.com"}, res.Subdomains)
}

func TestEnumerateFromChunks(t *testing.T) {
	o := NewOrchestrator([]Source{
		&stubSource{name: "a", subs: []string{"a.example.com"}},
		&stubSource{name: "b", subs: []string{"b.example.com"}},
		&stubSource{name: "c", subs: []string{"c.example.com"}},
		&stubSource{name: "d", subs: []string{"d.example.com"}},
	}, nil)
	ctx := context.Background()

	first, err := o.EnumerateFrom(ctx, "example.com", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.example.com", "b.example.com", "example.com"}, first.Subdomains)
	assert.Equal(t, 2, first.NextFrom)
	assert.False(t, first.Done)

	second, err := o.EnumerateFrom(ctx, "example.com", first.NextFrom, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c.example.com", "d.example.com", "example.com"}, second.Subdomains)
	assert.True(t, second.Done)
}

func TestEnumerateFromWindowPastEnd(t *testing.T) {
	o := NewOrchestrator([]Source{&stubSource{name: "a"}}, nil)

	res, err := o.EnumerateFrom(context.Background(), "example.com", 10, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com"}, res.Subdomains)
	assert.Empty(t, res.CompletedSources)
	assert.True(t, res.Done)
}

func TestEnumerateRejectsInvalidDomain(t *testing.T) {
	o := NewOrchestrator(nil, nil)
	for _, bad := range []string{"", "no spaces.com", "https://example.com", "localhost"} {
		_, err := o.Enumerate(context.Background(), bad)
		assert.Error(t, err, bad)
	}
}

// deadlineSource captures the deadline each Fetch runs under
type deadlineSource struct {
	deadline time.Time
	bounded  bool
}

func (d *deadlineSource) Name() string { return "deadline" }
func (d *deadlineSource) Fetch(ctx context.Context, _ string) []string {
	d.deadline, d.bounded = ctx.Deadline()
	return nil
}

func TestEnumerateBoundsEachSource(t *testing.T) {
	src := &deadlineSource{}
	o := NewOrchestrator([]Source{src}, nil)
	o.SourceTimeout = time.Minute

	_, err := o.Enumerate(context.Background(), "example.com")
	require.NoError(t, err)
	require.True(t, src.bounded, "Fetch must run under a deadline")
	assert.Greater(t, time.Until(src.deadline), 50*time.Second)
	assert.LessOrEqual(t, time.Until(src.deadline), time.Minute)
}

func TestEnumerateReportsProgress(t *testing.T) {
	o := NewOrchestrator([]Source{
		&stubSource{name: "a", subs: []string{"www.example.com"}},
		&stubSource{name: "b"},
	}, nil)

	type event struct {
		source string
		found  int
	}
	events := make(chan event, 2)
	o.OnProgress = func(source string, found int) {
		events <- event{source, found}
	}

	_, err := o.Enumerate(context.Background(), "example.com")
	require.NoError(t, err)

	got := map[string]int{}
	for i := 0; i < 2; i++ {
		e := <-events
		got[e.source] = e.found
	}
	assert.Equal(t, 1, got["a"])
	assert.Equal(t, 0, got["b"])
}
