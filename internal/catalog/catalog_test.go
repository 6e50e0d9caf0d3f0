package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntriesAreUniqueAndValid(t *testing.T) {
	seen := make(map[string]bool)
	for _, e := range Entries() {
		require.NotEmpty(t, e.Type)
		assert.False(t, seen[e.Type], "duplicate catalog entry: %s", e.Type)
		seen[e.Type] = true
		assert.True(t, ValidSeverity(e.Severity), "entry %s has severity %s", e.Type, e.Severity)
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	a := Entries()
	a[0].Type = "mutated"
	b := Entries()
	assert.NotEqual(t, "mutated", b[0].Type)
}

func TestSizeMatchesEntries(t *testing.T) {
	assert.Equal(t, len(Entries()), Size())
	assert.LessOrEqual(t, Size(), 50)
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusPending))
	assert.True(t, ValidStatus(StatusFound))
	assert.True(t, ValidStatus(StatusNotFound))
	assert.False(t, ValidStatus("open"))
}
