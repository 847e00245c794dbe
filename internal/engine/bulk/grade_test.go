package bulk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rshade/finboard/internal/engine/bulk"
)

func TestParseGrade(t *testing.T) {
	tests := []struct {
		in   string
		want bulk.Grade
	}{
		{"S", bulk.GradeS},
		{" a ", bulk.GradeA},
		{"b", bulk.GradeB},
		{"C", bulk.GradeC},
		{"", bulk.GradeNone},
		{"none", bulk.GradeNone},
		{"D", bulk.GradeNone},
		{"AA", bulk.GradeNone},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, bulk.ParseGrade(tt.in))
		})
	}
}

func TestClassify_DefaultMapping(t *testing.T) {
	grades := []bulk.Grade{bulk.GradeS, bulk.GradeA, bulk.GradeB, bulk.GradeC, bulk.GradeNone}
	want := []bulk.Tier{bulk.Tier1, bulk.Tier1, bulk.Tier2, bulk.Tier3, bulk.TierNone}

	got := make([]bulk.Tier, 0, len(grades))
	for _, g := range grades {
		got = append(got, bulk.Classify(g, bulk.DefaultTierMapping()))
	}
	assert.Equal(t, want, got)

	// nil mapping falls back to the default
	assert.Equal(t, bulk.Tier1, bulk.Classify(bulk.GradeS, nil))
}

func TestClassify_CustomMapping(t *testing.T) {
	mapping := bulk.TierMapping{bulk.GradeS: bulk.Tier1, bulk.GradeC: bulk.Tier2}

	assert.Equal(t, bulk.Tier1, bulk.Classify(bulk.GradeS, mapping))
	assert.Equal(t, bulk.TierNone, bulk.Classify(bulk.GradeA, mapping))
	assert.Equal(t, bulk.Tier2, bulk.Classify(bulk.GradeC, mapping))
	assert.Equal(t, bulk.TierNone, bulk.Classify(bulk.GradeNone, mapping))
}

func TestTierNames(t *testing.T) {
	for _, tier := range []bulk.Tier{bulk.TierNone, bulk.Tier1, bulk.Tier2, bulk.Tier3} {
		parsed, ok := bulk.ParseTier(tier.String())
		assert.True(t, ok)
		assert.Equal(t, tier, parsed)
	}
	_, ok := bulk.ParseTier("tier9")
	assert.False(t, ok)
	assert.Equal(t, "-", bulk.GradeNone.String())
}

func TestParseIdentifiers(t *testing.T) {
	got := bulk.ParseIdentifiers("AAA, BBB\n\n  CCC  \r\n", ",,", "DDD", "AAA")
	assert.Equal(t, []string{"AAA", "BBB", "CCC", "DDD", "AAA"}, got)
	assert.Empty(t, bulk.ParseIdentifiers("  \n , "))
}

func TestOutcomeMessage(t *testing.T) {
	rows := make([]bulk.ResultRow, 3)
	assert.Equal(t, "3 rows exported on completion", bulk.Outcome{Rows: rows}.Message())
	assert.Equal(t, "3 rows exported after cancellation", bulk.Outcome{Rows: rows, Cancelled: true}.Message())
	assert.Equal(t, "0 rows exported after cancellation", bulk.Outcome{Cancelled: true}.Message())
}
