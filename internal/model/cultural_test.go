package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeCulturalContextNilSides(t *testing.T) {
	ctx := &CulturalContext{LikelyOrigin: "Israel", Confidence: 0.7}
	assert.Equal(t, ctx, MergeCulturalContext(nil, ctx))
	assert.Equal(t, ctx, MergeCulturalContext(ctx, nil))
	assert.Nil(t, MergeCulturalContext(nil, nil))
}

func TestMergeCulturalContextWholesaleOnConfidenceGap(t *testing.T) {
	weak := &CulturalContext{LikelyOrigin: "somewhere", CulturalNotes: []string{"weak note"}, Confidence: 0.3}
	strong := &CulturalContext{LikelyOrigin: "Israel", Region: "Middle East", Confidence: 0.75}

	merged := MergeCulturalContext(weak, strong)
	assert.Equal(t, strong, merged)
	assert.NotContains(t, merged.CulturalNotes, "weak note")

	// Gap in the other direction: old wins wholesale.
	merged = MergeCulturalContext(strong, weak)
	assert.Equal(t, strong, merged)
}

func TestMergeCulturalContextFieldMergeWithinGap(t *testing.T) {
	old := &CulturalContext{
		LikelyOrigin:        "Israel",
		CommunicationStyle:  "informal",
		DietaryRestrictions: []string{"kosher"},
		CulturalNotes:       []string{"note a"},
		Confidence:          0.7,
	}
	newer := &CulturalContext{
		Region:              "Middle East",
		DietaryRestrictions: []string{"kosher", "vegetarian"},
		CulturalNotes:       []string{"note b"},
		Confidence:          0.65,
	}

	merged := MergeCulturalContext(old, newer)
	require.NotNil(t, merged)

	assert.Equal(t, "Israel", merged.LikelyOrigin, "old fills what newer left empty")
	assert.Equal(t, "Middle East", merged.Region)
	assert.Equal(t, "informal", merged.CommunicationStyle)
	assert.Equal(t, []string{"kosher", "vegetarian"}, merged.DietaryRestrictions)
	assert.ElementsMatch(t, []string{"note a", "note b"}, merged.CulturalNotes)
	assert.InDelta(t, 0.7, merged.Confidence, 0.001)
}

func TestMergeCulturalContextNewerFieldWins(t *testing.T) {
	old := &CulturalContext{LikelyOrigin: "old origin", Confidence: 0.6}
	newer := &CulturalContext{LikelyOrigin: "new origin", Confidence: 0.6}

	merged := MergeCulturalContext(old, newer)
	assert.Equal(t, "new origin", merged.LikelyOrigin)
}

func TestMergeCulturalContextIdempotent(t *testing.T) {
	ctx := &CulturalContext{
		LikelyOrigin:        "Israel",
		Region:              "Middle East",
		DietaryRestrictions: []string{"kosher"},
		CulturalNotes:       []string{"note"},
		Confidence:          0.75,
	}

	merged := MergeCulturalContext(ctx, ctx)
	assert.Equal(t, ctx.LikelyOrigin, merged.LikelyOrigin)
	assert.Equal(t, ctx.Region, merged.Region)
	assert.Equal(t, ctx.DietaryRestrictions, merged.DietaryRestrictions)
	assert.Equal(t, ctx.CulturalNotes, merged.CulturalNotes)
	assert.InDelta(t, ctx.Confidence, merged.Confidence, 0.001)
}
