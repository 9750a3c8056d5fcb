package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectClassifierUmbrellaDetection(t *testing.T) {
	t.Parallel()
	oc := NewObjectClassifier(walletCatalog(), nil)

	m, ok := oc.Evaluate([]DetectedObject{{Label: "umbrella", Confidence: 0.9}})
	require.True(t, ok)
	assert.InDelta(t, 1.08, m.Adjusted, 1e-9)

	got := oc.ClassifyByObjects([]DetectedObject{{Label: "umbrella", Confidence: 0.9}})
	assert.Equal(t, "umbrella", got.MediumCategoryID)
	assert.Equal(t, "umbrellas", got.LargeCategoryID)
	assert.Equal(t, "かさ類", got.LargeCategoryName)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, SourceObject, got.Source)
	assert.Equal(t, []MatchedKeyword{{"umbrella", 1.08}}, got.MatchedKeywords)
}

func TestObjectClassifierPriorityBoost(t *testing.T) {
	t.Parallel()
	oc := NewObjectClassifier(nil, nil)
	objs := []DetectedObject{
		{Label: "person", Confidence: 0.99},
		{Label: "book", Confidence: 0.7},     // 0.56
		{Label: "cell phone", Confidence: 0.5}, // 0.60
	}
	m, ok := oc.Evaluate(objs)
	require.True(t, ok)
	assert.Equal(t, "cell phone", m.Object.Label)
	assert.InDelta(t, 0.6, m.Adjusted, 1e-9)

	got := oc.ClassifyByObjects(objs)
	assert.Equal(t, "mobile_phone", got.MediumCategoryID)
	assert.Equal(t, "携帯電話", got.Name)
	assert.Equal(t, 0.6, got.Confidence)
}

func TestObjectClassifierTieKeepsFirst(t *testing.T) {
	t.Parallel()
	oc := NewObjectClassifier(nil, nil)
	m, ok := oc.Evaluate([]DetectedObject{
		{Label: "handbag", Confidence: 0.5},
		{Label: "backpack", Confidence: 0.5},
	})
	require.True(t, ok)
	assert.Equal(t, "handbag", m.Object.Label)
}

func TestObjectClassifierFallback(t *testing.T) {
	t.Parallel()
	oc := NewObjectClassifier(nil, nil)
	for _, objs := range [][]DetectedObject{
		nil,
		{},
		{{Label: "person", Confidence: 0.9}, {Label: "car", Confidence: 0.8}},
		{{Label: "umbrella", Confidence: 0}},
	} {
		got := oc.ClassifyByObjects(objs)
		assert.True(t, got.IsFallback())
		assert.Zero(t, got.Confidence)
		assert.Empty(t, got.MatchedKeywords)
	}
}

func TestObjectLabelsSorted(t *testing.T) {
	t.Parallel()
	labels := ObjectLabels()
	assert.Len(t, labels, len(objectTable))
	assert.IsNonDecreasing(t, labels)
	for label := range priorityObjects {
		assert.Contains(t, labels, label)
	}
}
