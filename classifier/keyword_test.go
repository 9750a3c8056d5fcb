package classifier

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeywordClassifier(cat *Catalog) *KeywordClassifier {
	return NewKeywordClassifier(BuildKeywordIndex(cat, nil), 0, nil)
}

func TestKeywordClassifierBlackWallet(t *testing.T) {
	t.Parallel()
	kc := newKeywordClassifier(walletCatalog())

	got := kc.Classify(NormalizeText("黒い財布を駅で拾った"))
	want := ClassificationResult{
		LargeCategoryID:    "wallets",
		LargeCategoryName:  "財布類",
		MediumCategoryID:   "wallet",
		MediumCategoryName: "財布",
		Confidence:         0.16,
		MatchedKeywords:    []MatchedKeyword{{Keyword: "財布", Score: 1.6}},
		Source:             SourceKeyword,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestKeywordClassifierRepeatedTermCountsOnce(t *testing.T) {
	t.Parallel()
	kc := newKeywordClassifier(walletCatalog())
	got := kc.Classify(NormalizeText("財布 財布 財布"))
	assert.Equal(t, 0.16, got.Confidence)
	assert.Len(t, got.MatchedKeywords, 1)
}

func TestKeywordClassifierAggregatesPerMedium(t *testing.T) {
	t.Parallel()
	kc := newKeywordClassifier(walletCatalog())
	// 傘: 1*1*0.6 = 0.6, ビニール傘: 1.2*5*0.6 = 3.6
	got := kc.Classify(NormalizeText("ビニール傘"))
	assert.Equal(t, "umbrella", got.MediumCategoryID)
	assert.InDelta(t, 0.42, got.Confidence, 1e-9)
	require.Len(t, got.MatchedKeywords, 2)
	assert.Equal(t, "傘", got.MatchedKeywords[0].Keyword)
	assert.InDelta(t, 0.6, got.MatchedKeywords[0].Score, 1e-9)
	assert.Equal(t, "ビニール傘", got.MatchedKeywords[1].Keyword)
	assert.InDelta(t, 3.6, got.MatchedKeywords[1].Score, 1e-9)
}

func TestKeywordClassifierAggregatesByMediumID(t *testing.T) {
	t.Parallel()
	cat := &Catalog{Large: []LargeCategory{
		{ID: "a", Name: "A", Medium: []MediumCategory{
			{ID: "other", Name: "その他A", Priority: 50, Keywords: []Keyword{{"黒", 1}}},
		}},
		{ID: "b", Name: "B", Medium: []MediumCategory{
			{ID: "other", Name: "その他B", Priority: 50, Keywords: []Keyword{{"布", 1}}},
			{ID: "x", Name: "X", Priority: 40, Keywords: []Keyword{{"財布", 1}}},
		}},
	}}
	// other: 0.5 + 0.5 = 1.0 beats x: 1*2*0.4 = 0.8
	got := newKeywordClassifier(cat).Classify(NormalizeText("黒財布"))
	assert.Equal(t, "other", got.MediumCategoryID)
	assert.Equal(t, "a", got.LargeCategoryID)
	assert.Equal(t, "その他A", got.MediumCategoryName)
	assert.Equal(t, 0.1, got.Confidence)
	require.Len(t, got.MatchedKeywords, 2)
	assert.Equal(t, "黒", got.MatchedKeywords[0].Keyword)
	assert.Equal(t, "布", got.MatchedKeywords[1].Keyword)
}

func TestKeywordClassifierZeroWeightMatchNamesCategory(t *testing.T) {
	t.Parallel()
	cat := &Catalog{Large: []LargeCategory{{
		ID: "wallets", Name: "財布類",
		Medium: []MediumCategory{{ID: "wallet", Name: "財布", Priority: 80, Keywords: []Keyword{{"財布", 0}}}},
	}}}
	got := newKeywordClassifier(cat).Classify(NormalizeText("財布"))
	require.False(t, got.IsFallback())
	assert.Equal(t, SourceKeyword, got.Source)
	assert.Equal(t, "wallet", got.MediumCategoryID)
	assert.Zero(t, got.Confidence)
	assert.Equal(t, []MatchedKeyword{{"財布", 0}}, got.MatchedKeywords)
}

func TestKeywordClassifierKeepsUnroundedKeywordScores(t *testing.T) {
	t.Parallel()
	cat := &Catalog{Large: []LargeCategory{{
		ID: "l", Name: "L",
		Medium: []MediumCategory{{ID: "m", Name: "M", Keywords: []Keyword{{"鍵", 0.3}}}},
	}}}
	got := newKeywordClassifier(cat).Classify(NormalizeText("鍵"))
	require.Len(t, got.MatchedKeywords, 1)
	// 0.3 * 1 * 0.01
	assert.InDelta(t, 0.003, got.MatchedKeywords[0].Score, 1e-12)
	assert.Zero(t, got.Confidence)
}

func TestKeywordClassifierTieBreaks(t *testing.T) {
	t.Parallel()
	t.Run("priority breaks equal totals", func(t *testing.T) {
		cat := &Catalog{Large: []LargeCategory{{
			ID: "l", Name: "L",
			Medium: []MediumCategory{
				// 2 * 2 * 0.5 = 2
				{ID: "low", Name: "low", Priority: 50, Keywords: []Keyword{{"かぎ", 2}}},
				// 1 * 2 * 1.0 = 2
				{ID: "high", Name: "high", Priority: 100, Keywords: []Keyword{{"合鍵", 1}}},
			},
		}}}
		got := newKeywordClassifier(cat).Classify(NormalizeText("かぎと合鍵"))
		assert.Equal(t, "high", got.MediumCategoryID)
	})
	t.Run("catalog order breaks full ties", func(t *testing.T) {
		cat := &Catalog{Large: []LargeCategory{
			{ID: "a", Name: "A", Medium: []MediumCategory{{ID: "first", Name: "first", Priority: 50, Keywords: []Keyword{{"鍵", 1}}}}},
			{ID: "b", Name: "B", Medium: []MediumCategory{{ID: "second", Name: "second", Priority: 50, Keywords: []Keyword{{"鍵", 1}}}}},
		}}
		got := newKeywordClassifier(cat).Classify(NormalizeText("鍵"))
		assert.Equal(t, "first", got.MediumCategoryID)
	})
}

func TestKeywordClassifierUnsetPriorityStillScores(t *testing.T) {
	t.Parallel()
	cat := &Catalog{Large: []LargeCategory{{
		ID: "l", Name: "L",
		Medium: []MediumCategory{{ID: "m", Name: "M", Priority: 0, Keywords: []Keyword{{"ネクタイ", 1}}}},
	}}}
	got := newKeywordClassifier(cat).Classify(NormalizeText("ネクタイ"))
	require.False(t, got.IsFallback())
	// 1 * 4 * 0.01 = 0.04 -> confidence 0.004 rounds to 0
	assert.Equal(t, []MatchedKeyword{{"ネクタイ", 0.04}}, got.MatchedKeywords)
	assert.Zero(t, got.Confidence)
}

func TestKeywordClassifierFallback(t *testing.T) {
	t.Parallel()
	kc := newKeywordClassifier(walletCatalog())
	for _, in := range []string{"", "   ", "　", "スマートフォン"} {
		got := kc.Classify(NormalizeText(in))
		if diff := cmp.Diff(FallbackResult(), got); diff != "" {
			t.Errorf("input %q (-want +got):\n%s", in, diff)
		}
		assert.NotNil(t, got.MatchedKeywords)
	}

	empty := newKeywordClassifier(EmptyCatalog())
	assert.True(t, empty.Classify("財布").IsFallback())

	var nilClassifier *KeywordClassifier
	assert.True(t, nilClassifier.Classify("財布").IsFallback())
}

func TestKeywordClassifierConfidenceBounds(t *testing.T) {
	t.Parallel()
	cat := &Catalog{Large: []LargeCategory{{
		ID: "l", Name: "L",
		Medium: []MediumCategory{{ID: "m", Name: "M", Priority: 100, Keywords: []Keyword{{"ワイヤレスイヤホン", 10}}}},
	}}}
	got := newKeywordClassifier(cat).Classify(NormalizeText("ワイヤレスイヤホン"))
	assert.Equal(t, 1.0, got.Confidence)

	custom := NewKeywordClassifier(BuildKeywordIndex(walletCatalog(), nil), 2, nil)
	assert.Equal(t, 0.8, custom.Classify("財布").Confidence)
}

func TestKeywordClassifierDeterministicAcrossGoroutines(t *testing.T) {
	t.Parallel()
	cat, err := LoadBuiltinCatalog(nil)
	require.NoError(t, err)
	kc := newKeywordClassifier(cat)
	inputs := []string{"黒い長財布", "ビニール傘", "ノートパソコンとマウス", "運転免許証", "なにもない"}
	want := make([]ClassificationResult, len(inputs))
	for i, in := range inputs {
		want[i] = kc.Classify(NormalizeText(in))
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, in := range inputs {
				got := kc.Classify(NormalizeText(in))
				if diff := cmp.Diff(want[i], got); diff != "" {
					t.Errorf("input %q differs:\n%s", in, diff)
				}
			}
		}()
	}
	wg.Wait()
}

func TestKeywordIndexMatch(t *testing.T) {
	t.Parallel()
	cat := &Catalog{Large: []LargeCategory{{
		ID: "l", Name: "L",
		Medium: []MediumCategory{
			{ID: "a", Keywords: []Keyword{{"財布", 1}, {"ー", 1}}},
			{ID: "b", Keywords: []Keyword{{"さいふ", 1}, {"財 布", 1}}},
		},
	}}}
	idx := BuildKeywordIndex(cat, nil)
	assert.Equal(t, 3, idx.Len(), "term that normalizes to empty is skipped")

	hits := idx.Match(NormalizeText("財布"))
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].Medium.ID)
	assert.Equal(t, "b", hits[1].Medium.ID)
	assert.Equal(t, 3, hits[1].TermLength)

	assert.Nil(t, idx.Match(""))
	assert.Nil(t, idx.Match("傘"))
	assert.Zero(t, BuildKeywordIndex(nil, nil).Len())
}
