package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

const (
	waveDash     = '～'
	longVowel    = 'ー'
	waveDashList = "〜∼⁓〰～"
)

var phoneticVariants = strings.NewReplacer(
	"ヴァ", "バ",
	"ヴィ", "ビ",
	"ヴェ", "ベ",
	"ヴォ", "ボ",
)

// maxNormalizePasses bounds the fixed-point loop in NormalizeText.
const maxNormalizePasses = 4

// NormalizeText canonicalizes text for keyword matching and embedding.
// Catalog terms and query text must both pass through this function.
func NormalizeText(text string) string {
	out := normalizeOnce(text)
	// Dropping whitespace can join a split sequence such as "ヴ ァ" that an
	// earlier step would have rewritten, so repeat until the output is stable.
	for i := 1; i < maxNormalizePasses; i++ {
		next := normalizeOnce(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func normalizeOnce(text string) string {
	if text == "" {
		return ""
	}
	normed := strings.Map(func(r rune) rune {
		if strings.ContainsRune(waveDashList, r) {
			return waveDash
		}
		return r
	}, text)
	normed = norm.NFKC.String(normed)
	normed = strings.Map(narrowFullwidth, normed)
	normed = strings.ToLower(normed)
	normed = strings.Map(func(r rune) rune {
		if r == longVowel {
			return -1
		}
		return r
	}, normed)
	normed = phoneticVariants.Replace(normed)
	normed = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, normed)
	return normed
}

// narrowFullwidth maps East Asian Fullwidth runes to their narrow form.
// Kana are classed Wide, not Fullwidth, so they are left alone.
func narrowFullwidth(r rune) rune {
	p := width.LookupRune(r)
	if p.Kind() != width.EastAsianFullwidth {
		return r
	}
	if n := p.Narrow(); n != 0 {
		return n
	}
	return r
}
