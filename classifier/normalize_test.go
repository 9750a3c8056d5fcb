package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"fullwidth alnum", "ＡＢＣ１２３", "abc123"},
		{"halfwidth kana", "ｶﾊﾞﾝ", "カバン"},
		{"kana untouched", "かばん", "かばん"},
		{"long vowel removed", "コーヒー", "コヒ"},
		{"v sounds", "ヴァイオリン", "バイオリン"},
		{"whitespace removed", "ハンド バッグ", "ハンドバッグ"},
		{"ideographic space", "黒い　財布", "黒い財布"},
		{"wave dash variants agree", "10〜20", "10~20"},
		{"split v sound", "ヴ ァ", "バ"},
		{"lowercase", "iPhone", "iphone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestNormalizeTextWaveDashesCollapse(t *testing.T) {
	t.Parallel()
	want := NormalizeText("a～b")
	for _, in := range []string{"a〜b", "a∼b", "a⁓b", "a〰b"} {
		assert.Equal(t, want, NormalizeText(in), in)
	}
}

func TestNormalizeTextIdempotent(t *testing.T) {
	t.Parallel()
	samples := []string{
		"ＡＢＣ　ｶﾊﾞﾝ",
		"ヴ ァ ヴ ィ",
		"ヴ　ォーカル",
		"〜財布〜",
		"Ｖｉｎｙｌ 傘 ｰ",
		"ﾊﾝﾄﾞﾊﾞｯｸﾞ",
		"ブラウン の 長財布",
		"\t\n  ",
		"①②③",
	}
	for _, s := range samples {
		once := NormalizeText(s)
		assert.Equal(t, once, NormalizeText(once), "input %q", s)
	}
}
