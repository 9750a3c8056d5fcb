package classifier

import (
	"context"
	"errors"
	"sync/atomic"
)

// walletCatalog is a small catalog used across tests.
func walletCatalog() *Catalog {
	return &Catalog{Large: []LargeCategory{
		{
			ID:   "wallets",
			Name: "財布類",
			Medium: []MediumCategory{
				{ID: "wallet", Name: "財布", Priority: 80, Keywords: []Keyword{{Term: "財布", Weight: 1.0}}},
			},
		},
		{
			ID:   "umbrellas",
			Name: "かさ類",
			Medium: []MediumCategory{
				{ID: "umbrella", Name: "傘", Priority: 60, Keywords: []Keyword{{Term: "傘", Weight: 1.0}, {Term: "ビニール傘", Weight: 1.2}}},
			},
		},
	}}
}

// fakeEmbedder returns fixed vectors keyed by normalized text.
type fakeEmbedder struct {
	model   string
	vectors map[string][]float32
	err     error
	calls   atomic.Int64
}

func (f *fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.vectors[NormalizeText(text)]
	if !ok {
		return nil, errors.New("unknown text " + text)
	}
	return v, nil
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedText(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) ModelID() string { return f.model }
func (f *fakeEmbedder) Close() error    { return nil }
