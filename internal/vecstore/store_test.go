package vecstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yashubustudio/lostfound/classifier"
)

func sampleTable() *classifier.TermTable {
	return &classifier.TermTable{
		ModelID: "bge-m3/model.onnx",
		Terms:   []string{"財布", "傘", "ハンドバッグ"},
		Vectors: [][]float32{{1, 0, 0.5}, {0, 1, -0.25}, {0.125, 0.5, 1}},
	}
}

func TestStoresRoundTrip(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"terms.msgpack", "terms.db"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "data", name)
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			store, err := Open(path)
			require.NoError(t, err)
			defer store.Close()
			ctx := context.Background()

			_, err = store.Load(ctx)
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Save(ctx, sampleTable()))
			got, err := store.Load(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(sampleTable(), got); diff != "" {
				t.Errorf("table mismatch (-want +got):\n%s", diff)
			}

			// a second save replaces the first
			smaller := &classifier.TermTable{ModelID: "other", Terms: []string{"鍵"}, Vectors: [][]float32{{2}}}
			require.NoError(t, store.Save(ctx, smaller))
			got, err = store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, smaller, got)
		})
	}
}

func TestOpenPicksBackend(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "a.sqlite"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(filepath.Join(dir, "a.mpk"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
}

func TestSaveRejectsRaggedTable(t *testing.T) {
	t.Parallel()
	bad := &classifier.TermTable{Terms: []string{"a", "b"}, Vectors: [][]float32{{1}}}
	require.Error(t, NewFileStore(filepath.Join(t.TempDir(), "x.msgpack")).Save(context.Background(), bad))
	require.Error(t, NewFileStore(filepath.Join(t.TempDir(), "x.msgpack")).Save(context.Background(), nil))
}

func TestFileStoreRejectsGarbage(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "x.msgpack")
	require.NoError(t, os.WriteFile(path, []byte("not msgpack at all"), 0o644))
	_, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)
}
