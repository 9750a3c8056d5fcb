package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yashubustudio/lostfound/classifier"
	"yashubustudio/lostfound/internal/vecstore"
)

var precomputeOut string

var precomputeCmd = &cobra.Command{
	Use:   "precompute",
	Short: "Embed every catalog term and save the vectors",
	Long: `Embeds every keyword of the configured catalog with the configured
embedder and writes the term table to semantic.vectorStore (or --out).
A .db/.sqlite path stores vectors in SQLite; any other path uses a
msgpack file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := precomputeOut
		if out == "" {
			out = cfg.Semantic.VectorStore
		}
		if out == "" {
			return errors.New("no output path: set semantic.vectorStore or --out")
		}
		embedder, err := newEmbedder(cfg, logger)
		if err != nil {
			return err
		}
		if embedder == nil {
			return errors.New("embedder.provider is none; configure ort or ollama")
		}
		defer embedder.Close()

		cat, err := loadCatalog(cfg, logger)
		if err != nil {
			return err
		}
		table, err := classifier.BuildTermTable(cmd.Context(), cat, embedder, cfg.Semantic.Concurrency, logger)
		if err != nil {
			return fmt.Errorf("build term table: %w", err)
		}

		store, err := vecstore.Open(out)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Save(cmd.Context(), table); err != nil {
			return fmt.Errorf("save term table: %w", err)
		}
		logger.Info("term vectors saved",
			zap.String("path", out),
			zap.Int("terms", table.Len()),
			zap.String("model", table.ModelID))
		fmt.Printf("%d term vectors saved to %s\n", table.Len(), out)
		return nil
	},
}

func init() {
	precomputeCmd.Flags().StringVarP(&precomputeOut, "out", "o", "", "vector store path (default semantic.vectorStore)")
}
