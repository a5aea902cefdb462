package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/personachat/internal/rag"
)

var ingestCollection string

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Add documents to the vector index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()
		if a.ingestor == nil {
			return errors.New("no embedder configured, set embedding.provider")
		}

		collection := ingestCollection
		if collection == "" {
			collection = cfg.RAG.Collection
		}

		total := 0
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			name := filepath.Base(path)
			text, err := rag.ExtractText(name, data)
			if err != nil {
				return err
			}
			n, err := a.ingestor.Ingest(cmd.Context(), collection, name, text)
			if err != nil {
				return fmt.Errorf("ingesting %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks\n", name, n)
			total += n
		}

		if err := a.saveIndex(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "collection %s now holds %d chunks (+%d)\n",
			collection, a.index.Count(collection), total)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCollection, "collection", "", "target collection (defaults to rag.collection)")
	rootCmd.AddCommand(ingestCmd)
}
