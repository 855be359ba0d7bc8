package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"textbook-rag/internal/helper"
	"textbook-rag/internal/indexer"
	"textbook-rag/internal/parser"
	"textbook-rag/internal/progress"
)

var (
	indexStartID uint64
	indexInclude []string
	indexExport  string
	indexStrip   bool
	indexJSON    bool
)

var indexCmd = &cobra.Command{
	Use:   "index [docs-dir]",
	Short: "Index every matching document under a directory",
	Long: `Walks the docs directory, splits each document into chunks and stores them in
the vector index. Ids start at --start-id and advance once per chunk, so a re-run
with the same start id overwrites the previous records.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		root := cfg.Indexing.DocsPath
		if len(args) == 1 {
			root = args[0]
		}
		opts := indexer.Options{
			Include:   cfg.Indexing.Include,
			ChunkSize: cfg.Indexing.ChunkSize,
			MinLength: cfg.Indexing.MinLength,
			StartID:   cfg.Indexing.StartID,
			Parse:     parser.Options{StripMarkdown: cfg.Indexing.StripMarkdown || indexStrip},
		}
		if cmd.Flags().Changed("start-id") {
			opts.StartID = indexStartID
		}
		if len(indexInclude) > 0 {
			opts.Include = indexInclude
		}

		// indexing never generates, so no llm is wired
		a := newApp(ctx, cfg, false)
		defer a.Close()

		summary, err := indexer.NewPipeline(a.rag, opts, progress.NewReporter()).Run(ctx, root)
		if err != nil {
			return err
		}

		if indexExport != "" {
			if a.chromem == nil {
				return fmt.Errorf("--export requires the chromem backend")
			}
			if err := helper.CreateFolder(filepath.Dir(indexExport)); err != nil {
				return err
			}
			if err := a.chromem.Export(indexExport); err != nil {
				return err
			}
			log.Info().Str("file", indexExport).Msg("Exported collection")
		}

		if indexJSON {
			helper.PrettyPrint(summary)
			return nil
		}
		if summary.NextID > summary.FirstID {
			fmt.Printf("Successfully indexed %d document chunks (ids %d to %d)\n",
				summary.ChunksIndexed, summary.FirstID, summary.NextID-1)
		} else {
			fmt.Println("No documents indexed")
		}
		if summary.FilesFailed > 0 || summary.ChunkFailures > 0 {
			fmt.Printf("%d files and %d chunks failed, see the log for details\n", summary.FilesFailed, summary.ChunkFailures)
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().Uint64Var(&indexStartID, "start-id", 1, "first record id to assign")
	indexCmd.Flags().StringSliceVar(&indexInclude, "include", nil, "doublestar patterns to index (default from config)")
	indexCmd.Flags().StringVar(&indexExport, "export", "", "write an encrypted snapshot of the chromem collection to this file")
	indexCmd.Flags().BoolVar(&indexStrip, "strip-markdown", false, "index markdown as plain text")
	indexCmd.Flags().BoolVar(&indexJSON, "json", false, "print the run summary as JSON")
	rootCmd.AddCommand(indexCmd)
}
