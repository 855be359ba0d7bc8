package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"textbook-rag/internal/parser"
)

var (
	addSource string
	addID     uint64
)

var addCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Index a single document as one record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := parser.ParseFile(args[0], parser.Options{StripMarkdown: cfg.Indexing.StripMarkdown})
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%s has no text", args[0])
		}
		source := addSource
		if source == "" {
			source = filepath.Base(args[0])
		}

		a := newApp(cmd.Context(), cfg, false)
		defer a.Close()

		if err := a.rag.IndexDocument(cmd.Context(), text, source, addID); err != nil {
			return err
		}
		fmt.Printf("Indexed document: %s\n", source)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addSource, "source", "", "source label (default: file name)")
	addCmd.Flags().Uint64Var(&addID, "id", 0, "record id; an existing record with this id is replaced")
	_ = addCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(addCmd)
}
