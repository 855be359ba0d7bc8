package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"textbook-rag/internal/helper"
)

var (
	askContext string
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		if strings.TrimSpace(question) == "" {
			return fmt.Errorf("question cannot be empty")
		}

		a := newApp(cmd.Context(), cfg, true)
		defer a.Close()

		result, err := a.rag.Answer(cmd.Context(), question, askContext)
		if err != nil {
			return err
		}

		if askJSON {
			helper.PrettyPrint(result)
			return nil
		}
		fmt.Printf("%s\n\n", result.Answer)
		if len(result.Sources) > 0 {
			fmt.Println("Sources:")
			for _, s := range result.Sources {
				fmt.Printf("  - %s\n", s)
			}
		}
		fmt.Printf("Confidence: %.3f\n", result.Confidence)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askContext, "context", "", "selected text to answer from instead of searching")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(askCmd)
}
