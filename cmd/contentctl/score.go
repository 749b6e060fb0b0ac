package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/content-engine/internal/quality"
)

func newScoreCmd() *cobra.Command {
	var keyword string
	cmd := &cobra.Command{
		Use:   "score [file]",
		Short: "Score a markdown article (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				text []byte
				err  error
			)
			if len(args) == 1 && args[0] != "-" {
				text, err = os.ReadFile(args[0])
			} else {
				text, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(quality.Score(string(text), quality.Options{Keyword: keyword}))
		},
	}
	cmd.Flags().StringVarP(&keyword, "keyword", "k", "", "primary keyword for the SEO dimension")
	return cmd
}
