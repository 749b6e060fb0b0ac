package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/content-engine/internal/export"
	"github.com/joseph-ayodele/content-engine/internal/interlink"
)

type interlinkOptions struct {
	corpus     string
	maxResults int
	xlsx       string
}

func newInterlinkCmd(_ *rootOptions) *cobra.Command {
	opts := &interlinkOptions{}
	cmd := &cobra.Command{
		Use:   "interlink <keyword>",
		Short: "Rank a corpus file for internal links to a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := interlink.LoadCorpusFile(opts.corpus)
			if err != nil {
				return err
			}
			now := time.Now()
			opps := interlink.FindOpportunities(args[0], items, now, opts.maxResults)

			if opts.xlsx != "" {
				data, err := export.InterlinksXLSX(args[0], opps, now.UTC())
				if err != nil {
					return err
				}
				if err := os.WriteFile(opts.xlsx, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d opportunities to %s\n", len(opps), opts.xlsx)
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(opps)
		},
	}
	cmd.Flags().StringVar(&opts.corpus, "corpus", "", "corpus file (.json, .yaml or .yml)")
	cmd.Flags().IntVar(&opts.maxResults, "max", interlink.DefaultMaxResults, "maximum opportunities")
	cmd.Flags().StringVar(&opts.xlsx, "xlsx", "", "write an XLSX report to this path instead of JSON")
	_ = cmd.MarkFlagRequired("corpus")
	return cmd
}
