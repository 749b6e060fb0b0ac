package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/ingest"
	"github.com/joseph-ayodele/content-engine/internal/interlink"
	"github.com/joseph-ayodele/content-engine/internal/repository"
)

func newCorpusCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Manage the interlinking corpus kept in the SQL store",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "import <file>",
			Short: "Upsert the items of a corpus file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				items, err := interlink.LoadCorpusFile(args[0])
				if err != nil {
					return err
				}
				return withContentStore(cmd, root, func(repo repository.ContentRepository) error {
					if err := repo.Upsert(cmd.Context(), items); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "imported %d items\n", len(items))
					return nil
				})
			},
		},
		newCorpusIngestCmd(root),
		&cobra.Command{
			Use:   "list",
			Short: "Print the stored corpus as JSON",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withContentStore(cmd, root, func(repo repository.ContentRepository) error {
					items, err := repo.Items(cmd.Context())
					if err != nil {
						return err
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(items)
				})
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Remove one item",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withContentStore(cmd, root, func(repo repository.ContentRepository) error {
					return repo.Delete(cmd.Context(), args[0])
				})
			},
		},
	)
	return cmd
}

func newCorpusIngestCmd(root *rootOptions) *cobra.Command {
	var (
		baseURL    string
		skipHidden bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Upsert every markdown article under a directory (archived articles included)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContentStore(cmd, root, func(repo repository.ContentRepository) error {
				ing := ingest.NewDirIngestor(repo, baseURL, nil)
				results, stats, err := ing.IngestDirectory(cmd.Context(), args[0], skipHidden)
				if err != nil {
					return err
				}
				for _, r := range results {
					if r.Err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", r.Path, r.Err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ingested %d of %d articles (%d duplicates, %d failed)\n",
					stats.Parsed, stats.Articles, stats.Replaced, stats.Failed)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "site URL used when an article has no url in its front matter")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "skip dot files and directories")
	return cmd
}

func withContentStore(cmd *cobra.Command, root *rootOptions, fn func(repository.ContentRepository) error) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	stores, err := repository.OpenStores(cmd.Context(), cfg, false, root.logger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer stores.Close()
	if stores.Content == nil {
		return fmt.Errorf("%w: the corpus store needs JOB_STORE=postgres or sqlite", common.ErrInvalidInput)
	}
	return fn(stores.Content)
}
