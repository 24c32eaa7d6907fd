package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nunajera/kbchat/internal/config"
	"github.com/nunajera/kbchat/internal/provider"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models the configured API key can access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runModels(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
}

func runModels(ctx context.Context, out io.Writer, cfg config.Config) error {
	p, err := newProvider(cfg)
	if err != nil {
		return err
	}
	lister, ok := p.(provider.ModelLister)
	if !ok {
		return errors.New("provider cannot list models")
	}

	models, err := lister.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tOWNER")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\n", m.ID, m.OwnedBy)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d model(s) available\n", len(models))
	return nil
}
