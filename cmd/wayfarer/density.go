package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wayfarerhq/wayfarer/internal/cli"
)

func densityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "density [low|normal|high]",
		Short: "Show or set how often scenic suggestions may appear",
		Long: `Density controls the minimum gap between scenic suggestions:
low allows one every 30 minutes, normal every 15, high every 8.
With no argument the current setting is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			if len(args) == 0 {
				density := loadDensity(ctx, store)
				fmt.Printf("scenic density: %s (at most one scenic nudge per %s)\n",
					cli.TitleStyle.Render(string(density)), density.Interval())
				return nil
			}

			density, err := parseDensity(args[0])
			if err != nil {
				return err
			}
			if err := store.Set(ctx, scenicDensityKey, string(density)); err != nil {
				return fmt.Errorf("failed to save scenic density: %w", err)
			}

			fmt.Printf("scenic density set to %s\n", cli.TitleStyle.Render(string(density)))
			return nil
		},
	}
}
