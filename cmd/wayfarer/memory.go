package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wayfarerhq/wayfarer/internal/cli"
	"github.com/wayfarerhq/wayfarer/internal/common"
	"github.com/wayfarerhq/wayfarer/internal/engine"
	"github.com/wayfarerhq/wayfarer/internal/model"
)

func memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect or reset learned suggestion preferences",
	}

	cmd.AddCommand(memoryShowCmd())
	cmd.AddCommand(memoryResetCmd())

	return cmd
}

func memoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show accept/decline counts and active cooldowns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			raw, err := store.Get(ctx, engine.MemoryKey)
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					fmt.Println(cli.SubtleStyle.Render("no learned preferences yet"))
					return nil
				}
				return fmt.Errorf("failed to load memory: %w", err)
			}

			memory, err := model.UnmarshalBanditMemory(raw)
			if err != nil {
				return fmt.Errorf("stored memory is corrupt: %w", err)
			}

			fmt.Println(cli.RenderMemory(*memory, time.Now()))
			return nil
		},
	}
}

func memoryResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget all accept/decline history and cooldowns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			if err := store.Delete(ctx, engine.MemoryKey); err != nil {
				return fmt.Errorf("failed to reset memory: %w", err)
			}

			fmt.Println(cli.TitleStyle.Render("✓") + " learned preferences cleared")
			return nil
		},
	}
}
