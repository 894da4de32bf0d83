package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wayfarerhq/wayfarer/internal/cli"
	"github.com/wayfarerhq/wayfarer/internal/common"
	"github.com/wayfarerhq/wayfarer/internal/engine"
	"github.com/wayfarerhq/wayfarer/internal/geo"
	"github.com/wayfarerhq/wayfarer/internal/model"
	"github.com/wayfarerhq/wayfarer/internal/service"
	"github.com/wayfarerhq/wayfarer/internal/sim"
	"github.com/wayfarerhq/wayfarer/internal/stream"
)

func replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <track.ndjson>",
		Short: "Replay a recorded track through the suggestion pipeline",
		Long: `Replay reads a newline-delimited JSON track file (one point per line
with time, lat, lon and optional speed_kph) and plays it back as if the
vehicle were driving it now. Suggestion cards print as they activate.`,
		Args: cobra.ExactArgs(1),
		RunE: runReplay,
	}

	cmd.Flags().Float64("speedup", 10, "time compression factor (1 is real time)")
	cmd.Flags().Bool("hidden", false, "simulate a hidden surface (suggestions are suppressed)")

	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if !viper.GetBool("copilot.enabled") {
		return common.ErrDisabled
	}

	speedup, _ := cmd.Flags().GetFloat64("speedup")
	hidden, _ := cmd.Flags().GetBool("hidden")
	if speedup <= 0 {
		return fmt.Errorf("speedup must be positive, got %v", speedup)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open track: %w", err)
	}
	points, err := sim.LoadTrack(f)
	closeErr := f.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close track: %w", closeErr)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close storage", "error", err)
		}
	}()

	replay := sim.NewReplay(points)
	replay.Speedup = speedup

	bar := progressbar.NewOptions(replay.Len(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]Replaying track...[reset]"),
	)
	done := make(chan struct{})
	replay.OnProgress = func(delivered, total int) {
		_ = bar.Set(delivered)
		if delivered == total {
			close(done)
		}
	}

	visibility := sim.NewVisibility(!hidden)
	battery := &sim.Battery{
		Reading: service.BatteryStatus{Level: 0.9, Remaining: 5 * time.Hour},
		Known:   true,
	}
	prefs := &sim.StaticPreferences{
		Snapshot: &model.Preferences{UserID: "local", ScenicDensity: loadDensity(ctx, store)},
	}

	sampler := geo.NewSampler(replay, visibility, battery, prefs, &sim.StaticWeather{}, geo.DefaultConfig())
	recommender := engine.New(ctx, store, sampler, visibility, engine.Config{})
	feed := stream.New(time.Now)

	unsubBatch := recommender.On(feed.Push)
	defer unsubBatch()
	unsubFeed := feed.Subscribe(func(active *model.Suggestion) {
		if active != nil {
			fmt.Println(cli.RenderSuggestion(active))
		}
	})
	defer unsubFeed()

	recommender.Start(ctx)
	defer recommender.Stop()
	if err := sampler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start positioning: %w", err)
	}
	defer sampler.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("replayed %d points", replay.Len())))
	return nil
}
