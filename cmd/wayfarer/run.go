package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"time"

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

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive a simulated trip and watch suggestions arrive",
		Long: `Run starts a synthetic drive from the given coordinates and pipes it
through the full suggestion pipeline. Suggestion cards print as they
activate; type 'a' to accept the active one or 'd' to decline it, which
feeds the learning loop.`,
		RunE: runRun,
	}

	cmd.Flags().Int64("seed", 42, "random seed for the simulated drive")
	cmd.Flags().Float64("lat", 32.0853, "starting latitude")
	cmd.Flags().Float64("lon", 34.7818, "starting longitude")
	cmd.Flags().Duration("duration", 0, "stop after this long (0 runs until interrupted)")
	cmd.Flags().Bool("hidden", false, "simulate a hidden surface (suggestions are suppressed)")
	cmd.Flags().Bool("battery-saver", false, "simulate a low battery (sampling drops to the idle cadence)")
	cmd.Flags().Bool("severe-weather", false, "inject a severe weather alert")

	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if !viper.GetBool("copilot.enabled") {
		return common.ErrDisabled
	}

	seed, _ := cmd.Flags().GetInt64("seed")
	lat, _ := cmd.Flags().GetFloat64("lat")
	lon, _ := cmd.Flags().GetFloat64("lon")
	duration, _ := cmd.Flags().GetDuration("duration")
	hidden, _ := cmd.Flags().GetBool("hidden")
	saver, _ := cmd.Flags().GetBool("battery-saver")
	severe, _ := cmd.Flags().GetBool("severe-weather")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Warn("Failed to close storage", "error", closeErr)
		}
	}()

	density := loadDensity(ctx, store)

	drive := sim.NewDrive(seed, lat, lon)
	visibility := sim.NewVisibility(!hidden)
	battery := &sim.Battery{
		Reading: service.BatteryStatus{Level: 0.9, Remaining: 5 * time.Hour},
		Known:   true,
	}
	if saver {
		battery.Reading = service.BatteryStatus{Level: 0.03, Remaining: 5 * time.Minute}
	}
	prefs := &sim.StaticPreferences{
		Snapshot: &model.Preferences{UserID: "local", ScenicDensity: density},
	}
	weather := &sim.StaticWeather{}
	if severe {
		weather.Current = []model.WeatherAlert{
			{Severity: model.SeveritySevere, Headline: "Severe thunderstorm ahead"},
		}
	}

	sampler := geo.NewSampler(drive, visibility, battery, prefs, weather, geo.DefaultConfig())
	recommender := engine.New(ctx, store, sampler, visibility, engine.Config{})
	feed := stream.New(time.Now)

	unsubBatch := recommender.On(feed.Push)
	defer unsubBatch()
	unsubFeed := feed.Subscribe(func(active *model.Suggestion) {
		fmt.Println(cli.RenderSuggestion(active))
	})
	defer unsubFeed()

	recommender.Start(ctx)
	defer recommender.Stop()
	if err := sampler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start positioning: %w", err)
	}
	defer sampler.Stop()

	go readFeedback(cmd, recommender, feed)

	slog.Info("Simulated drive started",
		"lat", lat, "lon", lon, "seed", seed, "scenic_density", density)

	if duration > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(duration):
		}
	} else {
		<-ctx.Done()
	}

	return nil
}

// readFeedback turns single-letter stdin lines into accept/decline
// feedback on the active suggestion.
func readFeedback(cmd *cobra.Command, recommender *engine.Recommender, feed *stream.Stream) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		active := feed.Active()
		if active == nil {
			continue
		}

		var err error
		switch sc.Text() {
		case "a", "y":
			err = recommender.Accept(cmd.Context(), active.ID, active.Kind)
			fmt.Println(cli.SubtleStyle.Render("accepted: " + active.Title))
		case "d", "n":
			err = recommender.Decline(cmd.Context(), active.ID, active.Kind)
			fmt.Println(cli.SubtleStyle.Render("declined: " + active.Title))
		default:
			continue
		}
		if err != nil {
			slog.Warn("Failed to record feedback", "error", err)
			continue
		}
		feed.Clear()
	}
}
