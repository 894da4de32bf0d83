package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/wayfarerhq/wayfarer/internal/model"
)

// kindLabels maps suggestion kinds to human-readable badges.
var kindLabels = map[model.SuggestionKind]string{
	model.KindFuel:           "⛽ Fuel",
	model.KindFood:           "🍜 Food",
	model.KindRest:           "😴 Rest",
	model.KindScenic:         "🏞  Scenic",
	model.KindWeatherReroute: "🌧  Weather",
	model.KindPaceAdjust:     "🐢 Pace",
}

// RenderSuggestion formats an active suggestion as a bordered card.
// A nil suggestion renders a subtle "nothing active" line.
func RenderSuggestion(s *model.Suggestion) string {
	if s == nil {
		return SubtleStyle.Render("(no active suggestion)")
	}

	label, ok := kindLabels[s.Kind]
	if !ok {
		label = string(s.Kind)
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(s.Title))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s  %s", label, SubtleStyle.Render(s.Reason)))
	if s.ExpiresAt != nil {
		b.WriteString("\n")
		b.WriteString(SubtleStyle.Render(
			fmt.Sprintf("expires %s", s.ExpiresAt.Format(time.Kitchen))))
	}

	return CardStyle.Render(b.String())
}

// RenderMemory formats the learned per-kind feedback counters as a table.
func RenderMemory(memory model.BanditMemory, now time.Time) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Learned preferences"))
	b.WriteString("\n")

	for _, kind := range model.Kinds() {
		accepts := memory.Accepts[kind]
		declines := memory.Declines[kind]
		if accepts == 0 && declines == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("  %-16s accepted %d, declined %d\n", kind, accepts, declines))
	}

	active := 0
	for _, until := range memory.Cooldowns {
		if now.Before(until) {
			active++
		}
	}
	b.WriteString(SubtleStyle.Render(fmt.Sprintf("  %d active cooldowns", active)))
	return b.String()
}
