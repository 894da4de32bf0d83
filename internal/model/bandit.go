package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// BanditMemory is the recommender's only persisted state: per-kind
// accept/decline counters, per-suggestion cooldowns, and the timestamp of
// the last emitted batch. It survives restarts via the key-value store and
// has no expiry of its own.
type BanditMemory struct {
	Accepts   map[SuggestionKind]int `json:"accepts"`
	Declines  map[SuggestionKind]int `json:"declines"`
	Cooldowns map[string]time.Time   `json:"cooldowns"` // suggestion id -> not eligible until
	LastBatch time.Time              `json:"lastBatch"`
}

// NewBanditMemory returns an empty memory ready for use.
func NewBanditMemory() *BanditMemory {
	return &BanditMemory{
		Accepts:   make(map[SuggestionKind]int),
		Declines:  make(map[SuggestionKind]int),
		Cooldowns: make(map[string]time.Time),
	}
}

// RecordAccept increments the accept counter for a kind.
func (m *BanditMemory) RecordAccept(kind SuggestionKind) {
	m.Accepts[kind]++
}

// RecordDecline increments the decline counter for a kind.
func (m *BanditMemory) RecordDecline(kind SuggestionKind) {
	m.Declines[kind]++
}

// Preference is the learned accept-minus-decline weight for a kind.
func (m *BanditMemory) Preference(kind SuggestionKind) int {
	return m.Accepts[kind] - m.Declines[kind]
}

// SetCooldown marks a suggestion id ineligible until the given time.
func (m *BanditMemory) SetCooldown(id string, until time.Time) {
	m.Cooldowns[id] = until
}

// OnCooldown reports whether id is still ineligible at now.
func (m *BanditMemory) OnCooldown(id string, now time.Time) bool {
	until, ok := m.Cooldowns[id]
	return ok && now.Before(until)
}

// PruneCooldowns drops entries that have already elapsed, bounding the
// serialized size of long-lived memories.
func (m *BanditMemory) PruneCooldowns(now time.Time) {
	for id, until := range m.Cooldowns {
		if !now.Before(until) {
			delete(m.Cooldowns, id)
		}
	}
}

// Marshal serializes the memory for the key-value store.
func (m *BanditMemory) Marshal() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal bandit memory: %w", err)
	}
	return string(b), nil
}

// UnmarshalBanditMemory parses a stored memory. Missing maps are
// initialized so callers never see nil maps.
func UnmarshalBanditMemory(data string) (*BanditMemory, error) {
	m := NewBanditMemory()
	if err := json.Unmarshal([]byte(data), m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bandit memory: %w", err)
	}
	if m.Accepts == nil {
		m.Accepts = make(map[SuggestionKind]int)
	}
	if m.Declines == nil {
		m.Declines = make(map[SuggestionKind]int)
	}
	if m.Cooldowns == nil {
		m.Cooldowns = make(map[string]time.Time)
	}
	return m, nil
}
