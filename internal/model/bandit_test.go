package model

import (
	"testing"
	"time"
)

func TestBanditMemory_Counters(t *testing.T) {
	m := NewBanditMemory()

	m.RecordAccept(KindScenic)
	m.RecordAccept(KindScenic)
	m.RecordDecline(KindScenic)
	m.RecordDecline(KindRest)

	if got := m.Preference(KindScenic); got != 1 {
		t.Errorf("Preference(scenic) = %d, want 1", got)
	}
	if got := m.Preference(KindRest); got != -1 {
		t.Errorf("Preference(rest) = %d, want -1", got)
	}
	if got := m.Preference(KindFuel); got != 0 {
		t.Errorf("Preference(untouched kind) = %d, want 0", got)
	}
}

func TestBanditMemory_Cooldowns(t *testing.T) {
	m := NewBanditMemory()
	now := time.Now()

	m.SetCooldown("rest-123", now.Add(8*time.Minute))

	if !m.OnCooldown("rest-123", now) {
		t.Error("id should be on cooldown before its deadline")
	}
	if m.OnCooldown("rest-123", now.Add(9*time.Minute)) {
		t.Error("id should be eligible after the deadline")
	}
	if m.OnCooldown("other", now) {
		t.Error("unknown id should never be on cooldown")
	}
}

func TestBanditMemory_PruneCooldowns(t *testing.T) {
	m := NewBanditMemory()
	now := time.Now()
	m.SetCooldown("stale", now.Add(-time.Minute))
	m.SetCooldown("live", now.Add(time.Minute))

	m.PruneCooldowns(now)

	if _, ok := m.Cooldowns["stale"]; ok {
		t.Error("elapsed cooldown should be pruned")
	}
	if _, ok := m.Cooldowns["live"]; !ok {
		t.Error("active cooldown should survive pruning")
	}
}

func TestBanditMemory_RoundTrip(t *testing.T) {
	m := NewBanditMemory()
	m.RecordAccept(KindFood)
	m.RecordDecline(KindPaceAdjust)
	until := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.SetCooldown("food-42", until)
	m.LastBatch = until.Add(-time.Minute)

	data, err := m.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	got, err := UnmarshalBanditMemory(data)
	if err != nil {
		t.Fatalf("UnmarshalBanditMemory() error = %v", err)
	}

	if got.Accepts[KindFood] != 1 || got.Declines[KindPaceAdjust] != 1 {
		t.Errorf("counters lost in round trip: %+v", got)
	}
	if !got.Cooldowns["food-42"].Equal(until) {
		t.Errorf("cooldown = %v, want %v", got.Cooldowns["food-42"], until)
	}
	if !got.LastBatch.Equal(m.LastBatch) {
		t.Errorf("lastBatch = %v, want %v", got.LastBatch, m.LastBatch)
	}
}

func TestUnmarshalBanditMemory_EmptyObject(t *testing.T) {
	m, err := UnmarshalBanditMemory(`{}`)
	if err != nil {
		t.Fatalf("UnmarshalBanditMemory({}) error = %v", err)
	}
	// Maps must be usable even when the stored blob predates them.
	m.RecordAccept(KindRest)
	m.SetCooldown("x", time.Now())
}

func TestUnmarshalBanditMemory_Garbage(t *testing.T) {
	if _, err := UnmarshalBanditMemory("not json"); err == nil {
		t.Error("expected error for invalid payload")
	}
}
