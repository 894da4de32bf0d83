package geo

import (
	"testing"
	"time"
)

func TestSampleInterval(t *testing.T) {
	speed := func(v float64) *float64 { return &v }

	tests := []struct {
		speedKph *float64
		name     string
		want     time.Duration
		visible  bool
		saver    bool
	}{
		{nil, "no speed data", IdleInterval, true, false},
		{speed(0), "stationary", IdleInterval, true, false},
		{speed(7.9), "walking", IdleInterval, true, false},
		{speed(8), "exactly at cruise threshold", IdleInterval, true, false},
		{speed(8.1), "just above cruise threshold", CruiseInterval, true, false},
		{speed(40), "city driving", CruiseInterval, true, false},
		{speed(70), "exactly at fast threshold", CruiseInterval, true, false},
		{speed(70.1), "just above fast threshold", FastInterval, true, false},
		{speed(120), "highway", FastInterval, true, false},
		{speed(120), "highway but hidden", IdleInterval, false, false},
		{speed(120), "highway but battery saver", IdleInterval, true, true},
		{speed(120), "hidden and battery saver", IdleInterval, false, true},
		{nil, "hidden without data", IdleInterval, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SampleInterval(tt.speedKph, tt.visible, tt.saver)
			if got != tt.want {
				t.Errorf("SampleInterval() = %v, want %v", got, tt.want)
			}
		})
	}
}
