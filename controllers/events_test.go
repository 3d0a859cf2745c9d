package controllers

import (
	"testing"
	"time"
)

func TestRegistrationWindowOpen(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	before := now.Add(-48 * time.Hour)
	after := now.Add(48 * time.Hour)
	var zero time.Time

	tests := []struct {
		name string
		from time.Time
		to   time.Time
		want bool
	}{
		{"no bounds", zero, zero, true},
		{"inside window", before, after, true},
		{"before opens", after, zero, false},
		{"after closes", zero, before, false},
		{"open lower bound only", before, zero, true},
		{"open upper bound only", zero, after, true},
		{"exactly at open", now, after, true},
		{"exactly at close", before, now, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := registrationWindowOpen(tt.from, tt.to, now); got != tt.want {
				t.Errorf("registrationWindowOpen(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
