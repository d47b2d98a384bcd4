package models

import (
	"testing"
	"time"
)

func TestStringSliceScan(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected []string
		wantErr  bool
	}{
		{"nil value", nil, []string{}, false},
		{"empty bytes", []byte{}, []string{}, false},
		{"empty string", "", []string{}, false},
		{"empty array", []byte("[]"), []string{}, false},
		{"single error", []byte(`["inv-1: bad amount"]`), []string{"inv-1: bad amount"}, false},
		{"from string", `["a","b"]`, []string{"a", "b"}, false},
		{"invalid json", []byte(`not json`), nil, true},
		{"wrong type int", 123, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s StringSlice
			err := s.Scan(tt.input)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Scan() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Scan() unexpected error: %v", err)
			}
			if len(s) != len(tt.expected) {
				t.Fatalf("Scan() len = %d, want %d", len(s), len(tt.expected))
			}
			for i, v := range s {
				if v != tt.expected[i] {
					t.Errorf("Scan()[%d] = %q, want %q", i, v, tt.expected[i])
				}
			}
		})
	}
}

func TestStringSliceValue(t *testing.T) {
	v, err := StringSlice(nil).Value()
	if err != nil || v != "[]" {
		t.Errorf("Value() = %v, %v, want [] and nil", v, err)
	}

	v, err = StringSlice{"x", "y"}.Value()
	if err != nil || v != `["x","y"]` {
		t.Errorf("Value() = %v, %v, want [\"x\",\"y\"]", v, err)
	}
}

func TestStringSliceContains(t *testing.T) {
	s := StringSlice{"a", "b"}
	if !s.Contains("b") {
		t.Error("Contains(b) = false, want true")
	}
	if s.Contains("c") {
		t.Error("Contains(c) = true, want false")
	}
}

func TestRunLogIsStale(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		status string
		age    time.Duration
		max    time.Duration
		want   bool
	}{
		{"running past limit", RunStatusRunning, 3 * time.Hour, 2 * time.Hour, true},
		{"running within limit", RunStatusRunning, time.Hour, 2 * time.Hour, false},
		{"completed long ago", RunStatusCompleted, 10 * time.Hour, 2 * time.Hour, false},
		{"failed long ago", RunStatusFailed, 10 * time.Hour, 2 * time.Hour, false},
		{"no limit", RunStatusRunning, 10 * time.Hour, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &RunLog{Status: tt.status, StartedAt: now.Add(-tt.age)}
			if got := r.IsStale(now, tt.max); got != tt.want {
				t.Errorf("IsStale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunLogDuration(t *testing.T) {
	start := time.Now()
	r := &RunLog{Status: RunStatusRunning, StartedAt: start}
	if r.Duration() != 0 {
		t.Error("running rows have no duration")
	}

	done := start.Add(90 * time.Second)
	r.CompletedAt = &done
	if r.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v, want 1m30s", r.Duration())
	}
}

func TestInvoiceDealEligible(t *testing.T) {
	tests := []struct {
		state string
		want  bool
	}{
		{InvoiceStateDraft, false},
		{"", false},
		{InvoiceStateOpen, true},
		{InvoiceStatePaid, true},
		{InvoiceStateClosed, true},
	}

	for _, tt := range tests {
		inv := &Invoice{State: tt.state}
		if got := inv.DealEligible(); got != tt.want {
			t.Errorf("DealEligible(%q) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestInvoiceDealStage(t *testing.T) {
	tests := []struct {
		state string
		want  string
	}{
		{InvoiceStateOpen, "contractsent"},
		{InvoiceStatePaid, "closedwon"},
		{InvoiceStateClosed, "closedwon"},
	}

	for _, tt := range tests {
		inv := &Invoice{State: tt.state}
		if got := inv.DealStage(); got != tt.want {
			t.Errorf("DealStage(%q) = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestInvoiceHasDeal(t *testing.T) {
	inv := &Invoice{}
	if inv.HasDeal() {
		t.Error("HasDeal() = true without a deal id")
	}
	empty := ""
	inv.CRMDealID = &empty
	if inv.HasDeal() {
		t.Error("HasDeal() = true with an empty deal id")
	}
	id := "deal-1"
	inv.CRMDealID = &id
	if !inv.HasDeal() {
		t.Error("HasDeal() = false with a deal id")
	}
}
