package model

import "testing"

func TestCanBetTransitionTo(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		{BetStatusPending, BetStatusSettled, true},
		{BetStatusPending, BetStatusCancelled, true},
		{BetStatusPending, BetStatusRefunded, true},
		// 终态不允许再流转
		{BetStatusSettled, BetStatusRefunded, false},
		{BetStatusSettled, BetStatusPending, false},
		{BetStatusRefunded, BetStatusSettled, false},
		{BetStatusCancelled, BetStatusSettled, false},
		{BetStatusRefunded, BetStatusRefunded, false},
		// 未知状态
		{"UNKNOWN", BetStatusSettled, false},
		{BetStatusPending, "UNKNOWN", false},
	}

	for _, tt := range tests {
		if got := CanBetTransitionTo(tt.from, tt.to); got != tt.want {
			t.Errorf("CanBetTransitionTo(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCanJobTransitionTo(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		{JobStatusPending, JobStatusRunning, true},
		{JobStatusPending, JobStatusCancelled, true},
		{JobStatusRunning, JobStatusSucceeded, true},
		{JobStatusRunning, JobStatusAwaitingRetry, true},
		{JobStatusRunning, JobStatusExhausted, true},
		{JobStatusAwaitingRetry, JobStatusRunning, true},
		// 首次执行后不允许取消
		{JobStatusRunning, JobStatusCancelled, false},
		{JobStatusAwaitingRetry, JobStatusCancelled, false},
		// 终态不允许再流转
		{JobStatusSucceeded, JobStatusRunning, false},
		{JobStatusExhausted, JobStatusRunning, false},
		{JobStatusCancelled, JobStatusRunning, false},
	}

	for _, tt := range tests {
		if got := CanJobTransitionTo(tt.from, tt.to); got != tt.want {
			t.Errorf("CanJobTransitionTo(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestIsJobTerminal(t *testing.T) {
	terminal := []string{JobStatusSucceeded, JobStatusExhausted, JobStatusCancelled}
	for _, s := range terminal {
		if !IsJobTerminal(s) {
			t.Errorf("IsJobTerminal(%s) = false, want true", s)
		}
	}
	active := []string{JobStatusPending, JobStatusRunning, JobStatusAwaitingRetry}
	for _, s := range active {
		if IsJobTerminal(s) {
			t.Errorf("IsJobTerminal(%s) = true, want false", s)
		}
	}
}
