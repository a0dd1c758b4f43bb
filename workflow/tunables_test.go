package workflow

import (
	"testing"
)

func TestReorderThreshold_FromEnv(t *testing.T) {
	tests := []struct {
		env      string
		expected string
	}{
		{env: "", expected: "10"},
		{env: "25", expected: "25"},
		{env: "2.5", expected: "2.5"},
		{env: "not-a-number", expected: "10"},
	}
	for _, tc := range tests {
		t.Setenv("REORDER_THRESHOLD", tc.env)
		if got := reorderThreshold(); got.String() != tc.expected {
			t.Fatalf("REORDER_THRESHOLD=%q: expected %s, got %s", tc.env, tc.expected, got.String())
		}
	}
}

func TestTrackTraceMaxAttempts_FromEnv(t *testing.T) {
	tests := []struct {
		env      string
		expected int
	}{
		{env: "", expected: 10},
		{env: "3", expected: 3},
		{env: "0", expected: 10},
		{env: "-1", expected: 10},
		{env: "abc", expected: 10},
	}
	for _, tc := range tests {
		t.Setenv("TRACKTRACE_MAX_ATTEMPTS", tc.env)
		if got := trackTraceMaxAttempts(); got != tc.expected {
			t.Fatalf("TRACKTRACE_MAX_ATTEMPTS=%q: expected %d, got %d", tc.env, tc.expected, got)
		}
	}
}
