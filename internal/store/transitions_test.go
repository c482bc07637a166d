package store

import "testing"

func TestValidTransition(t *testing.T) {
	cases := []struct {
		action string
		from   string
		valid  bool
	}{
		{"assign", "pending", true},
		{"assign", "in_progress", false},
		{"assign", "finalized", false},
		{"finalize", "in_progress", true},
		{"finalize", "pending", false},
		{"finalize", "finalized", false},
		{"sweep", "in_progress", true},
		{"sweep", "pending", false},
		{"unassign", "in_progress", true},
		{"unassign", "finalized", false},
		{"revert", "finalized", true},
		{"revert", "cancelled", true},
		{"revert", "pending", false},
		{"revert", "in_progress", false},
		{"unknown", "pending", false},
	}

	for _, tt := range cases {
		if got := ValidTransition(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidTransition(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}

func TestAllowedStatuses(t *testing.T) {
	got := AllowedStatuses("revert")
	want := []string{"finalized", "cancelled"}
	if len(got) != len(want) {
		t.Fatalf("AllowedStatuses(revert) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("AllowedStatuses(revert) = %v, want %v", got, want)
		}
	}

	// Callers may mutate the returned slice without corrupting the table.
	got[0] = "pending"
	if again := AllowedStatuses("revert"); again[0] != "finalized" {
		t.Fatalf("AllowedStatuses must return a copy, got %v", again)
	}

	if unknown := AllowedStatuses("unknown"); len(unknown) != 0 {
		t.Fatalf("unknown action should allow nothing, got %v", unknown)
	}
}
