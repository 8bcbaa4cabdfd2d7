package trade

import (
	"strings"
	"testing"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		input string
		want  Action
		ok    bool
	}{
		{"BUY", ActionBuy, true},
		{"sell", ActionSell, true},
		{"  Buy  ", ActionBuy, true},
		{"HOLD", "", false},
		{"", "", false},
		{"BUYY", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseAction(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseAction(%q): expected (%q, %v), got (%q, %v)", tt.input, tt.want, tt.ok, got, ok)
		}
	}
}

func TestValidSymbol(t *testing.T) {
	valid := []string{"A", "TSLA", "GOOGL"}
	invalid := []string{"", "TOOLONG", "tsla", "BRK.B", "12AB", "AB CD"}

	for _, s := range valid {
		if !ValidSymbol(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range invalid {
		if ValidSymbol(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestNewClientRef(t *testing.T) {
	ref := NewClientRef("TSLA")

	parts := strings.Split(ref, "-")
	if len(parts) != 3 {
		t.Fatalf("expected symbol-timestamp-suffix, got %q", ref)
	}
	if parts[0] != "TSLA" {
		t.Errorf("expected symbol prefix TSLA, got %q", parts[0])
	}
	if len(parts[2]) != 8 {
		t.Errorf("expected 8-char suffix, got %q", parts[2])
	}

	if other := NewClientRef("TSLA"); other == ref {
		t.Error("two refs for the same symbol should differ")
	}
}
