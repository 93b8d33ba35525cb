package phone

import "testing"

func TestNormalizeE164_LocalNumberGetsCountryPrefix(t *testing.T) {
	got := NormalizeE164("11 4321-5678")
	if got != "+541143215678" {
		t.Fatalf("expected +541143215678, got %q", got)
	}
}

func TestNormalizeE164_AlreadyE164(t *testing.T) {
	got := NormalizeE164("+541143215678")
	if got != "+541143215678" {
		t.Fatalf("expected unchanged E.164 number, got %q", got)
	}
}

func TestNormalizeE164_InvalidInputPassesThrough(t *testing.T) {
	got := NormalizeE164("not a number")
	if got != "not a number" {
		t.Fatalf("expected passthrough for unparseable input, got %q", got)
	}
}

func TestNormalizeE164_TrimsWhitespace(t *testing.T) {
	got := NormalizeE164("   ")
	if got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}
