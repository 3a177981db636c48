package names

import "testing"

func TestFromPresentation_RoundTrip(t *testing.T) {
	n, err := FromPresentation("www.example.com.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := n.String(), "www.example.com"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got, want := n.Labels(), []string{"com", "example", "www"}; !equalStrings(got, want) {
		t.Errorf("Labels() = %v, want %v", got, want)
	}
}

func TestFromPresentation_Root(t *testing.T) {
	n, err := FromPresentation(".")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !n.IsRoot() {
		t.Errorf("expected root name")
	}
}

func TestFromPresentation_EmptyLabel(t *testing.T) {
	if _, err := FromPresentation("www..com"); err != ErrEmptyLabel {
		t.Errorf("expected ErrEmptyLabel, got %v", err)
	}
}

func TestFromPresentation_LabelTooLong(t *testing.T) {
	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := FromPresentation(string(long) + ".com"); err == nil {
		t.Errorf("expected error for over-long label")
	}
}

func TestHasSuffix(t *testing.T) {
	n := MustFromPresentation("www.example.com")
	suffix := MustFromPresentation("example.com")
	matched, ok := n.HasSuffix(suffix)
	if !ok || matched != 2 {
		t.Errorf("HasSuffix() = (%d, %v), want (2, true)", matched, ok)
	}

	notSuffix := MustFromPresentation("other.com")
	if _, ok := n.HasSuffix(notSuffix); ok {
		t.Errorf("expected HasSuffix to fail for non-matching suffix")
	}
}

func TestHasSuffix_CaseInsensitive(t *testing.T) {
	n := MustFromPresentation("WWW.Example.COM")
	suffix := MustFromPresentation("example.com")
	if _, ok := n.HasSuffix(suffix); !ok {
		t.Errorf("expected case-insensitive suffix match")
	}
}

func TestFromWireLabels_RoundTrip(t *testing.T) {
	n, err := FromWireLabels([]string{"www", "example", "com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := n.WireLabels(), []string{"www", "example", "com"}; !equalStrings(got, want) {
		t.Errorf("WireLabels() = %v, want %v", got, want)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
