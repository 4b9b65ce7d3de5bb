package syncengine

import "testing"

func TestKebabCase(t *testing.T) {
	cases := map[string]string{
		"Officers":         "officers",
		"Senior Officers":  "senior-officers",
		"  Weird__Name!! ": "weird-name",
		"already-kebab":    "already-kebab",
	}
	for input, want := range cases {
		if got := kebabCase(input); got != want {
			t.Errorf("kebabCase(%q) = %q, want %q", input, got, want)
		}
	}
}
