package whitelist

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestIsWhitelisted(t *testing.T) {
	c := NewChecker([]string{" https://App.example.com/ ", "*.clinic.org"}, zaptest.NewLogger(t))

	cases := map[string]bool{
		"https://app.example.com":     true,
		"https://APP.example.com":     true,
		"http://app.example.com":      false,
		"https://portal.clinic.org":   true,
		"https://a.b.clinic.org:8443": true,
		"https://clinic.org":          false,
		"https://evilclinic.org":      false,
		"":                            false,
	}
	for origin, want := range cases {
		if got := c.IsWhitelisted(origin); got != want {
			t.Errorf("IsWhitelisted(%q) = %v, want %v", origin, got, want)
		}
	}
}

func TestWildcardAllowsEverything(t *testing.T) {
	c := NewChecker([]string{"*"}, nil)
	if !c.AllowAll() || !c.IsWhitelisted("https://anything.test") {
		t.Fatal("expected every origin to be allowed")
	}
}

func TestEmptyListAllowsNothing(t *testing.T) {
	c := NewChecker(nil, nil)
	if c.AllowAll() || c.IsWhitelisted("https://app.example.com") {
		t.Fatal("expected no origin to be allowed")
	}
}
