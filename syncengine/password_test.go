package syncengine

import "testing"

func TestGeneratePasswordUsesFixedValueOutsideProd(t *testing.T) {
	e := &Engine{env: EnvDev, testPass: "fixed-test-password"}
	got, err := e.generatePassword()
	if err != nil {
		t.Fatalf("generatePassword: %v", err)
	}
	if got != "fixed-test-password" {
		t.Fatalf("expected fixed dev password, got %q", got)
	}
}

func TestGeneratePasswordIsRandomInProd(t *testing.T) {
	e := &Engine{env: EnvProd}
	a, err := e.generatePassword()
	if err != nil {
		t.Fatalf("generatePassword: %v", err)
	}
	b, err := e.generatePassword()
	if err != nil {
		t.Fatalf("generatePassword: %v", err)
	}
	if a == b {
		t.Fatal("expected two distinct generated passwords")
	}
	if len(a) < 24 {
		t.Fatalf("expected at least 24 chars of base64, got %d", len(a))
	}
}
