package machineid

import "testing"

func TestResolveNonEmpty(t *testing.T) {
	id := Resolve()
	if id == "" {
		t.Fatal("Resolve returned an empty identifier")
	}
}

func TestResolveStable(t *testing.T) {
	if Resolve() != Resolve() {
		t.Error("Resolve is not stable across calls")
	}
}

func TestResolveLegacyNonEmpty(t *testing.T) {
	if ResolveLegacy() == "" {
		t.Fatal("ResolveLegacy returned an empty identifier")
	}
	if ResolveLegacy() != ResolveLegacy() {
		t.Error("ResolveLegacy is not stable across calls")
	}
}

func TestFallbackNonEmpty(t *testing.T) {
	if fallbackID() == "" {
		t.Fatal("fallbackID returned an empty identifier")
	}
}
