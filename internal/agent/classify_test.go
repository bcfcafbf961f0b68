package agent

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestClassifyAuthCodesAreNotRetryable(t *testing.T) {
	t.Parallel()

	for _, code := range Codes(CategoryAuth) {
		got := Classify(CategoryService, code, "denied")
		if got.Category != CategoryAuth {
			t.Errorf("code %s: expected category auth, got %s", code, got.Category)
		}
		if got.Retryable {
			t.Errorf("code %s: expected retryable=false", code)
		}
	}
}

func TestClassifyNetworkAndServiceCodesAreRetryable(t *testing.T) {
	t.Parallel()

	for _, c := range []Category{CategoryNetwork, CategoryService} {
		for _, code := range Codes(c) {
			got := Classify(CategoryUnknown, code, "")
			if got.Category != c {
				t.Errorf("code %s: expected category %s, got %s", code, c, got.Category)
			}
			if !got.Retryable {
				t.Errorf("code %s: expected retryable=true", code)
			}
		}
	}
}

func TestClassifyByKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind      Category
		retryable bool
	}{
		{CategoryAuth, false},
		{CategoryNetwork, true},
		{CategoryService, true},
		{CategoryValidation, false},
		{CategoryParsing, true},
	}
	for _, tt := range tests {
		got := Classify(tt.kind, "", "")
		if got.Category != tt.kind {
			t.Errorf("kind %s: got category %s", tt.kind, got.Category)
		}
		if got.Retryable != tt.retryable {
			t.Errorf("kind %s: expected retryable=%v", tt.kind, tt.retryable)
		}
		if got.Message == "" || got.Guidance == "" {
			t.Errorf("kind %s: expected message and guidance", tt.kind)
		}
	}
}

func TestClassifyCodeBeatsKind(t *testing.T) {
	t.Parallel()

	// An access-denied code reported as a service failure is still auth.
	got := Classify(CategoryService, "AccessDenied", "")
	if got.Category != CategoryAuth {
		t.Fatalf("expected auth, got %s", got.Category)
	}

	// A throttling code reported as a parsing failure is service (higher priority).
	got = Classify(CategoryParsing, "ThrottlingException", "")
	if got.Category != CategoryService {
		t.Fatalf("expected service, got %s", got.Category)
	}
}

func TestClassifyUnknown(t *testing.T) {
	t.Parallel()

	got := Classify(CategoryUnknown, "SomethingOdd", "disk on fire")
	if got.Category != CategoryUnknown {
		t.Fatalf("expected unknown, got %s", got.Category)
	}
	if got.Retryable {
		t.Fatal("expected unknown to be non-retryable")
	}
	if !strings.Contains(got.Message, "disk on fire") {
		t.Fatalf("expected raw message in %q", got.Message)
	}

	got = Classify(CategoryUnknown, "", "")
	if !strings.Contains(got.Message, noDetailPlaceholder) {
		t.Fatalf("expected placeholder in %q", got.Message)
	}
}

func TestCategoryJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(ErrorInfo{Category: CategoryService})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"category":"service"`) {
		t.Fatalf("unexpected JSON: %s", data)
	}

	var c Category
	if err := c.UnmarshalText([]byte("parsing")); err != nil || c != CategoryParsing {
		t.Fatalf("UnmarshalText: got %v, %v", c, err)
	}
	if err := c.UnmarshalText([]byte("bogus")); err == nil {
		t.Fatal("expected error for unknown category")
	}
	if CategoryNetwork.Taxonomy() != "network_error" {
		t.Fatalf("unexpected taxonomy name %q", CategoryNetwork.Taxonomy())
	}
}
