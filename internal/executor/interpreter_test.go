// interpreter_test.go tests interpreter allowlist enforcement,
// LookPath behavior, caching, and thread safety.
package executor

import (
	"strings"
	"sync"
	"testing"
)

func TestVerifyInterpreter_ValidSh(t *testing.T) {
	// sh exists on any POSIX system
	path, err := VerifyInterpreter("sh")
	if err != nil {
		t.Fatalf("expected sh to be found, got error: %v", err)
	}
	if path == "" {
		t.Fatal("expected non-empty path")
	}
}

func TestVerifyInterpreter_InvalidInterpreter(t *testing.T) {
	_, err := VerifyInterpreter("ruby")
	if err == nil {
		t.Fatal("expected error for invalid interpreter")
	}
	if !strings.Contains(err.Error(), "invalid interpreter") {
		t.Errorf("expected 'invalid interpreter' error, got: %v", err)
	}
}

func TestVerifyInterpreter_EmptyString(t *testing.T) {
	_, err := VerifyInterpreter("")
	if err == nil {
		t.Fatal("expected error for empty interpreter")
	}
}

func TestInterpreterCache_Caching(t *testing.T) {
	cache := NewInterpreterCache()

	path1, err := cache.VerifyInterpreter("sh")
	if err != nil {
		t.Fatalf("first lookup failed: %v", err)
	}
	path2, err := cache.VerifyInterpreter("sh")
	if err != nil {
		t.Fatalf("cached lookup failed: %v", err)
	}
	if path1 != path2 {
		t.Errorf("cache returned different path: %s vs %s", path1, path2)
	}
}

func TestInterpreterCache_Concurrent(t *testing.T) {
	cache := NewInterpreterCache()

	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.VerifyInterpreter("sh"); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent access error: %v", err)
	}
}

func TestIsValidInterpreter(t *testing.T) {
	tests := []struct {
		interpreter string
		want        bool
	}{
		{"bash", true},
		{"sh", true},
		{"python", true},
		{"perl", true},
		{"ruby", false},
		{"node", false},
		{"", false},
		{"BASH", false},  // case sensitive
		{"bash ", false}, // no whitespace normalization
	}

	for _, tt := range tests {
		if got := isValidInterpreter(tt.interpreter); got != tt.want {
			t.Errorf("isValidInterpreter(%q) = %v, want %v", tt.interpreter, got, tt.want)
		}
	}
}
