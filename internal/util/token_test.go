package util

import (
	"strings"
	"testing"
)

func TestGenerateResumptionToken(t *testing.T) {
	token, err := GenerateResumptionToken()
	if err != nil {
		t.Fatalf("GenerateResumptionToken() error = %v", err)
	}

	if !strings.HasPrefix(token, "fa_") {
		t.Errorf("GenerateResumptionToken() = %v, want prefix fa_", token)
	}

	hexPart := token[3:]
	if len(hexPart) != ResumptionTokenBytes*2 {
		t.Errorf("GenerateResumptionToken() hex length = %v, want %v", len(hexPart), ResumptionTokenBytes*2)
	}
	if !isValidHex(hexPart) {
		t.Errorf("GenerateResumptionToken() hex part = %v is not valid hex", hexPart)
	}
}

func TestResumptionTokenUniqueness(t *testing.T) {
	const iterations = 1000
	seen := make(map[string]bool)

	for i := 0; i < iterations; i++ {
		token, err := GenerateResumptionToken()
		if err != nil {
			t.Fatalf("GenerateResumptionToken() error = %v", err)
		}
		if seen[token] {
			t.Errorf("GenerateResumptionToken() generated duplicate: %v", token)
		}
		seen[token] = true
	}
}
