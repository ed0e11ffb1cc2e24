package users

import (
	"strconv"
	"testing"
)

func TestGenerateCodeShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q is not 6 digits", code)
		}
		if _, err := strconv.Atoi(code); err != nil {
			t.Fatalf("code %q is not numeric", code)
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Error("codes do not vary")
	}
}

func TestTextOrNil(t *testing.T) {
	if textOrNil(nil) != nil {
		t.Error("nil pointer should map to nil")
	}
	v := "nick"
	if got := textOrNil(&v); got != "nick" {
		t.Errorf("textOrNil = %v, want nick", got)
	}
}
