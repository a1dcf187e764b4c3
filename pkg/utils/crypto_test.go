package utils

import (
	"strings"
	"testing"
)

func TestConfigureSealing(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		wantKeySet bool
	}{
		{name: "empty secret clears key", secret: "", wantKeySet: false},
		{name: "non-empty secret derives key", secret: "sealing-secret", wantKeySet: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ConfigureSealing(tt.secret)
			t.Cleanup(func() { sealingKey = nil })

			if tt.wantKeySet && len(sealingKey) != 32 {
				t.Fatalf("expected 32 byte key, got %d", len(sealingKey))
			}
			if !tt.wantKeySet && sealingKey != nil {
				t.Fatal("expected key to be cleared")
			}
		})
	}
}

func TestSealAndOpen(t *testing.T) {
	ConfigureSealing("sealing-secret")
	t.Cleanup(func() { sealingKey = nil })

	t.Run("round trips a totp secret", func(t *testing.T) {
		sealed, err := Seal("JBSWY3DPEHPK3PXP")
		if err != nil {
			t.Fatalf("Seal returned error: %v", err)
		}
		if !strings.HasPrefix(sealed, SealedPrefix) {
			t.Fatalf("expected sealed prefix, got %q", sealed)
		}
		if strings.Contains(sealed, "JBSWY3DPEHPK3PXP") {
			t.Fatal("sealed value leaks plaintext")
		}

		opened, err := Open(sealed)
		if err != nil {
			t.Fatalf("Open returned error: %v", err)
		}
		if opened != "JBSWY3DPEHPK3PXP" {
			t.Fatalf("expected plaintext back, got %q", opened)
		}
	})

	t.Run("uses a fresh nonce each time", func(t *testing.T) {
		first, _ := Seal("same")
		second, _ := Seal("same")
		if first == second {
			t.Fatal("expected distinct ciphertexts for identical plaintext")
		}
	})

	t.Run("rejects unsealed and tampered values", func(t *testing.T) {
		if _, err := Open("plain"); err == nil {
			t.Fatal("expected error for unsealed value")
		}
		sealed, _ := Seal("value")
		last := "A"
		if strings.HasSuffix(sealed, "A") {
			last = "B"
		}
		tampered := sealed[:len(sealed)-1] + last
		if _, err := Open(tampered); err == nil {
			t.Fatal("expected error for tampered value")
		}
	})
}

func TestSealWithoutKey(t *testing.T) {
	sealingKey = nil
	if _, err := Seal("value"); err != ErrSealingNotConfigured {
		t.Fatalf("expected ErrSealingNotConfigured, got %v", err)
	}
}
