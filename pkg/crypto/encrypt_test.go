package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

// TestEncryptDecrypt проверяет базовый цикл шифрования/расшифровки
func TestEncryptDecrypt(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty string", ""},
		{"simple password", "Secr3t!"},
		{"unicode text", "Пароль 你好"},
		{"special chars", "!@#$%^&*()_+-=[]{}|;':\",./<>?"},
		{"long text", strings.Repeat("a", 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := Encrypt(tt.plaintext, key)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}

			if _, err := base64.StdEncoding.DecodeString(encrypted); err != nil {
				t.Errorf("Encrypted result is not valid base64: %v", err)
			}

			decrypted, err := Decrypt(encrypted, key)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}

			if decrypted != tt.plaintext {
				t.Errorf("Decrypted text mismatch: got %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

// TestEncryptDifferentResults проверяет что каждое шифрование даёт разный результат (разный nonce)
func TestEncryptDifferentResults(t *testing.T) {
	key, _ := GenerateKey()

	encrypted1, _ := Encrypt("same text", key)
	encrypted2, _ := Encrypt("same text", key)

	if encrypted1 == encrypted2 {
		t.Error("Two encryptions of the same text should produce different ciphertexts")
	}
}

func TestEncryptInvalidKeyLength(t *testing.T) {
	for _, keyLen := range []int{0, 16, 31, 33, 64} {
		key := make([]byte, keyLen)
		if _, err := Encrypt("test", key); err != ErrInvalidKeyLength {
			t.Errorf("Encrypt with %d byte key: got error %v, want %v", keyLen, err, ErrInvalidKeyLength)
		}
	}
}

// TestDecryptErrors проверяет ошибки расшифровки
func TestDecryptErrors(t *testing.T) {
	key, _ := GenerateKey()
	otherKey, _ := GenerateKey()
	encrypted, _ := Encrypt("password", key)

	raw, _ := base64.StdEncoding.DecodeString(encrypted)
	raw[len(raw)-1] ^= 0xFF
	tampered := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name       string
		ciphertext string
		key        []byte
		wantErr    error
	}{
		{"wrong key", encrypted, otherKey, ErrDecryptionFailed},
		{"tampered", tampered, key, ErrDecryptionFailed},
		{"not base64", "%%%not-base64%%%", key, ErrInvalidCiphertext},
		{"too short", base64.StdEncoding.EncodeToString([]byte("short")), key, ErrCiphertextTooShort},
		{"short key", encrypted, key[:16], ErrInvalidKeyLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plaintext, err := Decrypt(tt.ciphertext, tt.key)
			if err != tt.wantErr {
				t.Errorf("Decrypt() error = %v, want %v", err, tt.wantErr)
			}
			if plaintext != "" {
				t.Errorf("Decrypt() returned partial plaintext %q", plaintext)
			}
		})
	}
}

func TestParseKey(t *testing.T) {
	key, _ := GenerateKey()
	hexKey := hex.EncodeToString(key)

	tests := []struct {
		name    string
		input   string
		wantLen int
		wantErr bool
	}{
		{"hex", hexKey, 32, false},
		{"raw 32 bytes", "0123456789abcdef0123456789abcdef", 32, false},
		{"too short", "short", 0, true},
		{"64 non-hex chars", strings.Repeat("z", 64), 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}

	parsed, _ := ParseKey(hexKey)
	if string(parsed) != string(key) {
		t.Error("hex key did not decode to original bytes")
	}
}

func TestGenerateKeyHex(t *testing.T) {
	s, err := GenerateKeyHex()
	if err != nil {
		t.Fatalf("GenerateKeyHex failed: %v", err)
	}
	if len(s) != 64 {
		t.Errorf("len = %d, want 64", len(s))
	}
	if _, err := ParseKey(s); err != nil {
		t.Errorf("generated key is not parseable: %v", err)
	}
}

// ============================================================
// Vault
// ============================================================

func TestVault_RoundTrip(t *testing.T) {
	key, _ := GenerateKey()
	v, err := NewVault(key)
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	blob, err := v.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := v.Decrypt(blob)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "hunter2" {
		t.Errorf("Decrypt() = %q, want hunter2", got)
	}

	// повторная расшифровка детерминирована
	again, _ := v.Decrypt(blob)
	if again != got {
		t.Error("Decrypt is not deterministic")
	}
}

func TestVault_DecryptionErrors(t *testing.T) {
	key, _ := GenerateKey()
	otherKey, _ := GenerateKey()
	v, _ := NewVault(key)
	other, _ := NewVault(otherKey)

	blob, _ := other.Encrypt("secret")

	for name, input := range map[string]string{
		"foreign key": blob,
		"empty":       "",
		"garbage":     "not a blob",
	} {
		t.Run(name, func(t *testing.T) {
			got, err := v.Decrypt(input)
			if !errors.Is(err, ErrDecryption) {
				t.Errorf("error = %v, want ErrDecryption", err)
			}
			if got != "" {
				t.Errorf("got partial plaintext %q", got)
			}
		})
	}
}

func TestVault_KeyIsCopied(t *testing.T) {
	key, _ := GenerateKey()
	v, _ := NewVault(key)
	blob, _ := v.Encrypt("secret")

	key[0] ^= 0xFF

	if _, err := v.Decrypt(blob); err != nil {
		t.Errorf("vault must not observe caller mutations of the key: %v", err)
	}
}

func TestNewVault_InvalidKey(t *testing.T) {
	if _, err := NewVault(make([]byte, 16)); err != ErrInvalidKeyLength {
		t.Errorf("NewVault() error = %v, want ErrInvalidKeyLength", err)
	}
}
