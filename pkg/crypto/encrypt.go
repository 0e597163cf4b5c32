package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// KeySize - длина ключа AES-256
const KeySize = 32

// Ошибки шифрования
var (
	ErrInvalidKeyLength   = errors.New("encryption key must be exactly 32 bytes for AES-256")
	ErrInvalidCiphertext  = errors.New("invalid ciphertext")
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrDecryptionFailed   = errors.New("decryption failed: authentication error")

	// ErrDecryption - общий класс ошибок расшифровки учётных данных.
	// Любая ошибка Vault.Decrypt удовлетворяет errors.Is(err, ErrDecryption).
	ErrDecryption = errors.New("credential decryption failed")
)

// Encrypt шифрует plaintext с использованием AES-256-GCM
// Возвращает base64(nonce || ciphertext || tag)
func Encrypt(plaintext string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	// GCM добавляет аутентификационный тег автоматически
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt расшифровывает base64-encoded ciphertext с использованием AES-256-GCM
func Decrypt(ciphertextBase64 string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextBase64)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	// nonce + tag
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize+gcm.Overhead() {
		return "", ErrCiphertextTooShort
	}

	nonce, ciphertextData := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertextData, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}

// GenerateKey генерирует криптографически стойкий случайный ключ (32 байта для AES-256)
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateKeyHex генерирует ключ и возвращает его в hex (для .env файла)
func GenerateKeyHex() (string, error) {
	key, err := GenerateKey()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

// ParseKey разбирает ENCRYPTION_KEY
//
// Поддерживаемые форматы:
//   - 64 hex-символа (вывод `collector keygen`)
//   - ровно 32 байта как есть
func ParseKey(s string) ([]byte, error) {
	if len(s) == hex.EncodedLen(KeySize) {
		if key, err := hex.DecodeString(s); err == nil {
			return key, nil
		}
	}
	if len(s) == KeySize {
		return []byte(s), nil
	}
	return nil, ErrInvalidKeyLength
}

// ValidateKey проверяет, что ключ имеет правильную длину
func ValidateKey(key []byte) error {
	if len(key) != KeySize {
		return ErrInvalidKeyLength
	}
	return nil
}

// ============================================================
// Vault
// ============================================================

// Vault расшифровывает учётные данные торговых счетов
//
// Ключ передаётся один раз при создании и дальше не меняется,
// поэтому Vault безопасно использовать из нескольких горутин.
type Vault struct {
	key []byte
}

// NewVault создаёт Vault с копией ключа
func NewVault(key []byte) (*Vault, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Vault{key: k}, nil
}

// Decrypt возвращает открытый пароль или ошибку ErrDecryption.
// При ошибке никогда не возвращает частичный результат.
func (v *Vault) Decrypt(blob string) (string, error) {
	if blob == "" {
		return "", fmt.Errorf("%w: %w", ErrDecryption, ErrInvalidCiphertext)
	}
	plaintext, err := Decrypt(blob, v.key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	return plaintext, nil
}

// Encrypt шифрует пароль ключом хранилища
func (v *Vault) Encrypt(plaintext string) (string, error) {
	return Encrypt(plaintext, v.key)
}
