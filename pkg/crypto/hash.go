package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Ошибки отпечатка ключа
var (
	ErrKeyMismatch = errors.New("encryption key does not match stored fingerprint")
	ErrInvalidHash = errors.New("invalid fingerprint hash format")
)

// DefaultCost - стоимость bcrypt для отпечатка ключа.
// Проверка выполняется один раз при старте, поэтому цена не важна.
const DefaultCost = 12

// KeyFingerprint возвращает bcrypt-хеш от SHA-256 ключа
//
// Отпечаток хранится в БД и позволяет при старте убедиться, что сервис
// запущен с тем же ключом, которым шифровались пароли счетов. Иначе каждый
// счёт в каждом цикле падал бы в ERROR с ошибкой расшифровки.
//
// bcrypt ограничен 72 байтами, поэтому хешируется дайджест, а не сам ключ.
func KeyFingerprint(key []byte) (string, error) {
	return KeyFingerprintWithCost(key, DefaultCost)
}

// KeyFingerprintWithCost - то же с явной стоимостью (для тестов)
func KeyFingerprintWithCost(key []byte, cost int) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}

	hash, err := bcrypt.GenerateFromPassword(keyDigest(key), cost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// VerifyKeyFingerprint проверяет соответствие ключа сохранённому отпечатку
// Использует constant-time comparison
func VerifyKeyFingerprint(key []byte, hash string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if hash == "" {
		return ErrInvalidHash
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), keyDigest(key))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrKeyMismatch
		}
		return ErrInvalidHash
	}

	return nil
}

func keyDigest(key []byte) []byte {
	sum := sha256.Sum256(key)
	return []byte(hex.EncodeToString(sum[:]))
}
