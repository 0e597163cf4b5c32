package session

import (
	"context"
	"errors"
	"fmt"

	"collector/internal/terminal"
)

// Ошибки сессии
var (
	// ErrAuthRejected - логин отклонён (неверные учётные данные или недоступный сервер)
	ErrAuthRejected = errors.New("authentication rejected")

	// ErrExternalService - любая другая ошибка терминала, включая таймауты
	ErrExternalService = errors.New("external service error")

	// ErrClosed - сессия уже закрыта
	ErrClosed = errors.New("session closed")
)

// classify приводит ошибку терминала к таксономии сессии
//
// Таймаут логина - это ErrExternalService, а не ErrAuthRejected:
// счёт не был отклонён, терминал просто не ответил.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if op == "login" && terminal.IsLoginRejected(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrAuthRejected, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: timed out: %w", op, ErrExternalService, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrExternalService, err)
}

// IsAuthRejected проверяет, что логин был отклонён
func IsAuthRejected(err error) bool {
	return errors.Is(err, ErrAuthRejected)
}
