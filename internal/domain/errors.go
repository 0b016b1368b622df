package domain

import "errors"

// Таксономия ошибок ядра. Слои оборачивают их через fmt.Errorf("...: %w", ...),
// а транспорт различает через errors.Is.
var (
	// ErrNotFound интеграция, на которую ссылается запрос, отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput значение вне закрытого перечисления или отрицательное число.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnavailable хранилище недоступно.
	ErrUnavailable = errors.New("store unavailable")
	// ErrConflict зарезервировано под CAS-обновление статуса.
	ErrConflict = errors.New("conflict")
)
