package collector

import "collector/internal/models"

// ValidTransitions определяет допустимые переходы статуса счёта внутри цикла
//
// Все исходы сбора терминальны для цикла. В начале следующего цикла
// любой несуспендированный счёт снова считается PENDING.
var ValidTransitions = map[string][]string{
	models.AccountStatusPending: {
		models.AccountStatusConnected,
		models.AccountStatusDisconnected,
		models.AccountStatusError,
	},
	models.AccountStatusConnected:    {models.AccountStatusPending, models.AccountStatusSuspended},
	models.AccountStatusDisconnected: {models.AccountStatusPending, models.AccountStatusSuspended},
	models.AccountStatusError:        {models.AccountStatusPending, models.AccountStatusSuspended},
	models.AccountStatusSuspended:    {models.AccountStatusPending}, // только ручное включение
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsOutcome возвращает true для статусов, которыми заканчивается сбор
func IsOutcome(s string) bool {
	return s == models.AccountStatusConnected || s == models.AccountStatusDisconnected || s == models.AccountStatusError
}

// StatusInfo возвращает описание статуса для операторского API
func StatusInfo(s string) string {
	switch s {
	case models.AccountStatusPending:
		return "Ожидает сбора"
	case models.AccountStatusConnected:
		return "Последний сбор успешен"
	case models.AccountStatusDisconnected:
		return "Терминал отклонил логин"
	case models.AccountStatusError:
		return "Ошибка сбора"
	case models.AccountStatusSuspended:
		return "Сбор отключён"
	default:
		return "Неизвестный статус"
	}
}
