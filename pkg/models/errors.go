package models

import "errors"

// Доменные ошибки движка начислений. Возвращаются вызывающему слою
// как ожидаемые исходы, не как фатальные сбои.
var (
	ErrAccountNotFound    = errors.New("аккаунт не найден")
	ErrInsufficientEnergy = errors.New("недостаточно энергии")

	ErrCycleAlreadyActive = errors.New("цикл майнинга уже активен")
	ErrCycleNotActive     = errors.New("цикл майнинга не активен")
	ErrCycleNotReady      = errors.New("цикл майнинга еще не завершен")

	ErrInvalidReferralCode = errors.New("неверный реферальный код")
	ErrSelfReferral        = errors.New("нельзя пригласить самого себя")
	ErrDuplicateReferral   = errors.New("пользователь уже был приглашен")
	ErrReferralNotFound    = errors.New("реферал не найден")
	ErrAlreadyRewarded     = errors.New("награда за реферала уже начислена")
	ErrCodeSpaceExhausted  = errors.New("не удалось подобрать уникальный реферальный код")

	ErrUnknownTask        = errors.New("неизвестное задание")
	ErrTaskNotCompleted   = errors.New("задание не выполнено")
	ErrTaskAlreadyClaimed = errors.New("награда за задание уже получена")
)

// Транзиентные ошибки хранилища. Оркестратор повторяет операцию
// ограниченное число раз: каждая мутация построена как compare-and-swap,
// поэтому повтор безопасен.
var (
	// ErrVersionConflict возникает при проигрыше оптимистичной блокировки:
	// версия записи изменилась между чтением и записью.
	ErrVersionConflict = errors.New("конфликт версий записи")

	// ErrReferralCodeTaken сигнализирует о коллизии реферального кода.
	// Источник истины — уникальный индекс в хранилище.
	ErrReferralCodeTaken = errors.New("реферальный код уже занят")
)
