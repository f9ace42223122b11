package clock

import "time"

// Clock отдает текущее время. Внедряется в сервисы явно,
// чтобы эффекты течения времени были проверяемы в тестах.
type Clock interface {
	Now() time.Time
}

// System возвращает системное время
type System struct{}

// NewSystem создает системные часы
func NewSystem() *System {
	return &System{}
}

// Now возвращает текущее системное время
func (s *System) Now() time.Time {
	return time.Now()
}

// Fixed возвращает заранее заданное время. Используется в тестах.
type Fixed struct {
	Current time.Time
}

// NewFixed создает часы, остановленные на указанном моменте
func NewFixed(t time.Time) *Fixed {
	return &Fixed{Current: t}
}

// Now возвращает зафиксированное время
func (f *Fixed) Now() time.Time {
	return f.Current
}

// Advance сдвигает зафиксированное время вперед
func (f *Fixed) Advance(d time.Duration) {
	f.Current = f.Current.Add(d)
}
