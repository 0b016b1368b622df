package domain

import "time"

// Window скользящее окно агрегации, заканчивающееся "сейчас".
type Window string

const (
	WindowHour  Window = "hour"
	WindowDay   Window = "day"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
)

// Duration длительность окна. Для неизвестного значения ok == false,
// и вызывающий работает по всей истории (это наблюдаемое поведение, не ошибка).
func (w Window) Duration() (d time.Duration, ok bool) {
	switch w {
	case WindowHour:
		return time.Hour, true
	case WindowDay:
		return 24 * time.Hour, true
	case WindowWeek:
		return 7 * 24 * time.Hour, true
	case WindowMonth:
		return 30 * 24 * time.Hour, true
	}
	return 0, false
}

// Since нижняя граница окна; нулевое время для неизвестного окна.
func (w Window) Since(now time.Time) time.Time {
	d, ok := w.Duration()
	if !ok {
		return time.Time{}
	}
	return now.Add(-d)
}
