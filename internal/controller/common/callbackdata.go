package common

import (
	"fmt"
	"strconv"
	"strings"
)

// Форматы callback data
const (
	MarkLesson   = "mark:"   // mark:lesson_id
	OpenLesson   = "open:"   // open:lesson_id
	CloseLesson  = "close:"  // close:lesson_id
	LessonRoster = "roster:" // roster:lesson_id
	RefreshToday = "today"
	Noop         = "noop"
)

// CallbackData собирает data для кнопки действия над занятием
func CallbackData(prefix string, lessonID int64) string {
	return prefix + strconv.FormatInt(lessonID, 10)
}

// ParseIDFromCallback извлекает ID из callback data
// Например: "mark:123" -> 123
func ParseIDFromCallback(data string) (int64, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 2 {
		return 0, ErrInvalidFormat
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, data)
	}
	return id, nil
}
