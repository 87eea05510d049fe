package formatting

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/model"
)

// FormatDate форматирует только дату
func FormatDate(t time.Time) string {
	return t.Format("02.01.2006")
}

// FormatDateTime форматирует дату и время
func FormatDateTime(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}

// FormatTimeRange форматирует время пары
func FormatTimeRange(tpl *model.ScheduleTemplate) string {
	return fmt.Sprintf("%s-%s", tpl.StartTime, tpl.EndTime)
}

// GetWeekdayName название дня недели, 0 = понедельник
func GetWeekdayName(weekday int) string {
	names := []string{
		"Понедельник",
		"Вторник",
		"Среда",
		"Четверг",
		"Пятница",
		"Суббота",
		"Воскресенье",
	}
	if weekday >= 0 && weekday < len(names) {
		return names[weekday]
	}
	return "Неизвестно"
}

// PluralizeMinutes возвращает правильное склонение слова "минута"
func PluralizeMinutes(count int) string {
	if count%10 == 1 && count%100 != 11 {
		return "минута"
	}
	if count%10 >= 2 && count%10 <= 4 && (count%100 < 10 || count%100 >= 20) {
		return "минуты"
	}
	return "минут"
}
