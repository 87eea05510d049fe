package keyboard

import (
	"fmt"

	"github.com/Freeeeeet/attendance_bot/internal/controller/common"
	"github.com/Freeeeeet/attendance_bot/internal/service"
	"github.com/go-telegram/bot/models"
)

// StudentToday кнопки "Отметиться" для открытых занятий
func StudentToday(lessons []service.TodayLesson) *models.InlineKeyboardMarkup {
	kb := NewBuilder()
	for _, item := range lessons {
		if !item.CanMark {
			continue
		}
		kb.Row(Button(
			fmt.Sprintf("✋ Отметиться: %s %s", item.Template.StartTime, item.Template.SubjectName),
			common.CallbackData(common.MarkLesson, item.Lesson.ID),
		))
	}
	kb.Row(Button("🔄 Обновить", common.RefreshToday))
	return kb.Build()
}

// TeacherToday открыть/закрыть и ведомость по каждой паре
func TeacherToday(lessons []service.TodayLesson) *models.InlineKeyboardMarkup {
	kb := NewBuilder()
	for _, item := range lessons {
		label := fmt.Sprintf("%s %s", item.Template.StartTime, item.Template.SubjectName)
		roster := Button("📋 "+label, common.CallbackData(common.LessonRoster, item.Lesson.ID))

		switch {
		case item.Lesson.IsPending():
			kb.Row(Button("▶️ Открыть", common.CallbackData(common.OpenLesson, item.Lesson.ID)), roster)
		case item.Lesson.IsOpen():
			kb.Row(Button("⏹ Закрыть", common.CallbackData(common.CloseLesson, item.Lesson.ID)), roster)
		default:
			kb.Row(roster)
		}
	}
	kb.Row(Button("🔄 Обновить", common.RefreshToday))
	return kb.Build()
}
