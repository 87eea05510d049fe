package formatting

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/Freeeeeet/attendance_bot/internal/service"
)

// StudentToday текст расписания студента на день
func StudentToday(date time.Time, lessons []service.TodayLesson) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 %s, %s\n", GetWeekdayName(model.Weekday(date)), FormatDate(date))

	if len(lessons) == 0 {
		sb.WriteString("\nСегодня занятий нет 🎉")
		return sb.String()
	}

	for _, item := range lessons {
		sb.WriteString("\n")
		writeLessonHeader(&sb, item)

		switch {
		case item.MarkedStatus != nil:
			d := GetAttendanceStatusDisplay(*item.MarkedStatus)
			fmt.Fprintf(&sb, "   %s %s\n", d.Emoji, d.Text)
		case item.CanMark && item.TimeRemaining != nil:
			fmt.Fprintf(&sb, "   ✋ Можно отметиться, осталось %d %s\n", *item.TimeRemaining, PluralizeMinutes(*item.TimeRemaining))
		case item.Lesson.IsClosed():
			d := GetAttendanceStatusDisplay(model.AttendanceStatusAbsent)
			fmt.Fprintf(&sb, "   %s %s\n", d.Emoji, d.Text)
		}
	}

	return sb.String()
}

// TeacherToday текст расписания преподавателя на день
func TeacherToday(date time.Time, lessons []service.TodayLesson) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 %s, %s\n", GetWeekdayName(model.Weekday(date)), FormatDate(date))

	if len(lessons) == 0 {
		sb.WriteString("\nСегодня у вас нет пар")
		return sb.String()
	}

	for _, item := range lessons {
		sb.WriteString("\n")
		writeLessonHeader(&sb, item)
		if item.Template.GroupName != "" {
			fmt.Fprintf(&sb, "   👥 %s\n", item.Template.GroupName)
		}
		fmt.Fprintf(&sb, "   📝 Отметились: %d из %d\n", item.MarkedCount, item.TotalStudents)
		if item.TimeRemaining != nil {
			fmt.Fprintf(&sb, "   ⏱ До закрытия: %d %s\n", *item.TimeRemaining, PluralizeMinutes(*item.TimeRemaining))
		}
	}

	return sb.String()
}

func writeLessonHeader(sb *strings.Builder, item service.TodayLesson) {
	state := GetLessonStateDisplay(item.Lesson.State)
	fmt.Fprintf(sb, "%s %s %s\n", state.Emoji, FormatTimeRange(item.Template), item.Template.SubjectName)
	if item.Template.Room != "" {
		fmt.Fprintf(sb, "   🚪 Ауд. %s\n", item.Template.Room)
	}
}

// Roster ведомость занятия
func Roster(r *service.Roster) string {
	var sb strings.Builder
	state := GetLessonStateDisplay(r.Lesson.State)
	fmt.Fprintf(&sb, "📋 %s, %s %s\n", r.Template.SubjectName, FormatDate(r.Lesson.Date), r.Template.StartTime)
	fmt.Fprintf(&sb, "%s %s\n\n", state.Emoji, state.Text)

	for i, e := range r.Entries {
		mark := "▫️ —"
		if e.Status != nil {
			d := GetAttendanceStatusDisplay(*e.Status)
			mark = d.Emoji + " " + d.Text
		}
		fmt.Fprintf(&sb, "%d. %s: %s\n", i+1, e.Student.FullName, mark)
	}

	if len(r.Entries) == 0 {
		sb.WriteString("В группе нет студентов")
	}
	return sb.String()
}

// Stats статистика посещаемости студента
func Stats(s *service.StudentStats) string {
	if s.TotalLessons == 0 {
		return "📊 Пока нет завершённых занятий"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Посещаемость: %.1f%%\n", s.Percentage)
	fmt.Fprintf(&sb, "Всего занятий: %d\n\n", s.TotalLessons)
	for _, st := range model.AttendanceStatuses {
		d := GetAttendanceStatusDisplay(st)
		fmt.Fprintf(&sb, "%s %s: %d\n", d.Emoji, d.Text, s.Counts[st])
	}
	return sb.String()
}
