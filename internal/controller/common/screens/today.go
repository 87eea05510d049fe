package screens

import (
	"context"
	"errors"

	"github.com/Freeeeeet/attendance_bot/internal/controller/common"
	"github.com/Freeeeeet/attendance_bot/internal/controller/common/formatting"
	"github.com/Freeeeeet/attendance_bot/internal/controller/common/keyboard"
	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/Freeeeeet/attendance_bot/internal/service"
	"github.com/go-telegram/bot/models"
)

// Today экран "сегодня": для преподавателя и администратора список его пар,
// для студента занятия группы с кнопками отметки
func Today(ctx context.Context, s *common.Services, user *model.User) (string, *models.InlineKeyboardMarkup, error) {
	now := s.Clock()
	today := s.Lessons.Policy().Today(now)

	if user.IsTeacher() {
		teacher, err := s.Users.TeacherOf(ctx, user)
		switch {
		case err == nil:
			lessons, err := s.Today.TeacherToday(ctx, teacher.ID, now)
			if err != nil {
				return "", nil, err
			}
			return formatting.TeacherToday(today, lessons), keyboard.TeacherToday(lessons), nil
		case !errors.Is(err, service.ErrNotFound):
			return "", nil, err
		}
		// Администратор без своих пар смотрит как студент, если он в группе
	}

	student, err := s.Users.StudentOf(ctx, user)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return "🤷 Вы не привязаны к группе. Обратитесь к администратору.", nil, nil
		}
		return "", nil, err
	}

	lessons, err := s.Today.StudentToday(ctx, student.ID, now)
	if err != nil {
		return "", nil, err
	}
	return formatting.StudentToday(today, lessons), keyboard.StudentToday(lessons), nil
}
