package service

import "errors"

// ErrorMessage возвращает пользовательское сообщение для ошибки.
// Используется и ботом, и HTTP API, чтобы тексты совпадали.
func ErrorMessage(err error) string {
	var stateErr *StateError
	if errors.As(err, &stateErr) && errors.Is(err, ErrNotOpen) {
		switch {
		case stateErr.TooEarly():
			return "⏳ Занятие ещё не открыто, отметиться пока нельзя"
		case stateErr.TooLate():
			return "⌛ Время отметки истекло, занятие закрыто"
		}
	}

	switch {
	case errors.Is(err, ErrAlreadyOpen):
		return "ℹ️ Занятие уже открыто"
	case errors.Is(err, ErrAlreadyClosed):
		return "ℹ️ Занятие уже закрыто"
	case errors.Is(err, ErrNotOpen):
		return "❌ Занятие не открыто"
	case errors.Is(err, ErrAlreadyMarked):
		return "✅ Вы уже отметились на этом занятии"
	case errors.Is(err, ErrGroupMismatch):
		return "❌ Это занятие другой группы"
	case errors.Is(err, ErrNotYourLesson):
		return "❌ Это занятие ведёт другой преподаватель"
	case errors.Is(err, ErrInvalidOutcome):
		return "❌ Недопустимый статус отметки"
	case errors.Is(err, ErrInvalidActor):
		return "❌ Действие недоступно для вашей роли"
	case errors.Is(err, ErrNotClosed):
		return "❌ Исправить отметку можно только после закрытия занятия"
	case errors.Is(err, ErrInactive):
		return "❌ Пара снята с расписания"
	case errors.Is(err, ErrInvalidInput):
		return "❌ Неверные данные"
	case errors.Is(err, ErrAlreadyEnrolled):
		return "ℹ️ Пользователь уже привязан"
	case errors.Is(err, ErrAlreadyExists):
		return "ℹ️ Запись с таким названием уже есть"
	case errors.Is(err, ErrNotFound):
		return "❌ Не найдено"
	default:
		return "❌ Произошла ошибка"
	}
}
