package common

import (
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/auth"
	"github.com/Freeeeeet/attendance_bot/internal/service"
	"go.uber.org/zap"
)

// Services зависимости обработчиков бота
type Services struct {
	Users   *service.UserService
	Lessons *service.LessonService
	Today   *service.TodayService
	Reports *service.ReportService
	Issuer  *auth.Issuer // nil: команда /token отключена
	Now     func() time.Time
	Logger  *zap.Logger
}

// Clock текущее время (подменяется в тестах)
func (s *Services) Clock() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
