package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"go.uber.org/zap"
)

// UserStore пользователи, приходящие из Telegram
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	ListByRole(ctx context.Context, role model.UserRole) ([]*model.User, error)
}

type UserService struct {
	users  UserStore
	roster RosterStore
	admins func(telegramID int64) bool
	logger *zap.Logger
}

func NewUserService(users UserStore, roster RosterStore, admins func(int64) bool, logger *zap.Logger) *UserService {
	if admins == nil {
		admins = func(int64) bool { return false }
	}
	return &UserService{
		users:  users,
		roster: roster,
		admins: admins,
		logger: logger,
	}
}

// RegisterUser регистрирует или обновляет пользователя
func (s *UserService) RegisterUser(ctx context.Context, telegramID int64, username, fullName string) (*model.User, error) {
	// Проверяем существует ли пользователь
	existingUser, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	// Если пользователь уже существует, обновляем данные
	if existingUser != nil {
		existingUser.Username = username
		if fullName != "" {
			existingUser.FullName = fullName
		}
		if s.admins(telegramID) {
			existingUser.Role = model.UserRoleAdmin
		}

		if err := s.users.Update(ctx, existingUser); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}

		return existingUser, nil
	}

	user := &model.User{
		TelegramID: telegramID,
		Username:   username,
		FullName:   fullName,
		Role:       model.UserRoleStudent, // По умолчанию студент
		IsActive:   true,
	}
	if s.admins(telegramID) {
		user.Role = model.UserRoleAdmin
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("New user registered",
		zap.Int64("user_id", user.ID),
		zap.Int64("telegram_id", telegramID),
		zap.String("role", string(user.Role)),
	)

	return user, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.users.GetByTelegramID(ctx, telegramID)
}

// GetByID получает пользователя по ID
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// ListByRole активные пользователи с ролью
func (s *UserService) ListByRole(ctx context.Context, role model.UserRole) ([]*model.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("role %q: %w", role, ErrInvalidInput)
	}
	return s.users.ListByRole(ctx, role)
}

// StudentOf запись студента пользователя
func (s *UserService) StudentOf(ctx context.Context, user *model.User) (*model.Student, error) {
	student, err := s.roster.GetStudentByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, notFound("student for user", user.ID)
	}
	return student, nil
}

// TeacherOf запись преподавателя пользователя
func (s *UserService) TeacherOf(ctx context.Context, user *model.User) (*model.Teacher, error) {
	teacher, err := s.roster.GetTeacherByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil {
		return nil, notFound("teacher for user", user.ID)
	}
	return teacher, nil
}

// ActorFor актор для действий пользователя в роли преподавателя
func (s *UserService) ActorFor(user *model.User) model.Actor {
	if user.IsAdmin() {
		return model.AdminActor(user.ID)
	}
	if user.IsTeacher() {
		return model.TeacherActor(user.ID)
	}
	return model.SelfActor(user.ID)
}
