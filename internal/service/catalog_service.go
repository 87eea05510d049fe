package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"go.uber.org/zap"
)

// CatalogStore направления, группы и предметы
type CatalogStore interface {
	CreateDirection(ctx context.Context, direction *model.Direction) error
	GetDirection(ctx context.Context, id int64) (*model.Direction, error)
	ListDirections(ctx context.Context) ([]*model.Direction, error)
	CreateGroup(ctx context.Context, group *model.Group) error
	CreateSubject(ctx context.Context, subject *model.Subject) error
	GetGroup(ctx context.Context, id int64) (*model.Group, error)
	GetGroupByName(ctx context.Context, name string) (*model.Group, error)
	GetSubjectByName(ctx context.Context, name string) (*model.Subject, error)
	// ListGroups directionID = 0 без фильтра
	ListGroups(ctx context.Context, directionID int64) ([]*model.Group, error)
	Counts(ctx context.Context) (*model.CatalogCounts, error)
}

// TemplateWriter запись шаблонов расписания
type TemplateWriter interface {
	Create(ctx context.Context, tpl *model.ScheduleTemplate) error
	SetActive(ctx context.Context, id int64, active bool) error
	// ListAll включая неактивные; groupID = 0 без фильтра
	ListAll(ctx context.Context, groupID int64) ([]*model.ScheduleTemplate, error)
}

// RosterWriter привязка пользователей к группам и преподавательской роли
type RosterWriter interface {
	CreateStudent(ctx context.Context, student *model.Student) error
	CreateTeacher(ctx context.Context, teacher *model.Teacher) error
}

// CatalogService минимальное администрирование: группы, предметы,
// шаблоны расписания и состав групп
type CatalogService struct {
	catalog        CatalogStore
	templates      TemplateStore
	templateWriter TemplateWriter
	roster         RosterStore
	rosterWriter   RosterWriter
	users          UserStore
	logger         *zap.Logger
}

func NewCatalogService(
	catalog CatalogStore,
	templates TemplateStore,
	templateWriter TemplateWriter,
	roster RosterStore,
	rosterWriter RosterWriter,
	users UserStore,
	logger *zap.Logger,
) *CatalogService {
	return &CatalogService{
		catalog:        catalog,
		templates:      templates,
		templateWriter: templateWriter,
		roster:         roster,
		rosterWriter:   rosterWriter,
		users:          users,
		logger:         logger,
	}
}

// CreateDirection создаёт направление подготовки
func (s *CatalogService) CreateDirection(ctx context.Context, name, shortName string) (*model.Direction, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("direction name is empty: %w", ErrInvalidInput)
	}

	existing, err := s.catalog.ListDirections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list directions: %w", err)
	}
	for _, d := range existing {
		if d.Name == name {
			return nil, fmt.Errorf("direction %q: %w", name, ErrAlreadyExists)
		}
	}

	direction := &model.Direction{Name: name, ShortName: strings.TrimSpace(shortName)}
	if err := s.catalog.CreateDirection(ctx, direction); err != nil {
		return nil, fmt.Errorf("create direction: %w", err)
	}
	return direction, nil
}

// ListDirections все направления
func (s *CatalogService) ListDirections(ctx context.Context) ([]*model.Direction, error) {
	return s.catalog.ListDirections(ctx)
}

// GroupInput данные новой группы
type GroupInput struct {
	Name        string
	DirectionID *int64
	Course      int // 0 означает первый курс
}

// CreateGroup создаёт группу, при необходимости внутри направления
func (s *CatalogService) CreateGroup(ctx context.Context, in GroupInput) (*model.Group, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("group name is empty: %w", ErrInvalidInput)
	}

	course := in.Course
	if course == 0 {
		course = 1
	}
	if course < 1 || course > 6 {
		return nil, fmt.Errorf("course %d: %w", course, ErrInvalidInput)
	}

	if in.DirectionID != nil {
		direction, err := s.catalog.GetDirection(ctx, *in.DirectionID)
		if err != nil {
			return nil, fmt.Errorf("get direction: %w", err)
		}
		if direction == nil {
			return nil, notFound("direction", *in.DirectionID)
		}
	}

	existing, err := s.catalog.GetGroupByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get group by name: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("group %q: %w", name, ErrAlreadyExists)
	}

	group := &model.Group{Name: name, DirectionID: in.DirectionID, Course: course}
	if err := s.catalog.CreateGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return group, nil
}

// ListGroups группы направления или все при directionID = 0
func (s *CatalogService) ListGroups(ctx context.Context, directionID int64) ([]*model.Group, error) {
	return s.catalog.ListGroups(ctx, directionID)
}

// CreateSubject создаёт предмет
func (s *CatalogService) CreateSubject(ctx context.Context, name string) (*model.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("subject name is empty: %w", ErrInvalidInput)
	}

	existing, err := s.catalog.GetSubjectByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get subject by name: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("subject %q: %w", name, ErrAlreadyExists)
	}

	subject := &model.Subject{Name: name}
	if err := s.catalog.CreateSubject(ctx, subject); err != nil {
		return nil, fmt.Errorf("create subject: %w", err)
	}
	return subject, nil
}

// Stats счётчики для панели администратора
func (s *CatalogService) Stats(ctx context.Context) (*model.CatalogCounts, error) {
	counts, err := s.catalog.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count catalog: %w", err)
	}
	return counts, nil
}

// ListTemplates недельное расписание, включая снятые пары
func (s *CatalogService) ListTemplates(ctx context.Context, groupID int64) ([]*model.ScheduleTemplate, error) {
	return s.templateWriter.ListAll(ctx, groupID)
}

// CreateTemplate добавляет пару в недельное расписание группы
func (s *CatalogService) CreateTemplate(ctx context.Context, tpl *model.ScheduleTemplate) error {
	if !tpl.Valid() {
		return fmt.Errorf("day %d, time %s-%s: %w", tpl.DayOfWeek, tpl.StartTime, tpl.EndTime, ErrInvalidInput)
	}

	group, err := s.catalog.GetGroup(ctx, tpl.GroupID)
	if err != nil {
		return fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return notFound("group", tpl.GroupID)
	}

	tpl.IsActive = true
	if err := s.templateWriter.Create(ctx, tpl); err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	tpl.GroupName = group.Name

	return nil
}

// SetTemplateActive снимает пару с расписания или возвращает её.
// Уже созданные занятия не меняются.
func (s *CatalogService) SetTemplateActive(ctx context.Context, id int64, active bool) error {
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get template: %w", err)
	}
	if tpl == nil {
		return notFound("template", id)
	}

	if err := s.templateWriter.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("set template active: %w", err)
	}

	s.logger.Info("Template activity changed",
		zap.Int64("template_id", id),
		zap.Bool("active", active),
	)
	return nil
}

// EnrollStudent привязывает пользователя к группе
func (s *CatalogService) EnrollStudent(ctx context.Context, userID, groupID int64, code string) (*model.Student, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, notFound("user", userID)
	}

	group, err := s.catalog.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return nil, notFound("group", groupID)
	}

	existing, err := s.roster.GetStudentByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("user %d is a student of group %d: %w", userID, existing.GroupID, ErrAlreadyEnrolled)
	}

	student := &model.Student{
		UserID:      userID,
		GroupID:     groupID,
		StudentCode: strings.TrimSpace(code),
		FullName:    user.FullName,
	}
	if err := s.rosterWriter.CreateStudent(ctx, student); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}

	s.logger.Info("Student enrolled",
		zap.Int64("user_id", userID),
		zap.Int64("student_id", student.ID),
		zap.Int64("group_id", groupID),
	)
	return student, nil
}

// AppointTeacher даёт пользователю роль преподавателя
func (s *CatalogService) AppointTeacher(ctx context.Context, userID int64) (*model.Teacher, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, notFound("user", userID)
	}

	existing, err := s.roster.GetTeacherByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("user %d is a teacher: %w", userID, ErrAlreadyEnrolled)
	}

	teacher := &model.Teacher{UserID: userID, FullName: user.FullName}
	if err := s.rosterWriter.CreateTeacher(ctx, teacher); err != nil {
		return nil, fmt.Errorf("create teacher: %w", err)
	}

	// Администратор остаётся администратором
	if user.Role == model.UserRoleStudent {
		user.Role = model.UserRoleTeacher
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("update user role: %w", err)
		}
	}

	s.logger.Info("Teacher appointed",
		zap.Int64("user_id", userID),
		zap.Int64("teacher_id", teacher.ID),
	)
	return teacher, nil
}
