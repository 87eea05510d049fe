package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"go.uber.org/zap"
)

// LessonService контроллер жизненного цикла занятий. Единственное место,
// где меняются state/opened_at/closed_at и создаются отметки.
type LessonService struct {
	templates  TemplateStore
	lessons    LessonStore
	attendance AttendanceStore
	roster     RosterStore
	policy     WindowPolicy
	events     EventSink
	logger     *zap.Logger
}

func NewLessonService(
	templates TemplateStore,
	lessons LessonStore,
	attendance AttendanceStore,
	roster RosterStore,
	policy WindowPolicy,
	events EventSink,
	logger *zap.Logger,
) *LessonService {
	return &LessonService{
		templates:  templates,
		lessons:    lessons,
		attendance: attendance,
		roster:     roster,
		policy:     policy,
		events:     events,
		logger:     logger,
	}
}

// MarkRequest запрос на отметку студента
type MarkRequest struct {
	LessonID  int64
	StudentID int64
	Actor     model.Actor
	Now       time.Time
	Outcome   *model.AttendanceStatus // только для преподавателя
	Note      string
}

// Policy возвращает политику окна, общую для всех вызывающих
func (s *LessonService) Policy() WindowPolicy {
	return s.policy
}

// EnsureOccurrence возвращает занятие шаблона на дату, создавая его в PENDING.
// Конкурентные вызовы получают одну и ту же запись.
func (s *LessonService) EnsureOccurrence(ctx context.Context, tpl *model.ScheduleTemplate, date time.Time) (*model.Lesson, error) {
	if tpl == nil {
		return nil, fmt.Errorf("ensure occurrence: template: %w", ErrNotFound)
	}
	if !tpl.IsActive {
		return nil, fmt.Errorf("ensure occurrence for template %d: %w", tpl.ID, ErrInactive)
	}

	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	lesson, created, err := s.lessons.Ensure(ctx, tpl.ID, date)
	if err != nil {
		return nil, fmt.Errorf("ensure lesson: %w", err)
	}

	if created {
		s.logger.Info("Lesson created",
			zap.Int64("lesson_id", lesson.ID),
			zap.Int64("template_id", tpl.ID),
			zap.Time("date", date),
		)
		s.emit(ctx, model.NewLessonEvent(model.LessonEventCreated, lesson, model.SystemActor(), lesson.CreatedAt))
	}

	return lesson, nil
}

// EnsureToday занятие шаблона на сегодняшнюю дату рабочей таймзоны
func (s *LessonService) EnsureToday(ctx context.Context, templateID int64, now time.Time) (*model.Lesson, error) {
	tpl, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if tpl == nil {
		return nil, notFound("template", templateID)
	}
	return s.EnsureOccurrence(ctx, tpl, s.policy.Today(now))
}

// Open переводит PENDING -> OPEN. Политику окна не проверяет:
// преподаватель вправе открыть раньше или позже.
func (s *LessonService) Open(ctx context.Context, lesson *model.Lesson, actor model.Actor, now time.Time) (*model.Lesson, error) {
	return s.OpenByID(ctx, lesson.ID, actor, now)
}

func (s *LessonService) OpenByID(ctx context.Context, lessonID int64, actor model.Actor, now time.Time) (*model.Lesson, error) {
	lesson, tpl, err := s.load(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, tpl, actor); err != nil {
		return nil, err
	}

	if !lesson.IsPending() {
		return nil, transitionError("open", lesson.State)
	}

	opened, err := s.lessons.Open(ctx, lessonID, actor, now)
	if err != nil {
		return nil, fmt.Errorf("open lesson: %w", err)
	}
	if opened == nil {
		// Кто-то успел раньше: смотрим, в каком состоянии занятие теперь
		return nil, s.raceError(ctx, "open", lessonID)
	}

	s.logger.Info("Lesson opened",
		zap.Int64("lesson_id", lessonID),
		zap.Int64("template_id", opened.TemplateID),
		zap.Stringer("actor", actor),
	)
	s.emit(ctx, model.NewLessonEvent(model.LessonEventOpened, opened, actor, now))

	return opened, nil
}

// Close переводит OPEN -> CLOSED
func (s *LessonService) Close(ctx context.Context, lesson *model.Lesson, actor model.Actor, now time.Time) (*model.Lesson, error) {
	return s.CloseByID(ctx, lesson.ID, actor, now)
}

func (s *LessonService) CloseByID(ctx context.Context, lessonID int64, actor model.Actor, now time.Time) (*model.Lesson, error) {
	lesson, tpl, err := s.load(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, tpl, actor); err != nil {
		return nil, err
	}

	if !lesson.IsOpen() {
		return nil, &StateError{Op: "close", State: lesson.State, Err: ErrNotOpen}
	}

	closed, err := s.lessons.Close(ctx, lessonID, actor, now)
	if err != nil {
		return nil, fmt.Errorf("close lesson: %w", err)
	}
	if closed == nil {
		return nil, s.raceError(ctx, "close", lessonID)
	}

	s.logger.Info("Lesson closed",
		zap.Int64("lesson_id", lessonID),
		zap.Int64("template_id", closed.TemplateID),
		zap.Stringer("actor", actor),
	)
	s.emit(ctx, model.NewLessonEvent(model.LessonEventClosed, closed, actor, now))

	return closed, nil
}

// Mark ставит отметку на открытом занятии.
// Студент отмечается один раз, статус вычисляется политикой окна.
// Преподаватель создаёт или перезаписывает отметку с явным статусом.
func (s *LessonService) Mark(ctx context.Context, req MarkRequest) (*model.Attendance, error) {
	lesson, tpl, err := s.load(ctx, req.LessonID)
	if err != nil {
		return nil, err
	}

	if !lesson.IsOpen() {
		return nil, &StateError{Op: "mark", State: lesson.State, Err: ErrNotOpen}
	}

	student, err := s.student(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	if student.GroupID != tpl.GroupID {
		return nil, ErrGroupMismatch
	}

	var mark *model.Attendance
	switch req.Actor.Kind {
	case model.ActorSelf:
		mark, err = s.selfMark(ctx, lesson, tpl, student, req)
	case model.ActorTeacher:
		mark, err = s.teacherMark(ctx, lesson, tpl, student, req, model.LessonStateOpen)
	case model.ActorSystem:
		return nil, ErrInvalidActor
	default:
		return nil, fmt.Errorf("unknown actor kind %q: %w", req.Actor.Kind, ErrInvalidActor)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Attendance marked",
		zap.Int64("lesson_id", lesson.ID),
		zap.Int64("student_id", student.ID),
		zap.String("status", string(mark.Status)),
		zap.Stringer("actor", req.Actor),
	)
	s.emitMark(ctx, model.LessonEventMarked, lesson, mark, req.Actor)

	return mark, nil
}

// Correct административная правка отметки после закрытия занятия
func (s *LessonService) Correct(ctx context.Context, req MarkRequest) (*model.Attendance, error) {
	if req.Actor.Kind != model.ActorTeacher {
		return nil, ErrInvalidActor
	}

	lesson, tpl, err := s.load(ctx, req.LessonID)
	if err != nil {
		return nil, err
	}

	if !lesson.IsClosed() {
		return nil, &StateError{Op: "correct", State: lesson.State, Err: ErrNotClosed}
	}

	student, err := s.student(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	if student.GroupID != tpl.GroupID {
		return nil, ErrGroupMismatch
	}

	mark, err := s.teacherMark(ctx, lesson, tpl, student, req, model.LessonStateClosed)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Attendance corrected",
		zap.Int64("lesson_id", lesson.ID),
		zap.Int64("student_id", student.ID),
		zap.String("status", string(mark.Status)),
		zap.Stringer("actor", req.Actor),
	)
	s.emitMark(ctx, model.LessonEventCorrected, lesson, mark, req.Actor)

	return mark, nil
}

func (s *LessonService) selfMark(
	ctx context.Context,
	lesson *model.Lesson,
	tpl *model.ScheduleTemplate,
	student *model.Student,
	req MarkRequest,
) (*model.Attendance, error) {
	if req.Actor.UserID == nil || *req.Actor.UserID != student.UserID {
		return nil, ErrInvalidActor
	}

	// Sweeper мог ещё не успеть закрыть занятие
	if s.policy.ShouldBeClosed(tpl, lesson.Date, req.Now) {
		return nil, &StateError{Op: "mark", State: lesson.State, Expired: true, Err: ErrNotOpen}
	}

	mark := &model.Attendance{
		LessonID:  lesson.ID,
		StudentID: student.ID,
		Status:    s.policy.Classify(tpl, lesson.Date, req.Now),
		MarkedAt:  req.Now,
		MarkedBy:  model.ActorSelf,
		MarkerID:  req.Actor.UserID,
		Note:      req.Note,
	}

	created, err := s.attendance.InsertIfAbsent(ctx, mark, model.LessonStateOpen)
	if err != nil {
		return nil, fmt.Errorf("insert attendance: %w", err)
	}
	if created {
		return mark, nil
	}

	existing, err := s.attendance.Get(ctx, lesson.ID, student.ID)
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyMarked
	}
	// Отметки нет, значит занятие закрылось между проверкой и вставкой
	return nil, s.raceError(ctx, "mark", lesson.ID)
}

func (s *LessonService) teacherMark(
	ctx context.Context,
	lesson *model.Lesson,
	tpl *model.ScheduleTemplate,
	student *model.Student,
	req MarkRequest,
	required model.LessonState,
) (*model.Attendance, error) {
	if err := s.authorize(ctx, tpl, req.Actor); err != nil {
		return nil, err
	}
	if req.Outcome == nil || !req.Outcome.Valid() {
		return nil, ErrInvalidOutcome
	}

	mark := &model.Attendance{
		LessonID:  lesson.ID,
		StudentID: student.ID,
		Status:    *req.Outcome,
		MarkedAt:  req.Now,
		MarkedBy:  model.ActorTeacher,
		MarkerID:  req.Actor.UserID,
		Note:      req.Note,
	}

	ok, err := s.attendance.Upsert(ctx, mark, required)
	if err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	if !ok {
		return nil, s.raceError(ctx, "mark", lesson.ID)
	}

	return mark, nil
}

// authorize проверяет право актора управлять занятием шаблона
func (s *LessonService) authorize(ctx context.Context, tpl *model.ScheduleTemplate, actor model.Actor) error {
	switch actor.Kind {
	case model.ActorSystem:
		return nil
	case model.ActorTeacher:
		if actor.IsAdmin {
			return nil
		}
		if actor.UserID == nil {
			return ErrInvalidActor
		}
		teacher, err := s.roster.GetTeacherByUserID(ctx, *actor.UserID)
		if err != nil {
			return fmt.Errorf("get teacher: %w", err)
		}
		if teacher == nil || !tpl.IsTaughtBy(teacher.ID) {
			return ErrNotYourLesson
		}
		return nil
	default:
		return ErrInvalidActor
	}
}

func (s *LessonService) load(ctx context.Context, lessonID int64) (*model.Lesson, *model.ScheduleTemplate, error) {
	lesson, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return nil, nil, fmt.Errorf("get lesson: %w", err)
	}
	if lesson == nil {
		return nil, nil, notFound("lesson", lessonID)
	}

	tpl, err := s.templates.GetByID(ctx, lesson.TemplateID)
	if err != nil {
		return nil, nil, fmt.Errorf("get template: %w", err)
	}
	if tpl == nil {
		return nil, nil, notFound("template", lesson.TemplateID)
	}

	return lesson, tpl, nil
}

func (s *LessonService) student(ctx context.Context, studentID int64) (*model.Student, error) {
	student, err := s.roster.GetStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, notFound("student", studentID)
	}
	return student, nil
}

// raceError перечитывает занятие после неудачного compare-and-set
func (s *LessonService) raceError(ctx context.Context, op string, lessonID int64) error {
	current, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return fmt.Errorf("reload lesson: %w", err)
	}
	if current == nil {
		return notFound("lesson", lessonID)
	}
	if op == "open" {
		return transitionError(op, current.State)
	}
	return &StateError{Op: op, State: current.State, Err: ErrNotOpen}
}

func (s *LessonService) emitMark(ctx context.Context, kind model.LessonEventKind, lesson *model.Lesson, mark *model.Attendance, actor model.Actor) {
	event := model.NewLessonEvent(kind, lesson, actor, mark.MarkedAt)
	studentID := mark.StudentID
	event.StudentID = &studentID
	event.Status = mark.Status
	s.emit(ctx, event)
}

func (s *LessonService) emit(ctx context.Context, event model.LessonEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish lesson event",
			zap.String("kind", string(event.Kind)),
			zap.Int64("lesson_id", event.LessonID),
			zap.Error(err),
		)
	}
}

// CanManage проверяет, что актор вправе управлять занятием
func (s *LessonService) CanManage(ctx context.Context, lessonID int64, actor model.Actor) error {
	_, tpl, err := s.load(ctx, lessonID)
	if err != nil {
		return err
	}
	return s.authorize(ctx, tpl, actor)
}
