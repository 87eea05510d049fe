package service

import (
	"errors"
	"fmt"

	"github.com/Freeeeeet/attendance_bot/internal/model"
)

// Ошибки контроллера жизненного цикла. Все они локальные и восстановимые.
var (
	ErrAlreadyOpen    = errors.New("lesson is already open")
	ErrAlreadyClosed  = errors.New("lesson is already closed")
	ErrNotOpen        = errors.New("lesson is not open")
	ErrAlreadyMarked  = errors.New("attendance already marked")
	ErrGroupMismatch  = errors.New("student is not in the lesson group")
	ErrNotFound       = errors.New("not found")
	ErrNotYourLesson  = errors.New("lesson belongs to another teacher")
	ErrInvalidOutcome = errors.New("invalid attendance outcome")
	ErrInvalidActor   = errors.New("actor is not allowed to perform this action")
	ErrNotClosed      = errors.New("lesson is not closed yet")
	ErrInactive       = errors.New("schedule template is inactive")

	// Администрирование справочников
	ErrInvalidInput    = errors.New("invalid input")
	ErrAlreadyEnrolled = errors.New("user is already enrolled")
	ErrAlreadyExists   = errors.New("already exists")
)

// StateError отказ перехода: состояние занятия не удовлетворяет предусловию.
// Expired означает, что занятие формально ещё открыто, но окно уже истекло.
type StateError struct {
	Op      string
	State   model.LessonState
	Expired bool
	Err     error
}

func (e *StateError) Error() string {
	if e.Expired {
		return fmt.Sprintf("%s: %v (window expired)", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v (state %s)", e.Op, e.Err, e.State)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// TooEarly занятие ещё не открыто
func (e *StateError) TooEarly() bool {
	return e.State == model.LessonStatePending && !e.Expired
}

// TooLate занятие закрыто или окно отметки истекло
func (e *StateError) TooLate() bool {
	return e.Expired || e.State == model.LessonStateClosed
}

// IsTransitionRace ожидаемая гонка переходов, которую sweeper пропускает
func IsTransitionRace(err error) bool {
	return errors.Is(err, ErrAlreadyOpen) || errors.Is(err, ErrAlreadyClosed) || errors.Is(err, ErrNotOpen)
}

// transitionError подбирает ошибку по фактическому состоянию занятия
func transitionError(op string, state model.LessonState) error {
	var err error
	switch state {
	case model.LessonStateOpen:
		err = ErrAlreadyOpen
	case model.LessonStateClosed:
		err = ErrAlreadyClosed
	case model.LessonStatePending:
		err = ErrNotOpen
	default:
		err = fmt.Errorf("unknown lesson state %q", state)
	}
	return &StateError{Op: op, State: state, Err: err}
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
}
