package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureOccurrenceCreatesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lesson, err := f.lessons.EnsureOccurrence(ctx, f.tpl, monday)
	require.NoError(t, err)
	assert.Equal(t, model.LessonStatePending, lesson.State)
	assert.Equal(t, f.tpl.ID, lesson.TemplateID)
	assert.Nil(t, lesson.OpenedAt)

	again, err := f.lessons.EnsureOccurrence(ctx, f.tpl, monday)
	require.NoError(t, err)
	assert.Equal(t, lesson.ID, again.ID)
	assert.Equal(t, 1, f.events.count(model.LessonEventCreated))
}

func TestEnsureOccurrenceConcurrentCallersShareOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const callers = 32
	ids := make([]int64, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			lesson, err := f.lessons.EnsureOccurrence(ctx, f.tpl, monday)
			errs[i] = err
			if lesson != nil {
				ids[i] = lesson.ID
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, f.store.LessonCount(f.tpl.ID, monday))
	assert.Equal(t, 1, f.events.count(model.LessonEventCreated))
}

func TestEnsureOccurrenceInactiveTemplate(t *testing.T) {
	f := newFixture(t)
	f.store.SetTemplateActive(f.tpl.ID, false)
	tpl, err := f.store.Templates().GetByID(context.Background(), f.tpl.ID)
	require.NoError(t, err)

	_, err = f.lessons.EnsureOccurrence(context.Background(), tpl, monday)
	assert.ErrorIs(t, err, ErrInactive)
	assert.Equal(t, 0, f.store.LessonCount(f.tpl.ID, monday))
}

func TestEnsureTodayUsesPolicyDate(t *testing.T) {
	f := newFixture(t)

	lesson, err := f.lessons.EnsureToday(context.Background(), f.tpl.ID, at(8, 30))
	require.NoError(t, err)
	assert.Equal(t, monday, lesson.Date)

	_, err = f.lessons.EnsureToday(context.Background(), 9999, at(8, 30))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLessonStateIsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lesson, err := f.lessons.EnsureOccurrence(ctx, f.tpl, monday)
	require.NoError(t, err)

	// PENDING нельзя закрыть, минуя OPEN
	_, err = f.lessons.Close(ctx, lesson, f.teacherActor(), at(8, 50))
	require.ErrorIs(t, err, ErrNotOpen)

	opened, err := f.lessons.Open(ctx, lesson, f.teacherActor(), at(8, 50))
	require.NoError(t, err)
	assert.Equal(t, model.LessonStateOpen, opened.State)
	require.NotNil(t, opened.OpenedAt)
	assert.Equal(t, at(8, 50), *opened.OpenedAt)
	require.NotNil(t, opened.OpenedBy)
	assert.Equal(t, model.ActorTeacher, opened.OpenedBy.Kind)

	_, err = f.lessons.Open(ctx, lesson, f.teacherActor(), at(8, 51))
	require.ErrorIs(t, err, ErrAlreadyOpen)

	closed, err := f.lessons.Close(ctx, lesson, model.SystemActor(), at(9, 45))
	require.NoError(t, err)
	assert.Equal(t, model.LessonStateClosed, closed.State)

	_, err = f.lessons.Open(ctx, lesson, f.teacherActor(), at(9, 50))
	require.ErrorIs(t, err, ErrAlreadyClosed)

	_, err = f.lessons.Close(ctx, lesson, f.teacherActor(), at(9, 50))
	require.ErrorIs(t, err, ErrNotOpen)

	current, err := f.store.Lessons().GetByID(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LessonStateClosed, current.State)
	require.NotNil(t, current.ClosedAt)
	assert.Equal(t, at(9, 45), *current.ClosedAt, "closed_at must not change")
	assert.Equal(t, model.ActorSystem, current.ClosedBy.Kind)

	assert.Equal(t, []model.LessonEventKind{
		model.LessonEventCreated,
		model.LessonEventOpened,
		model.LessonEventClosed,
	}, f.events.kinds())
}

func TestConcurrentCloseHasSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lesson := f.openLesson(t, model.TimeOfDay{Hour: 9})

	const callers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := model.SystemActor()
			if i%2 == 0 {
				actor = f.teacherActor()
			}
			_, err := f.lessons.Close(ctx, lesson, actor, at(9, 45))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrNotOpen):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, rejected)
	assert.Equal(t, 1, f.events.count(model.LessonEventClosed))
}

func TestOpenRequiresOwnLesson(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lesson, err := f.lessons.EnsureOccurrence(ctx, f.tpl, monday)
	require.NoError(t, err)

	_, err = f.lessons.Open(ctx, lesson, model.TeacherActor(f.otherTeacher.ID), at(9, 0))
	assert.ErrorIs(t, err, ErrNotYourLesson)

	_, err = f.lessons.Open(ctx, lesson, f.selfActor(), at(9, 0))
	assert.ErrorIs(t, err, ErrInvalidActor)

	opened, err := f.lessons.Open(ctx, lesson, model.AdminActor(f.admin.ID), at(9, 0))
	require.NoError(t, err)
	assert.True(t, opened.IsOpen())
}

func TestOpenUnknownLesson(t *testing.T) {
	f := newFixture(t)

	_, err := f.lessons.OpenByID(context.Background(), 4242, f.teacherActor(), at(9, 0))
	assert.ErrorIs(t, err, ErrNotFound)
}

// Открыто в 09:00, отметка в 09:10 засчитывается вовремя, повтор отклоняется
func TestSelfMarkOnTimeThenDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lesson := f.openLesson(t, model.TimeOfDay{Hour: 9})

	mark, err := f.lessons.Mark(ctx, MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.student.ID,
		Actor:     f.selfActor(),
		Now:       at(9, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, model.AttendanceStatusPresent, mark.Status)
	assert.Equal(t, model.ActorSelf, mark.MarkedBy)

	_, err = f.lessons.Mark(ctx, MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.student.ID,
		Actor:     f.selfActor(),
		Now:       at(9, 12),
	})
	require.ErrorIs(t, err, ErrAlreadyMarked)

	stored, err := f.store.Attendance().Get(ctx, lesson.ID, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttendanceStatusPresent, stored.Status)
	assert.Equal(t, at(9, 10), stored.MarkedAt)
}

// Отметка в 09:20 опоздание, после закрытия в 09:45 отметки не принимаются
func TestSelfMarkLateThenClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lesson := f.openLesson(t, model.TimeOfDay{Hour: 9})

	mark, err := f.lessons.Mark(ctx, MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.student.ID,
		Actor:     f.selfActor(),
		Now:       at(9, 20),
	})
	require.NoError(t, err)
	assert.Equal(t, model.AttendanceStatusLate, mark.Status)

	_, err = f.lessons.Close(ctx, lesson, model.SystemActor(), at(9, 45))
	require.NoError(t, err)

	classmateUser := model.SelfActor(f.classmate.UserID)
	_, err = f.lessons.Mark(ctx, MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.classmate.ID,
		Actor:     classmateUser,
		Now:       at(9, 46),
	})
	require.ErrorIs(t, err, ErrNotOpen)

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.True(t, stateErr.TooLate())
	assert.False(t, stateErr.TooEarly())
}

func TestSelfMarkAfterWindowBeforeSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lesson := f.openLesson(t, model.TimeOfDay{Hour: 9})

	_, err := f.lessons.Mark(ctx, MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.student.ID,
		Actor:     f.selfActor(),
		Now:       at(9, 46),
	})
	require.ErrorIs(t, err, ErrNotOpen)

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.True(t, stateErr.Expired)
	assert.True(t, stateErr.TooLate())

	stored, err := f.store.Attendance().Get(ctx, lesson.ID, f.student.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestMarkPendingLessonIsTooEarly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lesson, err := f.lessons.EnsureOccurrence(ctx, f.tpl, monday)
	require.NoError(t, err)

	_, err = f.lessons.Mark(ctx, MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.student.ID,
		Actor:     f.selfActor(),
		Now:       at(8, 40),
	})
	require.ErrorIs(t, err, ErrNotOpen)

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.True(t, stateErr.TooEarly())

	_, err = f.lessons.Mark(ctx, MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.student.ID,
		Actor:     f.teacherActor(),
		Now:       at(8, 40),
		Outcome:   outcome(model.AttendanceStatusPresent),
	})
	require.ErrorIs(t, err, ErrNotOpen)
}

func TestConcurrentSelfMarksCreateOneMark(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lesson := f.openLesson(t, model.TimeOfDay{Hour: 9})

	const taps = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	created, duplicates := 0, 0

	start := make(chan struct{})
	for i := 0; i < taps; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.lessons.Mark(ctx, MarkRequest{
				LessonID:  lesson.ID,
				StudentID: f.student.ID,
				Actor:     f.selfActor(),
				Now:       at(9, 5).Add(time.Duration(i) * time.Millisecond),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrAlreadyMarked):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, taps-1, duplicates)
	assert.Equal(t, 1, f.events.count(model.LessonEventMarked))
}

func TestSelfMarkIgnoresSuppliedOutcome(t *testing.T) {
	f := newFixture(t)
	lesson := f.openLesson(t, model.TimeOfDay{Hour: 9})

	mark, err := f.lessons.Mark(context.Background(), MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.student.ID,
		Actor:     f.selfActor(),
		Now:       at(9, 30),
		Outcome:   outcome(model.AttendanceStatusPresent),
	})
	require.NoError(t, err)
	assert.Equal(t, model.AttendanceStatusLate, mark.Status)
}

func TestSelfMarkForAnotherStudent(t *testing.T) {
	f := newFixture(t)
	lesson := f.openLesson(t, model.TimeOfDay{Hour: 9})

	_, err := f.lessons.Mark(context.Background(), MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.classmate.ID,
		Actor:     f.selfActor(),
		Now:       at(9, 5),
	})
	assert.ErrorIs(t, err, ErrInvalidActor)
}

func TestMarkGroupMismatch(t *testing.T) {
	f := newFixture(t)
	lesson := f.openLesson(t, model.TimeOfDay{Hour: 9})

	_, err := f.lessons.Mark(context.Background(), MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.outsider.ID,
		Actor:     model.SelfActor(f.outsider.UserID),
		Now:       at(9, 5),
	})
	assert.ErrorIs(t, err, ErrGroupMismatch)
}

func TestMarkUnknownStudent(t *testing.T) {
	f := newFixture(t)
	lesson := f.openLesson(t, model.TimeOfDay{Hour: 9})

	_, err := f.lessons.Mark(context.Background(), MarkRequest{
		LessonID:  lesson.ID,
		StudentID: 777,
		Actor:     f.teacherActor(),
		Now:       at(9, 5),
		Outcome:   outcome(model.AttendanceStatusPresent),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTeacherMarkOverwrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lesson := f.openLesson(t, model.TimeOfDay{Hour: 9})

	_, err := f.lessons.Mark(ctx, MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.student.ID,
		Actor:     f.selfActor(),
		Now:       at(9, 20),
	})
	require.NoError(t, err)

	mark, err := f.lessons.Mark(ctx, MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.student.ID,
		Actor:     f.teacherActor(),
		Now:       at(9, 25),
		Outcome:   outcome(model.AttendanceStatusExcused),
		Note:      "справка",
	})
	require.NoError(t, err)
	assert.Equal(t, model.AttendanceStatusExcused, mark.Status)

	stored, err := f.store.Attendance().Get(ctx, lesson.ID, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttendanceStatusExcused, stored.Status)
	assert.Equal(t, model.ActorTeacher, stored.MarkedBy)
	assert.Equal(t, at(9, 25), stored.MarkedAt)
	assert.Equal(t, "справка", stored.Note)

	// Повторная отметка преподавателя тоже перезаписывает
	_, err = f.lessons.Mark(ctx, MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.student.ID,
		Actor:     f.teacherActor(),
		Now:       at(9, 26),
		Outcome:   outcome(model.AttendanceStatusPresent),
	})
	require.NoError(t, err)

	marks, err := f.store.Attendance().ListByLesson(ctx, lesson.ID)
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Equal(t, model.AttendanceStatusPresent, marks[0].Status)
}

func TestTeacherMarkRejectsUnknownOutcome(t *testing.T) {
	f := newFixture(t)
	lesson := f.openLesson(t, model.TimeOfDay{Hour: 9})

	_, err := f.lessons.Mark(context.Background(), MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.student.ID,
		Actor:     f.teacherActor(),
		Now:       at(9, 5),
		Outcome:   outcome(model.AttendanceStatus("presnt")),
	})
	assert.ErrorIs(t, err, ErrInvalidOutcome)

	_, err = f.lessons.Mark(context.Background(), MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.student.ID,
		Actor:     f.teacherActor(),
		Now:       at(9, 5),
	})
	assert.ErrorIs(t, err, ErrInvalidOutcome)
}

func TestTeacherMarkForeignLesson(t *testing.T) {
	f := newFixture(t)
	lesson := f.openLesson(t, model.TimeOfDay{Hour: 9})

	_, err := f.lessons.Mark(context.Background(), MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.student.ID,
		Actor:     model.TeacherActor(f.otherTeacher.ID),
		Now:       at(9, 5),
		Outcome:   outcome(model.AttendanceStatusPresent),
	})
	assert.ErrorIs(t, err, ErrNotYourLesson)
}

func TestSystemCannotMark(t *testing.T) {
	f := newFixture(t)
	lesson := f.openLesson(t, model.TimeOfDay{Hour: 9})

	_, err := f.lessons.Mark(context.Background(), MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.student.ID,
		Actor:     model.SystemActor(),
		Now:       at(9, 5),
		Outcome:   outcome(model.AttendanceStatusPresent),
	})
	assert.ErrorIs(t, err, ErrInvalidActor)
}

func TestCorrectOnlyAfterClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lesson := f.openLesson(t, model.TimeOfDay{Hour: 9})

	req := MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.student.ID,
		Actor:     model.AdminActor(f.admin.ID),
		Now:       at(12, 0),
		Outcome:   outcome(model.AttendanceStatusExcused),
	}

	_, err := f.lessons.Correct(ctx, req)
	require.ErrorIs(t, err, ErrNotClosed)

	_, err = f.lessons.Close(ctx, lesson, f.teacherActor(), at(9, 40))
	require.NoError(t, err)

	mark, err := f.lessons.Correct(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.AttendanceStatusExcused, mark.Status)
	assert.Equal(t, 1, f.events.count(model.LessonEventCorrected))

	req.Actor = f.selfActor()
	_, err = f.lessons.Correct(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidActor)
}

func TestMarkEventCarriesStudentAndStatus(t *testing.T) {
	f := newFixture(t)
	lesson := f.openLesson(t, model.TimeOfDay{Hour: 9})

	_, err := f.lessons.Mark(context.Background(), MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.student.ID,
		Actor:     f.selfActor(),
		Now:       at(9, 1),
	})
	require.NoError(t, err)

	f.events.mu.Lock()
	last := f.events.events[len(f.events.events)-1]
	f.events.mu.Unlock()

	assert.Equal(t, model.LessonEventMarked, last.Kind)
	require.NotNil(t, last.StudentID)
	assert.Equal(t, f.student.ID, *last.StudentID)
	assert.Equal(t, model.AttendanceStatusPresent, last.Status)
	assert.Equal(t, lesson.ID, last.LessonID)
}
