package service

import (
	"context"
	"testing"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudentTodayCreatesPendingLesson(t *testing.T) {
	f := newFixture(t)

	items, err := f.today.StudentToday(context.Background(), f.student.ID, at(8, 0))
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, model.LessonStatePending, item.Lesson.State)
	assert.False(t, item.CanMark)
	assert.False(t, item.IsMarked)
	assert.Nil(t, item.TimeRemaining)
	assert.Equal(t, 2, item.TotalStudents)
	assert.Equal(t, 1, f.store.LessonCount(f.tpl.ID, monday))
}

func TestStudentTodayOpenLesson(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lesson := f.openLesson(t, model.TimeOfDay{Hour: 8, Minute: 55})

	items, err := f.today.StudentToday(ctx, f.student.ID, at(9, 10))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, lesson.ID, items[0].Lesson.ID)
	assert.True(t, items[0].CanMark)
	require.NotNil(t, items[0].TimeRemaining)
	assert.Equal(t, 35, *items[0].TimeRemaining)

	_, err = f.lessons.Mark(ctx, MarkRequest{
		LessonID:  lesson.ID,
		StudentID: f.student.ID,
		Actor:     f.selfActor(),
		Now:       at(9, 11),
	})
	require.NoError(t, err)

	items, err = f.today.StudentToday(ctx, f.student.ID, at(9, 12))
	require.NoError(t, err)
	assert.True(t, items[0].IsMarked)
	assert.False(t, items[0].CanMark)
	require.NotNil(t, items[0].MarkedStatus)
	assert.Equal(t, model.AttendanceStatusPresent, *items[0].MarkedStatus)
	assert.Equal(t, 1, items[0].MarkedCount)
}

func TestStudentTodayExpiredWindow(t *testing.T) {
	f := newFixture(t)
	f.openLesson(t, model.TimeOfDay{Hour: 9})

	items, err := f.today.StudentToday(context.Background(), f.student.ID, at(9, 50))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].CanMark)
	assert.Nil(t, items[0].TimeRemaining)
}

func TestStudentTodayOtherWeekday(t *testing.T) {
	f := newFixture(t)

	tuesday := at(9, 0).AddDate(0, 0, 1)
	items, err := f.today.StudentToday(context.Background(), f.student.ID, tuesday)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestTeacherToday(t *testing.T) {
	f := newFixture(t)

	items, err := f.today.TeacherToday(context.Background(), f.teacher.ID, at(8, 0))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, f.tpl.ID, items[0].Template.ID)
	assert.Equal(t, 2, items[0].TotalStudents)
}
