package keyboard

import (
	"testing"

	"github.com/Freeeeeet/attendance_bot/internal/controller/common"
	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/Freeeeeet/attendance_bot/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id int64, state model.LessonState, canMark bool) service.TodayLesson {
	return service.TodayLesson{
		Lesson:   &model.Lesson{ID: id, State: state},
		Template: &model.ScheduleTemplate{StartTime: model.TimeOfDay{Hour: 9}, SubjectName: "Math"},
		CanMark:  canMark,
	}
}

func TestStudentTodayOnlyMarkableLessons(t *testing.T) {
	kb := StudentToday([]service.TodayLesson{
		item(1, model.LessonStatePending, false),
		item(2, model.LessonStateOpen, true),
		item(3, model.LessonStateClosed, false),
	})

	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "mark:2", kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, common.RefreshToday, kb.InlineKeyboard[1][0].CallbackData)
}

func TestTeacherTodayActionsFollowState(t *testing.T) {
	kb := TeacherToday([]service.TodayLesson{
		item(1, model.LessonStatePending, false),
		item(2, model.LessonStateOpen, false),
		item(3, model.LessonStateClosed, false),
	})

	require.Len(t, kb.InlineKeyboard, 4)
	assert.Equal(t, "open:1", kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "roster:1", kb.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "close:2", kb.InlineKeyboard[1][0].CallbackData)
	require.Len(t, kb.InlineKeyboard[2], 1)
	assert.Equal(t, "roster:3", kb.InlineKeyboard[2][0].CallbackData)
}
