package service

import (
	"context"
	"testing"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/Freeeeeet/attendance_bot/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterUser(t *testing.T) {
	store := memory.New()
	admins := func(id int64) bool { return id == 42 }
	svc := NewUserService(store.Users(), store.Roster(), admins, zap.NewNop())
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, 7, "ivan", "Ivan Petrov")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, model.UserRoleStudent, user.Role)
	assert.True(t, user.IsActive)

	again, err := svc.RegisterUser(ctx, 7, "ivan_p", "")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, "ivan_p", again.Username)
	assert.Equal(t, "Ivan Petrov", again.FullName)

	admin, err := svc.RegisterUser(ctx, 42, "boss", "Boss")
	require.NoError(t, err)
	assert.Equal(t, model.UserRoleAdmin, admin.Role)
	assert.Equal(t, model.AdminActor(admin.ID), svc.ActorFor(admin))
}

func TestStudentAndTeacherOf(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.store.Users(), f.store.Roster(), nil, zap.NewNop())
	ctx := context.Background()

	student, err := svc.StudentOf(ctx, f.studentUser)
	require.NoError(t, err)
	assert.Equal(t, f.student.ID, student.ID)

	_, err = svc.TeacherOf(ctx, f.studentUser)
	assert.ErrorIs(t, err, ErrNotFound)

	teacher, err := svc.TeacherOf(ctx, f.teacherUser)
	require.NoError(t, err)
	assert.Equal(t, f.teacher.ID, teacher.ID)

	assert.Equal(t, model.TeacherActor(f.teacherUser.ID), svc.ActorFor(f.teacherUser))
	assert.Equal(t, model.SelfActor(f.studentUser.ID), svc.ActorFor(f.studentUser))
}
