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

var (
	_ CatalogStore   = (*memory.Catalog)(nil)
	_ TemplateWriter = (*memory.Templates)(nil)
	_ RosterWriter   = (*memory.Roster)(nil)
)

func newCatalog(store *memory.Store) *CatalogService {
	return NewCatalogService(
		store.Catalog(),
		store.Templates(),
		store.Templates(),
		store.Roster(),
		store.Roster(),
		store.Users(),
		zap.NewNop(),
	)
}

func TestCatalogGroupsAndSubjects(t *testing.T) {
	ctx := context.Background()
	svc := newCatalog(memory.New())

	_, err := svc.CreateGroup(ctx, GroupInput{Name: "  "})
	require.ErrorIs(t, err, ErrInvalidInput)

	b, err := svc.CreateGroup(ctx, GroupInput{Name: "ИТ-22"})
	require.NoError(t, err)
	a, err := svc.CreateGroup(ctx, GroupInput{Name: " ИТ-21 "})
	require.NoError(t, err)
	assert.Equal(t, "ИТ-21", a.Name)
	assert.Equal(t, 1, a.Course)

	_, err = svc.CreateGroup(ctx, GroupInput{Name: "ИТ-21"})
	require.ErrorIs(t, err, ErrAlreadyExists)

	groups, err := svc.ListGroups(ctx, 0)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, a.ID, groups[0].ID)
	assert.Equal(t, b.ID, groups[1].ID)

	_, err = svc.CreateSubject(ctx, "")
	require.ErrorIs(t, err, ErrInvalidInput)
	sub, err := svc.CreateSubject(ctx, "Физика")
	require.NoError(t, err)
	assert.NotZero(t, sub.ID)

	_, err = svc.CreateSubject(ctx, " Физика ")
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCatalogDirections(t *testing.T) {
	ctx := context.Background()
	svc := newCatalog(memory.New())

	_, err := svc.CreateDirection(ctx, " ", "")
	require.ErrorIs(t, err, ErrInvalidInput)

	dir, err := svc.CreateDirection(ctx, "Прикладная информатика", "ПИ")
	require.NoError(t, err)
	_, err = svc.CreateDirection(ctx, "Прикладная информатика", "")
	require.ErrorIs(t, err, ErrAlreadyExists)

	missing := int64(999)
	_, err = svc.CreateGroup(ctx, GroupInput{Name: "ПИ-11", DirectionID: &missing})
	require.ErrorIs(t, err, ErrNotFound)

	for _, course := range []int{-1, 7} {
		_, err = svc.CreateGroup(ctx, GroupInput{Name: "ПИ-11", DirectionID: &dir.ID, Course: course})
		require.ErrorIs(t, err, ErrInvalidInput, "course %d", course)
	}

	pi, err := svc.CreateGroup(ctx, GroupInput{Name: "ПИ-21", DirectionID: &dir.ID, Course: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, pi.Course)
	_, err = svc.CreateGroup(ctx, GroupInput{Name: "ИТ-11"})
	require.NoError(t, err)

	inDirection, err := svc.ListGroups(ctx, dir.ID)
	require.NoError(t, err)
	require.Len(t, inDirection, 1)
	assert.Equal(t, pi.ID, inDirection[0].ID)

	all, err := svc.ListGroups(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	directions, err := svc.ListDirections(ctx)
	require.NoError(t, err)
	require.Len(t, directions, 1)
	assert.Equal(t, "ПИ", directions[0].ShortName)
}

func TestCatalogTemplates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newCatalog(store)

	group, err := svc.CreateGroup(ctx, GroupInput{Name: "ИТ-21"})
	require.NoError(t, err)
	sub, err := svc.CreateSubject(ctx, "Физика")
	require.NoError(t, err)

	bad := &model.ScheduleTemplate{
		GroupID:   group.ID,
		SubjectID: sub.ID,
		DayOfWeek: 2,
		StartTime: model.TimeOfDay{Hour: 11},
		EndTime:   model.TimeOfDay{Hour: 10},
	}
	require.ErrorIs(t, svc.CreateTemplate(ctx, bad), ErrInvalidInput)

	orphan := &model.ScheduleTemplate{
		GroupID:   999,
		SubjectID: sub.ID,
		DayOfWeek: 2,
		StartTime: model.TimeOfDay{Hour: 9},
		EndTime:   model.TimeOfDay{Hour: 10, Minute: 20},
	}
	require.ErrorIs(t, svc.CreateTemplate(ctx, orphan), ErrNotFound)

	tpl := &model.ScheduleTemplate{
		GroupID:   group.ID,
		SubjectID: sub.ID,
		DayOfWeek: 2,
		StartTime: model.TimeOfDay{Hour: 9},
		EndTime:   model.TimeOfDay{Hour: 10, Minute: 20},
	}
	require.NoError(t, svc.CreateTemplate(ctx, tpl))
	assert.True(t, tpl.IsActive)
	assert.Equal(t, "ИТ-21", tpl.GroupName)

	listed, err := store.Templates().ListActiveByWeekday(ctx, 2)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Физика", listed[0].SubjectName)

	require.NoError(t, svc.SetTemplateActive(ctx, tpl.ID, false))
	listed, err = store.Templates().ListActiveByWeekday(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, listed)

	require.ErrorIs(t, svc.SetTemplateActive(ctx, 12345, true), ErrNotFound)
}

func TestCatalogEnrollAndAppoint(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newCatalog(store)

	group, err := svc.CreateGroup(ctx, GroupInput{Name: "ИТ-21"})
	require.NoError(t, err)
	user := store.AddUser(model.User{TelegramID: 10, FullName: "Иванов", Role: model.UserRoleStudent, IsActive: true})

	_, err = svc.EnrollStudent(ctx, 999, group.ID, "")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.EnrollStudent(ctx, user.ID, 999, "")
	require.ErrorIs(t, err, ErrNotFound)

	student, err := svc.EnrollStudent(ctx, user.ID, group.ID, " S-1 ")
	require.NoError(t, err)
	assert.Equal(t, "S-1", student.StudentCode)

	members, err := store.Roster().ListStudentsByGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Иванов", members[0].FullName)

	_, err = svc.EnrollStudent(ctx, user.ID, group.ID, "S-1")
	require.ErrorIs(t, err, ErrAlreadyEnrolled)

	teacher, err := svc.AppointTeacher(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, teacher.UserID)

	updated, err := store.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UserRoleTeacher, updated.Role)

	_, err = svc.AppointTeacher(ctx, user.ID)
	require.ErrorIs(t, err, ErrAlreadyEnrolled)

	admin := store.AddUser(model.User{TelegramID: 11, Role: model.UserRoleAdmin, IsActive: true})
	_, err = svc.AppointTeacher(ctx, admin.ID)
	require.NoError(t, err)
	updated, err = store.Users().GetByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UserRoleAdmin, updated.Role)
}

func TestCatalogStatsAndTemplateList(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newCatalog(store)

	group, err := svc.CreateGroup(ctx, GroupInput{Name: "ИТ-21"})
	require.NoError(t, err)
	sub, err := svc.CreateSubject(ctx, "Физика")
	require.NoError(t, err)
	store.AddUser(model.User{TelegramID: 10, Role: model.UserRoleStudent, IsActive: true})

	wed := &model.ScheduleTemplate{GroupID: group.ID, SubjectID: sub.ID, DayOfWeek: 2,
		StartTime: model.TimeOfDay{Hour: 9}, EndTime: model.TimeOfDay{Hour: 10, Minute: 20}}
	mon := &model.ScheduleTemplate{GroupID: group.ID, SubjectID: sub.ID, DayOfWeek: 0,
		StartTime: model.TimeOfDay{Hour: 11}, EndTime: model.TimeOfDay{Hour: 12, Minute: 20}}
	require.NoError(t, svc.CreateTemplate(ctx, wed))
	require.NoError(t, svc.CreateTemplate(ctx, mon))
	require.NoError(t, svc.SetTemplateActive(ctx, wed.ID, false))

	listed, err := svc.ListTemplates(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2, "inactive templates stay listed")
	assert.Equal(t, mon.ID, listed[0].ID)
	assert.False(t, listed[1].IsActive)

	other, err := svc.ListTemplates(ctx, group.ID+100)
	require.NoError(t, err)
	assert.Empty(t, other)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Groups)
	assert.Equal(t, 1, stats.Subjects)
	assert.Equal(t, 1, stats.ActiveTemplates)
	assert.Zero(t, stats.Lessons)
}

func TestCatalogImportTemplates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newCatalog(store)

	group, err := svc.CreateGroup(ctx, GroupInput{Name: "ИТ-21"})
	require.NoError(t, err)
	physics, err := svc.CreateSubject(ctx, "Физика")
	require.NoError(t, err)

	rows := []TemplateImportRow{
		{Row: 2, GroupName: "ИТ-21", SubjectName: "Физика", DayOfWeek: 0,
			StartTime: model.TimeOfDay{Hour: 9}, EndTime: model.TimeOfDay{Hour: 10, Minute: 20}, Room: " 101 "},
		{Row: 3, GroupName: "ИТ-99", SubjectName: "Физика", DayOfWeek: 0,
			StartTime: model.TimeOfDay{Hour: 9}, EndTime: model.TimeOfDay{Hour: 10, Minute: 20}},
		{Row: 4, GroupName: "ИТ-21", SubjectName: "Химия", DayOfWeek: 1,
			StartTime: model.TimeOfDay{Hour: 9}, EndTime: model.TimeOfDay{Hour: 10, Minute: 20}},
		{Row: 5, GroupName: "ИТ-21", SubjectName: "Химия", DayOfWeek: 3,
			StartTime: model.TimeOfDay{Hour: 12}, EndTime: model.TimeOfDay{Hour: 11}},
		{Row: 6, GroupName: "ИТ-21", SubjectName: "Химия", DayOfWeek: 4,
			StartTime: model.TimeOfDay{Hour: 13}, EndTime: model.TimeOfDay{Hour: 14, Minute: 20}},
	}

	result := svc.ImportTemplates(ctx, rows)
	assert.Equal(t, 3, result.Imported)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Message, "ИТ-99")
	assert.Equal(t, 5, result.Errors[1].Row)

	templates, err := svc.ListTemplates(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, templates, 3)
	assert.Equal(t, physics.ID, templates[0].SubjectID)
	assert.Equal(t, "101", templates[0].Room)
	assert.Equal(t, templates[1].SubjectID, templates[2].SubjectID, "subject created once")

	chemistry, err := store.Catalog().GetSubjectByName(ctx, "Химия")
	require.NoError(t, err)
	require.NotNil(t, chemistry)
	assert.Equal(t, chemistry.ID, templates[1].SubjectID)
}
