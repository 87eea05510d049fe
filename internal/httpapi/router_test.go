package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/auth"
	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/Freeeeeet/attendance_bot/internal/repository/memory"
	"github.com/Freeeeeet/attendance_bot/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiEnv struct {
	router  *gin.Engine
	store   *memory.Store
	lessons *service.LessonService
	issuer  *auth.Issuer
	now     time.Time

	student, teacher, stranger, admin *model.User
	studentRec                        *model.Student
	tpl                               *model.ScheduleTemplate
}

const testBotToken = "123456:test-token"

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func newAPIEnv(t *testing.T, db Pinger) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	env := &apiEnv{
		store:  store,
		issuer: auth.NewIssuer("secret", "attendance", time.Hour),
		now:    time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
	}

	env.student = store.AddUser(model.User{TelegramID: 1, FullName: "Student", Role: model.UserRoleStudent, IsActive: true})
	env.teacher = store.AddUser(model.User{TelegramID: 2, FullName: "Teacher", Role: model.UserRoleTeacher, IsActive: true})
	env.stranger = store.AddUser(model.User{TelegramID: 3, FullName: "Stranger", Role: model.UserRoleTeacher, IsActive: true})
	env.admin = store.AddUser(model.User{TelegramID: 4, FullName: "Admin", Role: model.UserRoleAdmin, IsActive: true})

	env.studentRec = store.AddStudent(model.Student{UserID: env.student.ID, GroupID: 1, FullName: "Student"})
	teacherRec := store.AddTeacher(model.Teacher{UserID: env.teacher.ID})
	store.AddTeacher(model.Teacher{UserID: env.stranger.ID})

	teacherID := teacherRec.ID
	env.tpl = store.AddTemplate(model.ScheduleTemplate{
		GroupID:     1,
		SubjectID:   1,
		TeacherID:   &teacherID,
		DayOfWeek:   0,
		StartTime:   model.TimeOfDay{Hour: 9},
		EndTime:     model.TimeOfDay{Hour: 10, Minute: 20},
		IsActive:    true,
		SubjectName: "Math",
	})

	logger := zap.NewNop()
	policy := service.NewWindowPolicy(5*time.Minute, 45*time.Minute, 15*time.Minute, time.UTC)
	env.lessons = service.NewLessonService(store.Templates(), store.Lessons(), store.Attendance(), store.Roster(), policy, nil, logger)

	env.router = NewRouter(Deps{
		Users:   service.NewUserService(store.Users(), store.Roster(), nil, logger),
		Lessons: env.lessons,
		Today:   service.NewTodayService(env.lessons, store.Templates(), store.Attendance(), store.Roster(), logger),
		Reports: service.NewReportService(store.Templates(), store.Lessons(), store.Attendance(), store.Roster(), logger),
		Catalog: service.NewCatalogService(store.Catalog(), store.Templates(), store.Templates(), store.Roster(), store.Roster(), store.Users(), logger),
		Issuer:  env.issuer,
		DB:      db,
		Now:     func() time.Time { return env.now },
		Logger:  logger,

		BotToken:    testBotToken,
		InitDataTTL: 24 * time.Hour,
	})
	return env
}

func (e *apiEnv) do(t *testing.T, user *model.User, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, _, err := e.issuer.Issue(user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) at(h, m int) {
	e.now = time.Date(2026, 10, 19, h, m, 0, 0, time.UTC)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func (e *apiEnv) todayLessonID(t *testing.T) int64 {
	t.Helper()
	w := e.do(t, e.student, http.MethodGet, "/api/v1/student/today", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Lessons []struct {
			Lesson model.Lesson `json:"lesson"`
		} `json:"lessons"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Lessons, 1)
	return body.Lessons[0].Lesson.ID
}

func TestHealthz(t *testing.T) {
	env := newAPIEnv(t, nil)
	assert.Equal(t, http.StatusOK, env.do(t, nil, http.MethodGet, "/healthz", nil).Code)

	down := newAPIEnv(t, failingPinger{})
	assert.Equal(t, http.StatusServiceUnavailable, down.do(t, nil, http.MethodGet, "/healthz", nil).Code)
}

func TestRequiresToken(t *testing.T) {
	env := newAPIEnv(t, nil)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, nil, http.MethodGet, "/api/v1/student/today", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, env.teacher, http.MethodGet, "/api/v1/student/today", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, env.student, http.MethodGet, "/api/v1/teacher/today", nil).Code)
}

func TestStudentCheckInFlow(t *testing.T) {
	env := newAPIEnv(t, nil)
	lessonID := env.todayLessonID(t)

	// Занятие ещё в PENDING
	env.at(8, 50)
	w := env.do(t, env.student, http.MethodPost, "/api/v1/attendance/mark", gin.H{"lesson_id": lessonID})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "too_early", decode(t, w)["reason"])

	env.at(8, 58)
	w = env.do(t, env.teacher, http.MethodPost, fmt.Sprintf("/api/v1/teacher/lessons/%d/open", lessonID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "open", decode(t, w)["state"])

	env.at(9, 20)
	w = env.do(t, env.student, http.MethodPost, "/api/v1/attendance/mark", gin.H{"lesson_id": lessonID})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "late", decode(t, w)["status"])

	w = env.do(t, env.student, http.MethodPost, "/api/v1/attendance/mark", gin.H{"lesson_id": lessonID})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, service.ErrorMessage(service.ErrAlreadyMarked), decode(t, w)["error"])

	env.at(9, 50)
	w = env.do(t, env.student, http.MethodPost, "/api/v1/attendance/mark", gin.H{"lesson_id": lessonID})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "too_late", decode(t, w)["reason"])
}

func TestMarkValidation(t *testing.T) {
	env := newAPIEnv(t, nil)

	w := env.do(t, env.student, http.MethodPost, "/api/v1/attendance/mark", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, env.student, http.MethodPost, "/api/v1/attendance/mark", gin.H{"lesson_id": 999})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTeacherOwnershipAndMarks(t *testing.T) {
	env := newAPIEnv(t, nil)
	lessonID := env.todayLessonID(t)
	base := fmt.Sprintf("/api/v1/teacher/lessons/%d", lessonID)

	w := env.do(t, env.stranger, http.MethodPost, base+"/open", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, env.teacher, http.MethodPost, base+"/open", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, env.teacher, http.MethodPost, base+"/open", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, env.teacher, http.MethodPost, base+"/mark", gin.H{"student_id": env.studentRec.ID, "status": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, env.teacher, http.MethodPost, base+"/mark", gin.H{"student_id": env.studentRec.ID, "status": "excused", "note": "справка"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "excused", decode(t, w)["status"])

	w = env.do(t, env.stranger, http.MethodGet, base+"/attendance", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, env.teacher, http.MethodGet, base+"/attendance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var roster service.Roster
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &roster))
	require.Len(t, roster.Entries, 1)
	require.NotNil(t, roster.Entries[0].Status)
	assert.Equal(t, model.AttendanceStatusExcused, *roster.Entries[0].Status)

	w = env.do(t, env.teacher, http.MethodPost, base+"/close", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "closed", decode(t, w)["state"])
}

func TestAdminCorrectionAndReport(t *testing.T) {
	env := newAPIEnv(t, nil)
	lessonID := env.todayLessonID(t)

	env.at(9, 0)
	_, err := env.lessons.OpenByID(context.Background(), lessonID, model.SystemActor(), env.now)
	require.NoError(t, err)

	correct := fmt.Sprintf("/api/v1/admin/lessons/%d/correct", lessonID)
	body := gin.H{"student_id": env.studentRec.ID, "status": "present"}

	w := env.do(t, env.teacher, http.MethodPost, correct, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, env.admin, http.MethodPost, correct, body)
	assert.Equal(t, http.StatusConflict, w.Code, "lesson is still open")

	env.at(9, 45)
	_, err = env.lessons.CloseByID(context.Background(), lessonID, model.SystemActor(), env.now)
	require.NoError(t, err)

	w = env.do(t, env.admin, http.MethodPost, correct, body)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, env.admin, http.MethodGet, "/api/v1/admin/report/attendance?group_id=1&from=2026-10-01&to=2026-10-31", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rep service.GroupReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	require.Len(t, rep.Rows, 1)
	assert.Equal(t, []model.AttendanceStatus{model.AttendanceStatusPresent}, rep.Rows[0].Statuses)

	w = env.do(t, env.admin, http.MethodGet, "/api/v1/admin/report/attendance?group_id=1&from=2026-10-01&to=2026-10-31&format=xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxMIME, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attendance_group1_2026-10-01_2026-10-31.xlsx")
	assert.NotZero(t, w.Body.Len())

	w = env.do(t, env.admin, http.MethodGet, "/api/v1/admin/report/attendance?group_id=1&from=31.10.2026", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudentStatsEndpoint(t *testing.T) {
	env := newAPIEnv(t, nil)
	lessonID := env.todayLessonID(t)

	env.at(9, 0)
	_, err := env.lessons.OpenByID(context.Background(), lessonID, model.SystemActor(), env.now)
	require.NoError(t, err)
	env.at(9, 45)
	_, err = env.lessons.CloseByID(context.Background(), lessonID, model.SystemActor(), env.now)
	require.NoError(t, err)

	w := env.do(t, env.student, http.MethodGet, "/api/v1/student/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats service.StudentStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalLessons)
	assert.Equal(t, 1, stats.Counts[model.AttendanceStatusAbsent])
	assert.Zero(t, stats.Percentage)

	w = env.do(t, env.student, http.MethodGet, "/api/v1/student/history?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		History []service.HistoryEntry `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.History, 1)
	assert.Equal(t, lessonID, history.History[0].LessonID)
	assert.Equal(t, model.AttendanceStatusAbsent, history.History[0].Status)
	assert.True(t, history.History[0].Defaulted)

	w = env.do(t, env.student, http.MethodGet, "/api/v1/student/history?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, env.student, http.MethodGet, "/api/v1/student/history?limit=1000", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, env.student, http.MethodGet, "/api/v1/student/stats/subjects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var subjects struct {
		Subjects []service.SubjectStat `json:"subjects"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &subjects))
	require.Len(t, subjects.Subjects, 1)
	assert.Equal(t, "Math", subjects.Subjects[0].SubjectName)
	assert.Equal(t, 1, subjects.Subjects[0].TotalLessons)

	w = env.do(t, env.teacher, http.MethodGet, "/api/v1/student/history", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminCatalog(t *testing.T) {
	env := newAPIEnv(t, nil)

	w := env.do(t, env.teacher, http.MethodPost, "/api/v1/admin/groups", gin.H{"name": "ИТ-21"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, env.admin, http.MethodPost, "/api/v1/admin/groups", gin.H{"name": "ИТ-21"})
	require.Equal(t, http.StatusCreated, w.Code)
	groupID := int64(decode(t, w)["id"].(float64))

	w = env.do(t, env.admin, http.MethodGet, "/api/v1/admin/groups", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["groups"], 1)

	w = env.do(t, env.admin, http.MethodPost, "/api/v1/admin/subjects", gin.H{"name": "Физика"})
	require.Equal(t, http.StatusCreated, w.Code)
	subjectID := int64(decode(t, w)["id"].(float64))

	w = env.do(t, env.admin, http.MethodPost, "/api/v1/admin/templates", gin.H{
		"group_id": groupID, "subject_id": subjectID, "day_of_week": 0,
		"start_time": "9:60", "end_time": "11:20",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, env.admin, http.MethodPost, "/api/v1/admin/templates", gin.H{
		"group_id": groupID, "subject_id": subjectID, "day_of_week": 0,
		"start_time": "12:00", "end_time": "11:20",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, env.admin, http.MethodPost, "/api/v1/admin/templates", gin.H{
		"group_id": groupID, "subject_id": subjectID, "day_of_week": 0,
		"start_time": "10:30", "end_time": "11:50", "room": "204",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	templateID := int64(decode(t, w)["id"].(float64))

	w = env.do(t, env.admin, http.MethodPatch, fmt.Sprintf("/api/v1/admin/templates/%d", templateID), gin.H{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["is_active"])

	newcomer := env.store.AddUser(model.User{TelegramID: 50, FullName: "Newcomer", Role: model.UserRoleStudent, IsActive: true})

	w = env.do(t, env.admin, http.MethodPost, "/api/v1/admin/students", gin.H{"user_id": newcomer.ID, "group_id": groupID})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, env.admin, http.MethodPost, "/api/v1/admin/students", gin.H{"user_id": newcomer.ID, "group_id": groupID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, env.admin, http.MethodPost, "/api/v1/admin/teachers", gin.H{"user_id": newcomer.ID})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, env.admin, http.MethodGet, "/api/v1/admin/users?role=teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["users"], 3)

	w = env.do(t, env.admin, http.MethodGet, "/api/v1/admin/users?role=janitor", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
