package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/auth"
	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/Freeeeeet/attendance_bot/internal/report"
	"github.com/Freeeeeet/attendance_bot/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	dateLayout = "2006-01-02"
	xlsxMIME   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var errUnknownUser = errors.New("user from token does not exist")

type markRequest struct {
	LessonID int64 `json:"lesson_id" binding:"required"`
}

type teacherMarkRequest struct {
	StudentID int64  `json:"student_id" binding:"required"`
	Status    string `json:"status" binding:"required"`
	Note      string `json:"note"`
}

func (h *handler) me(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *handler) studentToday(c *gin.Context) {
	student, ok := h.currentStudent(c)
	if !ok {
		return
	}

	lessons, err := h.today.StudentToday(c.Request.Context(), student.ID, h.now())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lessons": lessons})
}

func (h *handler) studentStats(c *gin.Context) {
	student, ok := h.currentStudent(c)
	if !ok {
		return
	}

	today := h.lessons.Policy().Today(h.now())
	from, to, err := dateRange(c, today.AddDate(-1, 0, 0), today)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stats, err := h.reports.StudentStats(c.Request.Context(), student.ID, from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

func (h *handler) studentHistory(c *gin.Context) {
	student, ok := h.currentStudent(c)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must be within 1..%d", maxHistoryLimit)})
			return
		}
		limit = n
	}

	today := h.lessons.Policy().Today(h.now())
	from, to, err := dateRange(c, today.AddDate(-1, 0, 0), today)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	history, err := h.reports.StudentHistory(c.Request.Context(), student.ID, from, to, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *handler) studentSubjectStats(c *gin.Context) {
	student, ok := h.currentStudent(c)
	if !ok {
		return
	}

	today := h.lessons.Policy().Today(h.now())
	from, to, err := dateRange(c, today.AddDate(-1, 0, 0), today)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stats, err := h.reports.SubjectStats(c.Request.Context(), student.ID, from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subjects": stats})
}

func (h *handler) selfMark(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lesson_id is required"})
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	student, err := h.users.StudentOf(c.Request.Context(), user)
	if err != nil {
		h.fail(c, err)
		return
	}

	mark, err := h.lessons.Mark(c.Request.Context(), service.MarkRequest{
		LessonID:  req.LessonID,
		StudentID: student.ID,
		Actor:     model.SelfActor(user.ID),
		Now:       h.now(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, mark)
}

func (h *handler) teacherToday(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	teacher, err := h.users.TeacherOf(c.Request.Context(), user)
	if err != nil {
		h.fail(c, err)
		return
	}

	lessons, err := h.today.TeacherToday(c.Request.Context(), teacher.ID, h.now())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lessons": lessons})
}

func (h *handler) openLesson(c *gin.Context) {
	h.transition(c, h.lessons.OpenByID)
}

func (h *handler) closeLesson(c *gin.Context) {
	h.transition(c, h.lessons.CloseByID)
}

func (h *handler) transition(c *gin.Context, do func(ctx context.Context, id int64, actor model.Actor, now time.Time) (*model.Lesson, error)) {
	lessonID, ok := lessonParam(c)
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	lesson, err := do(c.Request.Context(), lessonID, h.users.ActorFor(user), h.now())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lesson)
}

func (h *handler) teacherMark(c *gin.Context) {
	h.explicitMark(c, h.lessons.Mark)
}

func (h *handler) correct(c *gin.Context) {
	h.explicitMark(c, h.lessons.Correct)
}

func (h *handler) explicitMark(c *gin.Context, do func(ctx context.Context, req service.MarkRequest) (*model.Attendance, error)) {
	lessonID, ok := lessonParam(c)
	if !ok {
		return
	}

	var req teacherMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "student_id and status are required"})
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	status := model.AttendanceStatus(req.Status)
	mark, err := do(c.Request.Context(), service.MarkRequest{
		LessonID:  lessonID,
		StudentID: req.StudentID,
		Actor:     h.users.ActorFor(user),
		Now:       h.now(),
		Outcome:   &status,
		Note:      req.Note,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mark)
}

func (h *handler) lessonAttendance(c *gin.Context) {
	lessonID, ok := lessonParam(c)
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.lessons.CanManage(c.Request.Context(), lessonID, h.users.ActorFor(user)); err != nil {
		h.fail(c, err)
		return
	}

	roster, err := h.reports.LessonRoster(c.Request.Context(), lessonID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, roster)
}

func (h *handler) groupReport(c *gin.Context) {
	groupID, err := strconv.ParseInt(c.Query("group_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group_id is required"})
		return
	}

	today := h.lessons.Policy().Today(h.now())
	from, to, err := dateRange(c, today.AddDate(0, -1, 0), today)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rep, err := h.reports.GroupReport(c.Request.Context(), groupID, from, to)
	if err != nil {
		h.fail(c, err)
		return
	}

	if c.Query("format") != "xlsx" {
		c.JSON(http.StatusOK, rep)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteGroupReportXLSX(&buf, rep); err != nil {
		h.fail(c, err)
		return
	}

	filename := fmt.Sprintf("attendance_group%d_%s_%s.xlsx", groupID, from.Format(dateLayout), to.Format(dateLayout))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxMIME, buf.Bytes())
}

// currentUser пользователь из токена; при ошибке ответ уже записан
func (h *handler) currentUser(c *gin.Context) (*model.User, bool) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return nil, false
	}
	id, err := claims.UserID()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return nil, false
	}

	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if user == nil || !user.IsActive {
		h.logger.Warn("Token for unknown or inactive user", zap.Int64("user_id", id))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnknownUser.Error()})
		return nil, false
	}
	return user, true
}

func (h *handler) currentStudent(c *gin.Context) (*model.Student, bool) {
	user, ok := h.currentUser(c)
	if !ok {
		return nil, false
	}
	student, err := h.users.StudentOf(c.Request.Context(), user)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return student, true
}

// fail переводит ошибку сервиса в статус и понятное сообщение
func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": service.ErrorMessage(err)}

	var stateErr *service.StateError
	if errors.As(err, &stateErr) {
		body["state"] = stateErr.State
		switch {
		case stateErr.TooEarly():
			body["reason"] = "too_early"
		case stateErr.TooLate():
			body["reason"] = "too_late"
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrAlreadyOpen),
		errors.Is(err, service.ErrAlreadyClosed),
		errors.Is(err, service.ErrNotOpen),
		errors.Is(err, service.ErrAlreadyMarked),
		errors.Is(err, service.ErrNotClosed),
		errors.Is(err, service.ErrInactive),
		errors.Is(err, service.ErrAlreadyEnrolled),
		errors.Is(err, service.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrGroupMismatch),
		errors.Is(err, service.ErrNotYourLesson),
		errors.Is(err, service.ErrInvalidActor):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidOutcome),
		errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func lessonParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid lesson id"})
		return 0, false
	}
	return id, true
}

// dateRange разбирает ?from=&to= в формате YYYY-MM-DD
func dateRange(c *gin.Context, defFrom, defTo time.Time) (time.Time, time.Time, error) {
	parse := func(key string, def time.Time) (time.Time, error) {
		raw := c.Query(key)
		if raw == "" {
			return def, nil
		}
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", key)
		}
		return t, nil
	}

	from, err := parse("from", defFrom)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parse("to", defTo)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to must not be before from")
	}
	return from, to, nil
}
