package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/Freeeeeet/attendance_bot/internal/report"
	"github.com/Freeeeeet/attendance_bot/internal/service"
	"github.com/gin-gonic/gin"
)

// maxImportSize предел размера файла расписания
const maxImportSize = 5 << 20

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

type directionRequest struct {
	Name      string `json:"name" binding:"required"`
	ShortName string `json:"short_name"`
}

type groupRequest struct {
	Name        string `json:"name" binding:"required"`
	DirectionID *int64 `json:"direction_id"`
	Course      int    `json:"course"`
}

type templateRequest struct {
	GroupID   int64  `json:"group_id" binding:"required"`
	SubjectID int64  `json:"subject_id" binding:"required"`
	TeacherID *int64 `json:"teacher_id"`
	DayOfWeek *int   `json:"day_of_week" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
	Room      string `json:"room"`
}

type activeRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

type enrollRequest struct {
	UserID      int64  `json:"user_id" binding:"required"`
	GroupID     int64  `json:"group_id" binding:"required"`
	StudentCode string `json:"student_code"`
}

type appointRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

func (h *handler) adminStats(c *gin.Context) {
	counts, err := h.catalog.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *handler) createDirection(c *gin.Context) {
	var req directionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	direction, err := h.catalog.CreateDirection(c.Request.Context(), req.Name, req.ShortName)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, direction)
}

func (h *handler) listDirections(c *gin.Context) {
	directions, err := h.catalog.ListDirections(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"directions": directions})
}

func (h *handler) createGroup(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	group, err := h.catalog.CreateGroup(c.Request.Context(), service.GroupInput{
		Name:        req.Name,
		DirectionID: req.DirectionID,
		Course:      req.Course,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *handler) listGroups(c *gin.Context) {
	directionID, ok := optionalID(c, "direction_id")
	if !ok {
		return
	}

	groups, err := h.catalog.ListGroups(c.Request.Context(), directionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (h *handler) createSubject(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	subject, err := h.catalog.CreateSubject(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, subject)
}

func (h *handler) createTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group_id, subject_id, day_of_week, start_time and end_time are required"})
		return
	}

	start, err := model.ParseTimeOfDay(req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_time must be HH:MM"})
		return
	}
	end, err := model.ParseTimeOfDay(req.EndTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be HH:MM"})
		return
	}

	tpl := &model.ScheduleTemplate{
		GroupID:   req.GroupID,
		SubjectID: req.SubjectID,
		TeacherID: req.TeacherID,
		DayOfWeek: *req.DayOfWeek,
		StartTime: start,
		EndTime:   end,
		Room:      req.Room,
	}
	if err := h.catalog.CreateTemplate(c.Request.Context(), tpl); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

func (h *handler) listTemplates(c *gin.Context) {
	groupID, ok := optionalID(c, "group_id")
	if !ok {
		return
	}

	templates, err := h.catalog.ListTemplates(c.Request.Context(), groupID)
	if err != nil {
		h.fail(c, err)
		return
	}

	if c.Query("format") != "xlsx" {
		c.JSON(http.StatusOK, gin.H{"templates": templates})
		return
	}

	var buf bytes.Buffer
	if err := report.WriteTemplatesXLSX(&buf, templates); err != nil {
		h.fail(c, err)
		return
	}
	filename := "schedule.xlsx"
	if groupID != 0 {
		filename = fmt.Sprintf("schedule_group%d.xlsx", groupID)
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxMIME, buf.Bytes())
}

func (h *handler) setTemplateActive(c *gin.Context) {
	id, ok := templateParam(c)
	if !ok {
		return
	}

	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_active is required"})
		return
	}

	if err := h.catalog.SetTemplateActive(c.Request.Context(), id, *req.IsActive); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_active": *req.IsActive})
}

// deleteTemplate снимает пару с расписания; прошлые занятия остаются
func (h *handler) deleteTemplate(c *gin.Context) {
	id, ok := templateParam(c)
	if !ok {
		return
	}

	if err := h.catalog.SetTemplateActive(c.Request.Context(), id, false); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_active": false})
}

// importTemplates принимает xlsx в поле file и создаёт шаблоны построчно
func (h *handler) importTemplates(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "upload an .xlsx file"})
		return
	}
	if header.Size > maxImportSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large"})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer file.Close()

	rows, parseErrs, err := report.ParseTemplatesXLSX(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.catalog.ImportTemplates(c.Request.Context(), rows)
	result.Errors = append(append([]service.ImportError{}, parseErrs...), result.Errors...)
	sortImportErrors(result.Errors)

	c.JSON(http.StatusOK, result)
}

func (h *handler) enrollStudent(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and group_id are required"})
		return
	}

	student, err := h.catalog.EnrollStudent(c.Request.Context(), req.UserID, req.GroupID, req.StudentCode)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, student)
}

func (h *handler) appointTeacher(c *gin.Context) {
	var req appointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	teacher, err := h.catalog.AppointTeacher(c.Request.Context(), req.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, teacher)
}

func (h *handler) listUsers(c *gin.Context) {
	role := model.UserRole(c.DefaultQuery("role", string(model.UserRoleStudent)))

	users, err := h.users.ListByRole(c.Request.Context(), role)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func templateParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return 0, false
	}
	return id, true
}

// optionalID необязательный числовой фильтр; 0 если не задан
func optionalID(c *gin.Context, key string) (int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return id, true
}

func sortImportErrors(errs []service.ImportError) {
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Row < errs[j].Row })
}
