// Package httpapi HTTP API поверх сервисов посещаемости.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/auth"
	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/Freeeeeet/attendance_bot/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger проверка зависимости для /healthz
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps всё, что нужно роутеру
type Deps struct {
	Users   *service.UserService
	Lessons *service.LessonService
	Today   *service.TodayService
	Reports *service.ReportService
	Catalog *service.CatalogService
	Issuer  *auth.Issuer

	// Вход из мини-приложения; без токена бота маршрут не регистрируется
	BotToken    string
	InitDataTTL time.Duration

	// Необязательные
	DB          Pinger
	Metrics     http.Handler
	Middlewares []gin.HandlerFunc
	Now         func() time.Time

	Logger *zap.Logger
}

type handler struct {
	users   *service.UserService
	lessons *service.LessonService
	today   *service.TodayService
	reports *service.ReportService
	catalog *service.CatalogService
	issuer  *auth.Issuer
	db      Pinger

	botToken    string
	initDataTTL time.Duration

	now    func() time.Time
	logger *zap.Logger
}

// NewRouter собирает gin.Engine со всеми маршрутами
func NewRouter(d Deps) *gin.Engine {
	h := &handler{
		users:   d.Users,
		lessons: d.Lessons,
		today:   d.Today,
		reports: d.Reports,
		catalog: d.Catalog,
		issuer:  d.Issuer,
		db:      d.DB,

		botToken:    d.BotToken,
		initDataTTL: d.InitDataTTL,

		now:    d.Now,
		logger: d.Logger,
	}
	if h.now == nil {
		h.now = time.Now
	}

	r := gin.New()
	r.MaxMultipartMemory = maxImportSize
	r.Use(gin.Recovery())
	r.Use(requestLogger(d.Logger, "/healthz", "/metrics"))
	r.Use(d.Middlewares...)

	r.GET("/healthz", h.health)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	if d.BotToken != "" {
		r.POST("/api/v1/auth/telegram", h.telegramLogin)
	}

	api := r.Group("/api/v1", auth.Bearer(d.Issuer))

	api.GET("/me", h.me)

	student := api.Group("", auth.RequireRole(model.UserRoleStudent))
	student.GET("/student/today", h.studentToday)
	student.GET("/student/stats", h.studentStats)
	student.GET("/student/stats/subjects", h.studentSubjectStats)
	student.GET("/student/history", h.studentHistory)
	student.POST("/attendance/mark", h.selfMark)

	teacher := api.Group("/teacher", auth.RequireRole(model.UserRoleTeacher, model.UserRoleAdmin))
	teacher.GET("/today", h.teacherToday)
	teacher.POST("/lessons/:id/open", h.openLesson)
	teacher.POST("/lessons/:id/close", h.closeLesson)
	teacher.POST("/lessons/:id/mark", h.teacherMark)
	teacher.GET("/lessons/:id/attendance", h.lessonAttendance)

	admin := api.Group("/admin", auth.RequireRole(model.UserRoleAdmin))
	admin.POST("/lessons/:id/correct", h.correct)
	admin.GET("/report/attendance", h.groupReport)
	admin.GET("/users", h.listUsers)

	if d.Catalog != nil {
		admin.GET("/stats", h.adminStats)
		admin.GET("/directions", h.listDirections)
		admin.POST("/directions", h.createDirection)
		admin.GET("/groups", h.listGroups)
		admin.POST("/groups", h.createGroup)
		admin.POST("/subjects", h.createSubject)
		admin.GET("/templates", h.listTemplates)
		admin.POST("/templates", h.createTemplate)
		admin.PATCH("/templates/:id", h.setTemplateActive)
		admin.DELETE("/templates/:id", h.deleteTemplate)
		admin.POST("/import/templates", h.importTemplates)
		admin.POST("/students", h.enrollStudent)
		admin.POST("/teachers", h.appointTeacher)
	}

	return r
}

func (h *handler) health(c *gin.Context) {
	status := http.StatusOK
	dbHealthy := true
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			dbHealthy = false
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "db": dbHealthy})
}

// requestLogger журнал запросов через zap
func requestLogger(logger *zap.Logger, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		if _, ok := skipped[c.Request.URL.Path]; ok {
			return
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("HTTP request", fields...)
			return
		}
		logger.Info("HTTP request", fields...)
	}
}
