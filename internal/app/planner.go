package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/Freeeeeet/attendance_bot/internal/service"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Planner ночная задача: заранее создаёт PENDING занятия на сегодня,
// чтобы экраны "сегодня" не создавали их наперегонки
type Planner struct {
	cron      *cron.Cron
	lessons   *service.LessonService
	templates service.TemplateStore
	logger    *zap.Logger
}

// NewPlanner регистрирует задачу по cron-выражению в таймзоне политики
func NewPlanner(schedule string, lessons *service.LessonService, templates service.TemplateStore, logger *zap.Logger) (*Planner, error) {
	p := &Planner{
		cron: cron.New(
			cron.WithLocation(lessons.Policy().Location),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		lessons:   lessons,
		templates: templates,
		logger:    logger,
	}

	_, err := p.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if _, err := p.Plan(ctx, time.Now()); err != nil {
			p.logger.Error("Failed to plan lessons", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("add plan job %q: %w", schedule, err)
	}

	return p, nil
}

// Start запускает планировщик
func (p *Planner) Start() {
	p.logger.Info("Starting lesson planner")
	p.cron.Start()
}

// Stop останавливает планировщик и ждёт выполняющуюся задачу
func (p *Planner) Stop() {
	p.logger.Info("Stopping lesson planner")
	<-p.cron.Stop().Done()
}

// Plan создаёт занятия всех активных шаблонов сегодняшнего дня недели.
// Возвращает количество шаблонов, для которых занятие есть.
func (p *Planner) Plan(ctx context.Context, now time.Time) (int, error) {
	today := p.lessons.Policy().Today(now)

	templates, err := p.templates.ListActiveByWeekday(ctx, model.Weekday(today))
	if err != nil {
		return 0, fmt.Errorf("list active templates: %w", err)
	}

	planned := 0
	for _, tpl := range templates {
		if _, err := p.lessons.EnsureOccurrence(ctx, tpl, today); err != nil {
			p.logger.Error("Failed to plan lesson",
				zap.Int64("template_id", tpl.ID),
				zap.Error(err),
			)
			continue
		}
		planned++
	}

	p.logger.Info("Lessons planned",
		zap.Time("date", today),
		zap.Int("templates", len(templates)),
		zap.Int("planned", planned),
	)

	return planned, nil
}
