package model

import "time"

// Direction направление подготовки, объединяет группы
type Direction struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Group учебная группа
type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DirectionID *int64    `json:"direction_id,omitempty"`
	Course      int       `json:"course"` // 1-6
	CreatedAt   time.Time `json:"created_at"`
}

// Subject предмет
type Subject struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CatalogCounts сводка для панели администратора
type CatalogCounts struct {
	Students        int `json:"total_students"`
	Teachers        int `json:"total_teachers"`
	Groups          int `json:"total_groups"`
	Subjects        int `json:"total_subjects"`
	ActiveTemplates int `json:"active_templates"`
	Lessons         int `json:"total_lessons"`
	OpenLessons     int `json:"open_lessons"`
	Attendance      int `json:"total_attendance"`
}
