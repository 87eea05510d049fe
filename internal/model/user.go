package model

import "time"

type UserRole string

const (
	UserRoleStudent UserRole = "student"
	UserRoleTeacher UserRole = "teacher"
	UserRoleAdmin   UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleStudent, UserRoleTeacher, UserRoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	FullName   string    `json:"full_name"`
	Username   string    `json:"username"`
	Role       UserRole  `json:"role"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

func (u *User) IsTeacher() bool {
	return u.Role == UserRoleTeacher || u.Role == UserRoleAdmin
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// Student запись студента: пользователь, привязанный к группе
type Student struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	StudentCode string `json:"student_code"` // номер студенческого
	GroupID     int64  `json:"group_id"`
	FullName    string `json:"full_name"`
}

// Teacher запись преподавателя
type Teacher struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	FullName string `json:"full_name"`
}
