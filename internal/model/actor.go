package model

import "fmt"

type ActorKind string

const (
	ActorSelf    ActorKind = "self"    // Студент отмечается сам
	ActorTeacher ActorKind = "teacher" // Преподаватель или администратор
	ActorSystem  ActorKind = "system"  // Фоновый sweeper
)

func (k ActorKind) Valid() bool {
	switch k {
	case ActorSelf, ActorTeacher, ActorSystem:
		return true
	}
	return false
}

// Actor инициатор действия над занятием
type Actor struct {
	Kind    ActorKind `json:"kind"`
	UserID  *int64    `json:"user_id,omitempty"`
	IsAdmin bool      `json:"-"`
}

// SystemActor действие без участия человека
func SystemActor() Actor {
	return Actor{Kind: ActorSystem}
}

// TeacherActor действие преподавателя
func TeacherActor(userID int64) Actor {
	return Actor{Kind: ActorTeacher, UserID: &userID}
}

// AdminActor администратор действует с правами преподавателя на любое занятие
func AdminActor(userID int64) Actor {
	return Actor{Kind: ActorTeacher, UserID: &userID, IsAdmin: true}
}

// SelfActor студент отмечает сам себя
func SelfActor(userID int64) Actor {
	return Actor{Kind: ActorSelf, UserID: &userID}
}

func (a Actor) String() string {
	if a.UserID == nil {
		return string(a.Kind)
	}
	return fmt.Sprintf("%s:%d", a.Kind, *a.UserID)
}
