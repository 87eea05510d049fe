package handlers

import (
	"github.com/Freeeeeet/attendance_bot/internal/controller/common"
)

// Handlers обработчики текстовых команд
type Handlers struct {
	svc *common.Services
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(svc *common.Services) *Handlers {
	return &Handlers{svc: svc}
}
