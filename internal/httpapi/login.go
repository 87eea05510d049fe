package httpapi

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/auth"
	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type telegramLoginRequest struct {
	InitData string `json:"init_data" binding:"required"`
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        *model.User `json:"user"`
}

// telegramLogin обменивает подписанный initData мини-приложения на JWT.
// Новый пользователь регистрируется студентом, как и через /start.
func (h *handler) telegramLogin(c *gin.Context) {
	var req telegramLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	webUser, err := auth.VerifyInitData(req.InitData, h.botToken, h.initDataTTL, h.now())
	if err != nil {
		h.logger.Warn("Rejected Telegram login", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid telegram auth"})
		return
	}

	user, err := h.users.RegisterUser(c.Request.Context(), webUser.ID, webUser.Username, webUser.FullName())
	if err != nil {
		h.fail(c, err)
		return
	}
	if !user.IsActive {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user is deactivated"})
		return
	}

	token, exp, err := h.issuer.Issue(user)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   exp,
		User:        user,
	})
}
