package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	domain "github.com/open-builders/premium-backend/internal/domain/user"
)

type Registrar interface {
	Register(ctx context.Context, id int64, username, name string) (*domain.User, error)
}

// AutoRegister creates or refreshes the Mini App caller on every request.
func AutoRegister(users Registrar) gin.HandlerFunc {
	return func(c *gin.Context) {
		tgUser, ok := TelegramUser(c)
		if !ok {
			c.Next()
			return
		}
		name := strings.TrimSpace(tgUser.FirstName + " " + tgUser.LastName)
		if _, err := users.Register(c.Request.Context(), tgUser.ID, tgUser.Username, name); err != nil {
			HandleError(c, err)
			return
		}
		c.Next()
	}
}
