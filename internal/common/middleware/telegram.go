package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/open-builders/premium-backend/internal/common/errors"
)

const (
	InitDataHeader  = "X-Telegram-Init-Data"
	TelegramUserKey = "telegram_user"
)

// TelegramInitData validates Mini App init-data signed with the bot token and
// stores the caller in the context. expIn of zero disables the age check.
func TelegramInitData(token string, expIn time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			HandleError(c, errors.New(errors.ErrCodeInternal, "init-data validation is not configured"))
			return
		}

		raw := c.GetHeader(InitDataHeader)
		if raw == "" {
			raw = c.Query("init_data")
		}
		if raw == "" {
			HandleError(c, errors.NewUnauthorizedError("missing init data"))
			return
		}

		if err := initdata.Validate(raw, token, expIn); err != nil {
			HandleError(c, errors.NewUnauthorizedError("invalid init data"))
			return
		}
		parsed, err := initdata.Parse(raw)
		if err != nil || parsed.User.ID == 0 {
			HandleError(c, errors.NewInvalidInputError("init_data", "no user in init data"))
			return
		}

		c.Set(TelegramUserKey, parsed.User)
		c.Set(UserIDKey, parsed.User.ID)
		c.Next()
	}
}

// TelegramUser returns the caller set by TelegramInitData.
func TelegramUser(c *gin.Context) (initdata.User, bool) {
	v, ok := c.Get(TelegramUserKey)
	if !ok {
		return initdata.User{}, false
	}
	u, ok := v.(initdata.User)
	return u, ok
}
