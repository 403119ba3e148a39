package http

import (
	"net/http"
	"strings"

	"github.com/dkeye/VideoCall/internal/adapters/signal"
	"github.com/dkeye/VideoCall/internal/app/orch"
	"github.com/dkeye/VideoCall/internal/config"
	"github.com/dkeye/VideoCall/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const userKey = "user_id"

// UserMiddleware resolves the caller: a valid bearer token wins, otherwise
// the session cookie carries a generated id.
func UserMiddleware(tokenSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok && tokenSecret != "" {
			claims, err := signal.ParseToken(tokenSecret, raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			uid, err := domain.ParseUserID(claims.UserID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			c.Set(userKey, uid)
			c.Next()
			return
		}

		session := sessions.Default(c)
		raw, _ := session.Get(userKey).(string)
		uid, err := domain.ParseUserID(raw)
		if err != nil {
			uid = domain.UserID(uuid.NewString())
			session.Set(userKey, string(uid))
			if err := session.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(userKey, uid)
		c.Next()
	}
}

func userOf(c *gin.Context) domain.UserID {
	uid, _ := c.Get(userKey)
	id, _ := uid.(domain.UserID)
	return id
}

// sessionOptions keeps the identity cookie usable over plain HTTP outside
// release mode.
func sessionOptions(cfg *config.Config) sessions.Options {
	return sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   cfg.Mode == "release",
	}
}

func SetupRouter(cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessionOptions(cfg))
	r.Use(sessions.Sessions("VideoCallSessions", store))
	r.Use(UserMiddleware(cfg.Signaling.TokenSecret))

	ctl := &controller{
		orch:    o,
		limiter: NewJoinRateLimiter(cfg.JoinRate.Limit, cfg.JoinRate.Interval),
	}

	api := r.Group("/api")
	api.POST("/calls", ctl.createCall)
	api.GET("/calls", ctl.listCalls)
	api.GET("/calls/:id", ctl.getCall)
	api.POST("/calls/:id/join", ctl.joinCall)
	api.POST("/calls/:id/leave", ctl.leaveCall)
	api.DELETE("/calls/:id", ctl.endCall)
	api.GET("/ws/events", ctl.streamEvents)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
