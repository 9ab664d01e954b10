package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/containershare/lifecycle"
	"github.com/containershare/lifecycle/api/middleware"
	"github.com/containershare/lifecycle/config"
)

const ExpirationRoute = "/api/cron/expire-announcements"

type Api struct {
	engine     *lifecycle.Engine
	auth       *middleware.TriggerAuthenticator
	router     *gin.Engine
	runTimeout time.Duration
}

// Router registers the activation routes behind the trigger authenticator.
func (a Api) Router() *gin.Engine {
	router := a.router
	cron := router.Group("/api/cron", middleware.TriggerAuthMiddleware(a.auth))
	cron.GET("/expire-announcements", a.ExpireAnnouncements)
	cron.POST("/expire-announcements", a.TriggerExpiration)
	return router
}

// NewAPI builds the HTTP trigger for engine. A nil engine makes every
// activation fail with a configuration error.
func NewAPI(engine *lifecycle.Engine, conf *config.Configuration) *Api {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	runTimeout := conf.Expiration.RunTimeout()
	if runTimeout <= 0 {
		runTimeout = config.DEFAULT_RUN_TIMEOUT * time.Second
	}

	return &Api{
		engine:     engine,
		auth:       middleware.NewTriggerAuthenticator(conf.Trigger.Secret),
		router:     r,
		runTimeout: runTimeout,
	}
}
