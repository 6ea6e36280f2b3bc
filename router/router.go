package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-reservations/config"
	"github.com/yeremiapane/table-reservations/controllers"
	"github.com/yeremiapane/table-reservations/database"
	"github.com/yeremiapane/table-reservations/hub"
	"github.com/yeremiapane/table-reservations/middlewares"
	"github.com/yeremiapane/table-reservations/repository"
	"github.com/yeremiapane/table-reservations/services"
	"github.com/yeremiapane/table-reservations/utils"
	"gorm.io/gorm"
)

// Options carries the collaborators that differ between production and
// tests. Zero values fall back to in-process defaults.
type Options struct {
	Limits      services.LimitProvider
	Locker      database.Locker
	LockTimeout time.Duration
	Events      services.EventPublisher
	Hub         *hub.Hub
	RateLimiter *middlewares.RateLimiter
	CORSOrigin  string
}

func SetupRouter(db *gorm.DB, opts Options) *gin.Engine {
	r := gin.New()

	r.Use(middlewares.RecoveryMiddleware())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(opts.CORSOrigin))
	r.Use(middlewares.TimestampHeader())
	if opts.RateLimiter != nil {
		r.Use(opts.RateLimiter.RateLimit())
	}

	limits := opts.Limits
	if limits == nil {
		limits = config.StaticLimit(config.DefaultReservationLimit)
	}
	var events services.MultiPublisher
	if opts.Hub != nil {
		events = append(events, opts.Hub)
	}
	if opts.Events != nil {
		events = append(events, opts.Events)
	}

	store := repository.NewGormStore(db)
	store.LockTimeout = opts.LockTimeout
	svc := services.NewReservationService(store, limits, opts.Locker, events)
	reservationCtrl := controllers.NewReservationController(svc)
	tableCtrl := controllers.NewTableController(db)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// ----------------------------------------------------------------
	//                      RESERVATIONS
	// ----------------------------------------------------------------
	reservations := r.Group("/reservations")
	reservations.Use(middlewares.AuthMiddleware())

	read := reservations.Group("")
	read.Use(middlewares.RequireRoles(utils.RoleUser, utils.RoleAdmin), middlewares.ETag())
	{
		read.GET("", reservationCtrl.GetAllReservations)
		read.GET("/:id", reservationCtrl.GetReservation)
	}

	write := reservations.Group("")
	write.Use(middlewares.RequireRoles(utils.RoleAdmin), middlewares.WriteThrottle(5, 20))
	{
		write.POST("", reservationCtrl.CreateReservation)
		write.PUT("/:id", reservationCtrl.UpdateReservation)
		write.DELETE("/:id", reservationCtrl.DeleteReservation)
	}

	// ----------------------------------------------------------------
	//                      FLOOR PLAN (read only)
	// ----------------------------------------------------------------
	r.GET("/tables",
		middlewares.AuthMiddleware(),
		middlewares.RequireRoles(utils.RoleUser, utils.RoleAdmin),
		middlewares.ETag(),
		tableCtrl.GetAllTables,
	)

	// Live feed for front desk screens.
	if opts.Hub != nil {
		liveCtrl := controllers.NewLiveController(opts.Hub)
		r.GET("/ws/reservations",
			middlewares.WebSocketAuthMiddleware(),
			middlewares.RequireRoles(utils.RoleUser, utils.RoleAdmin),
			liveCtrl.ReservationFeed,
		)
	}

	return r
}
