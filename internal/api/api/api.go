package api

import (
	"github.com/gin-contrib/cors"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"github.com/Imking640/Felicity-Event-Booking-sub000/cmd/middleware"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/auth"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/service"
)

type Routers struct {
	Service service.Service
	Auth    *auth.Authenticator
	Log     *zerolog.Logger
	Mode    string
}

func NewRouters(r *Routers) *ginext.Engine {
	mode := r.Mode
	if mode == "" {
		mode = "release"
	}
	app := ginext.New(mode)

	app.Use(middleware.RequestID())
	app.Use(middleware.LoggingMiddleware(r.Log))
	app.Use(cors.Default())

	app.GET("/healthz", func(c *ginext.Context) {
		c.JSON(200, map[string]string{"status": "ok"})
	})

	h := &handler{svc: r.Service, log: r.Log}
	apiGroup := app.Group("/v1")
	apiGroup.Use(r.Auth.Middleware())

	apiGroup.POST("/events", h.createEvent)
	apiGroup.GET("/events", h.listEvents)
	apiGroup.GET("/events/:id", h.getEvent)
	apiGroup.PATCH("/events/:id", h.updateEvent)
	apiGroup.POST("/events/:id/publish", h.transition(r.Service.PublishEvent))
	apiGroup.POST("/events/:id/close", h.transition(r.Service.CloseRegistration))
	apiGroup.POST("/events/:id/complete", h.transition(r.Service.CompleteEvent))
	apiGroup.POST("/events/:id/cancel", h.transition(r.Service.CancelEvent))
	apiGroup.POST("/events/:id/register", h.register)
	apiGroup.GET("/events/:id/registrations", h.listRegistrations)
	apiGroup.GET("/events/:id/attendance/export", h.exportAttendance)
	apiGroup.POST("/events/:id/attendance/:registrationId", h.overrideAttendance)

	apiGroup.GET("/registrations/:id", h.getRegistration)
	apiGroup.GET("/registrations/:id/ticket", h.getTicket)
	apiGroup.GET("/registrations/:id/attendance-audit", h.attendanceAudit)
	apiGroup.POST("/registrations/:id/payment", h.uploadProof)
	apiGroup.POST("/registrations/:id/verify-payment", h.verifyPayment)
	apiGroup.POST("/registrations/:id/cancel", h.cancelRegistration)

	apiGroup.POST("/tickets/scan", h.scan)

	return app
}
