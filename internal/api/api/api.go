package api

import (
	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"eventhub/cmd/middleware"
	"eventhub/internal/auth"
	"eventhub/internal/service"
)

type Routers struct {
	Service service.Service
	Tokens  *auth.Manager
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())
	apiGroup := app.Group("/v1")

	apiGroup.GET("/events", r.Service.GetCatalog)
	apiGroup.GET("/events/:id", r.Service.GetEvent)
	apiGroup.POST("/events/:id/register", r.Service.Register)
	apiGroup.POST("/contact", r.Service.Contact)

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/signup", r.Service.SignUp)
	authGroup.POST("/login", r.Service.Login)
	authGroup.POST("/logout", middleware.RequireAuth(r.Tokens), r.Service.Logout)

	adminGroup := apiGroup.Group("/admin", middleware.RequireAuth(r.Tokens))
	adminGroup.POST("/events", r.Service.CreateEvent)
	adminGroup.PUT("/events/:id", r.Service.UpdateEvent)
	adminGroup.DELETE("/events/:id", r.Service.DeleteEvent)
	adminGroup.GET("/registrations", r.Service.GetRegistrations)
	adminGroup.PATCH("/registrations/:id/status", r.Service.UpdateRegistrationStatus)
	adminGroup.DELETE("/registrations/:id", r.Service.DeleteRegistration)
	adminGroup.DELETE("/registrations", r.Service.DeleteAllRegistrations)
	adminGroup.GET("/registrations/export", r.Service.ExportRegistrations)
	adminGroup.GET("/stats", r.Service.GetStats)

	return app
}
