package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yoockh/careerpath/internal/api/handlers"
	"github.com/yoockh/careerpath/internal/api/middleware"
)

type Deps struct {
	Auth      *handlers.AuthHandler
	Roadmap   *handlers.RoadmapHandler
	JWTSecret string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", d.Auth.Register)
	authGroup.POST("/login", d.Auth.Login)

	// Protected routes (JWT)
	ai := api.Group("/ai")
	ai.Use(middleware.JWTAuth(d.JWTSecret))

	ai.POST("/generate", d.Roadmap.Generate)
	ai.GET("/roadmap", d.Roadmap.Get)
	ai.PATCH("/roadmap/:week/toggle", d.Roadmap.ToggleWeek)
}
