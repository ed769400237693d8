package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourname/babysleep/internal/auth"
)

func NewRouter(app App, provider auth.Provider, env string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), RequestLogger(app.Logger()))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Protected routes
	authed := r.Group("/", auth.AuthMiddleware(provider, env))
	authed.POST("/babies/:babyID/sleep", PostSleep(app))
	authed.POST("/babies/:babyID/sleep/replace", ReplaceSleep(app))
	authed.GET("/babies/:babyID/sleep", GetSleep(app))
	authed.GET("/babies/:babyID/state", GetState(app))
	authed.GET("/babies/:babyID/timeline", GetTimeline(app))
	authed.GET("/babies/:babyID/bedtime-prompt", GetBedtimePrompt(app))
	authed.PATCH("/sleep/:id", PatchSleep(app))
	authed.POST("/sleep/:id/end", EndSleep(app))
	authed.DELETE("/sleep/:id", DeleteSleep(app))
	return r
}
