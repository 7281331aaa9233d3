package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-allotment/internal/middleware"
)

// Handlers groups the API handlers mounted under the versioned prefix.
type Handlers struct {
	Resources  *ResourceHandler
	Allotments *AllotmentHandler
	Planner    *PlannerHandler
	Schedules  *ScheduleHandler
}

// RegisterRoutes mounts the allotment API on api. Every route requires a valid token; registry
// writes are admin only and booking mutations need a scheduling role.
func RegisterRoutes(api *gin.RouterGroup, auth middleware.TokenValidator, h Handlers) {
	api.Use(middleware.JWT(auth))
	admin := middleware.RequireRoles(middleware.AdminRoles...)
	scheduler := middleware.RequireRoles(middleware.SchedulerRole...)

	resources := api.Group("/resources")
	resources.POST("", admin, h.Resources.Register)
	resources.GET("", h.Resources.List)
	resources.GET("/:id", h.Resources.Get)
	resources.PATCH("/:id", admin, h.Resources.Rename)
	resources.GET("/:id/schedule", h.Schedules.Schedule)
	resources.GET("/:id/schedule/day", h.Schedules.Day)
	resources.GET("/:id/schedule/week", h.Schedules.Week)
	resources.GET("/:id/schedule/export", h.Schedules.Export)
	resources.GET("/:id/utilization", h.Schedules.Utilization)

	allotments := api.Group("/allotments", scheduler)
	allotments.POST("", h.Allotments.Create)
	allotments.GET("/:id", h.Allotments.Get)
	allotments.DELETE("/:id", h.Allotments.Cancel)
	allotments.PUT("/:id/reschedule", h.Allotments.Reschedule)

	planner := api.Group("/planner", scheduler)
	planner.POST("/teacher-allocations", h.Planner.AllocateTeacher)
	planner.POST("/ptms", h.Planner.SchedulePTM)
	planner.POST("/activities", h.Planner.PlanActivity)
}
