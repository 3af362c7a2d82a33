package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/middleware"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/service"
)

// Routes bundles everything the router needs.
type Routes struct {
	APIPrefix string

	Auth       *AuthHandler
	Users      *UserHandler
	Students   *StudentHandler
	Groups     *GroupHandler
	Attendance *AttendanceHandler
	Activities *ActivityHandler
	Chat       *ChatHandler
	Calendar   *CalendarHandler
	Media      *MediaHandler
	Exports    *ExportHandler
	Health     *HealthHandler

	AuthService *service.AuthService
	Metrics     *service.MetricsService

	// ChatGateway upgrades GET /ws/rooms/:id to a websocket. Nil when chat
	// is disabled.
	ChatGateway gin.HandlerFunc
}

// Register mounts every route on the engine. Authorization is two layered:
// the role gate here is coarse, the services enforce per-record scope.
func Register(r *gin.Engine, routes Routes) {
	r.GET("/health", routes.Health.Health)
	r.GET("/ready", routes.Health.Ready)
	if routes.Metrics != nil {
		r.GET("/metrics", gin.WrapH(routes.Metrics.Handler()))
	}

	api := r.Group(routes.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", routes.Auth.Login)
		auth.POST("/refresh", routes.Auth.Refresh)
		auth.POST("/password/reset", routes.Auth.RequestPasswordReset)
		auth.POST("/password/reset/confirm", routes.Auth.ConfirmPasswordReset)
		auth.POST("/invitations/accept", routes.Auth.AcceptInvitation)
	}

	// Signed token downloads carry their own authorization.
	api.GET("/media/files", routes.Media.Download)

	authed := api.Group("", middleware.JWT(routes.AuthService))
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	admin := middleware.RequireRoles(models.RoleAdmin)

	authed.POST("/auth/logout", routes.Auth.Logout)
	authed.PUT("/auth/password", routes.Auth.ChangePassword)
	authed.POST("/auth/invitations", admin, routes.Auth.InviteParent)

	users := authed.Group("/users")
	{
		users.GET("", routes.Users.List)
		users.GET("/:id", routes.Users.Get)
		users.POST("", admin, routes.Users.Create)
		users.PUT("/:id", admin, routes.Users.Update)
		users.DELETE("/:id", admin, routes.Users.Deactivate)
	}

	students := authed.Group("/students")
	{
		students.GET("", routes.Students.List)
		students.GET("/:id", routes.Students.Get)
		students.POST("", admin, routes.Students.Create)
		students.PUT("/:id", staff, routes.Students.Update)
		students.DELETE("/:id", admin, routes.Students.Deactivate)
	}

	groups := authed.Group("/groups")
	{
		groups.GET("", routes.Groups.List)
		groups.GET("/:id", routes.Groups.Get)
		groups.POST("", admin, routes.Groups.Create)
		groups.PUT("/:id", staff, routes.Groups.Update)
		groups.DELETE("/:id", admin, routes.Groups.Deactivate)
		groups.POST("/:id/students/:studentId", staff, routes.Groups.AddStudent)
		groups.DELETE("/:id/students/:studentId", staff, routes.Groups.RemoveStudent)
	}

	attendance := authed.Group("/attendance")
	{
		attendance.GET("", routes.Attendance.List)
		attendance.GET("/:id", routes.Attendance.Get)
		attendance.POST("", staff, routes.Attendance.Create)
		attendance.POST("/bulk", staff, routes.Attendance.BulkCreate)
		attendance.PUT("/:id", staff, routes.Attendance.Update)
		attendance.DELETE("/:id", staff, routes.Attendance.Delete)
	}

	activities := authed.Group("/activities")
	{
		activities.GET("", routes.Activities.List)
		activities.GET("/:id", routes.Activities.Get)
		activities.POST("", staff, routes.Activities.Create)
		activities.PUT("/:id", staff, routes.Activities.Update)
		activities.PUT("/batch/:batchId", staff, routes.Activities.UpdateBatch)
		activities.DELETE("/:id", staff, routes.Activities.Delete)
		activities.DELETE("/batch/:batchId", staff, routes.Activities.DeleteBatch)
	}

	chat := authed.Group("/chat")
	{
		chat.GET("/rooms", routes.Chat.ListRooms)
		chat.POST("/rooms", routes.Chat.CreateRoom)
		chat.POST("/rooms/direct", routes.Chat.OpenDirect)
		chat.GET("/rooms/:id", routes.Chat.GetRoom)
		chat.GET("/rooms/:id/messages", routes.Chat.ListMessages)
		chat.POST("/rooms/:id/messages", routes.Chat.SendMessage)
		chat.POST("/rooms/:id/read", routes.Chat.MarkRead)
		chat.GET("/rooms/:id/presence", routes.Chat.Presence)
		chat.POST("/rooms/:id/participants/:userId", routes.Chat.AddParticipant)
		chat.DELETE("/rooms/:id/participants/:userId", routes.Chat.RemoveParticipant)
		chat.DELETE("/messages/:messageId", routes.Chat.DeleteMessage)
	}

	calendar := authed.Group("/calendar/events")
	{
		calendar.GET("", routes.Calendar.List)
		calendar.GET("/:id", routes.Calendar.Get)
		calendar.POST("", staff, routes.Calendar.Create)
		calendar.PUT("/:id", staff, routes.Calendar.Update)
		calendar.DELETE("/:id", staff, routes.Calendar.Delete)
		calendar.POST("/:id/rsvp", routes.Calendar.RSVP)
		calendar.POST("/:id/sync", staff, routes.Calendar.SyncNow)
	}

	media := authed.Group("/media")
	{
		media.GET("", routes.Media.List)
		media.GET("/:id", routes.Media.Get)
		media.GET("/:id/url", routes.Media.SignedURL)
		media.POST("", staff, routes.Media.Upload)
		media.DELETE("/:id", routes.Media.Delete)
	}

	exports := authed.Group("/exports")
	{
		exports.GET("/attendance", routes.Exports.AttendanceReport)
	}

	// The websocket handshake authenticates via query token; the JWT
	// middleware would reject it for lack of an Authorization header.
	if routes.ChatGateway != nil {
		api.GET("/ws/rooms/:id", routes.ChatGateway)
	}
}
