package router

import (
	"Guild_Roster/internal/handler"
	"Guild_Roster/internal/middleware"
	"Guild_Roster/internal/pkg"
	"Guild_Roster/internal/service"
	"Guild_Roster/internal/ws"

	"github.com/gin-gonic/gin"
)

type Deps struct {
	Hub      *ws.Hub
	Mirror   *service.MirrorService
	Bcast    *service.BroadcastService
	EmailCfg pkg.SMTPConfig
}

func InitRouter(deps Deps) *gin.Engine {
	r := gin.Default()

	memberSvc := service.NewMemberService(deps.Mirror, deps.Bcast, service.NewNotifyService(deps.EmailCfg))
	rosterSvc := service.NewRosterService(deps.Bcast)
	rankSvc := service.NewRankService(deps.Bcast)

	user := handler.NewUserHandler(deps.EmailCfg)
	email := handler.NewEmailHandler(deps.EmailCfg)
	roster := handler.NewRosterHandler(rosterSvc)
	member := handler.NewMemberHandler(memberSvc)
	rank := handler.NewRankHandler(rankSvc)
	wsHandler := handler.NewWSHandler(deps.Hub, memberSvc)

	// 邮件验证码
	emailGroup := r.Group("/api/email")
	{
		emailGroup.POST("/code", email.SendCode)
		emailGroup.POST("/verify", email.VerifyCode)
	}

	// 用户相关接口
	userGroup := r.Group("/api/user")
	{
		userGroup.POST("/register", user.Register)
		userGroup.POST("/login", user.Login)
		userGroup.POST("/reset", user.ResetPassword)
	}

	tokenGroup := r.Group("/api/token")
	{
		tokenGroup.POST("/refresh", user.TokenRefresh)
	}

	authGroup := r.Group("/api/auth")
	authGroup.Use(middleware.AuthMiddleware())
	{
		authGroup.POST("/logout", user.Logout)
		authGroup.POST("/change-password", user.ChangePassword)
	}

	// 战队与成员接口
	rosterGroup := r.Group("/api/roster")
	rosterGroup.Use(middleware.AuthMiddleware())
	{
		rosterGroup.POST("/create", roster.Create)
		rosterGroup.GET("/list", roster.List)
		rosterGroup.GET("/:id", roster.Get)
		rosterGroup.PATCH("/:id", roster.UpdateSettings)
		rosterGroup.DELETE("/:id", roster.Delete)

		rosterGroup.POST("/:id/apply", member.Apply)
		rosterGroup.POST("/:id/leave", member.Leave)
		rosterGroup.GET("/:id/members", member.List)
		rosterGroup.GET("/:id/members/:memberID", member.Get)
		rosterGroup.PATCH("/:id/members", member.Mutate)
		rosterGroup.DELETE("/:id/members/:memberID", member.Remove)

		rosterGroup.GET("/:id/ranks", rank.List)
		rosterGroup.POST("/:id/ranks", rank.Upsert)
		rosterGroup.DELETE("/:id/ranks/:rankID", rank.Delete)
	}

	// 实时通道
	wsGroup := r.Group("/api/ws")
	wsGroup.Use(middleware.AuthMiddleware())
	{
		wsGroup.GET("", wsHandler.Serve)
	}

	return r
}
