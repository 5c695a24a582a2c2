package approuters

import (
	"github.com/gin-gonic/gin"

	"Mercury/internal/configuration"
)

func UserRouters(router *gin.Engine, container *configuration.Container) {
	userRoute := router.Group("/mc/api/users")
	{
		userRoute.POST("/create-user", container.UserHandler.CreateUser)
		userRoute.GET("/by-key/:userKey", container.UserHandler.GetUser)
		userRoute.GET("/by-phone/:phoneNumber", container.UserHandler.GetUserByPhone)
	}
}
