package controllers

import (
	"net/http"

	"shop-service/apperrors"
	"shop-service/middlewares"
	"shop-service/models"
	"shop-service/services"
	"shop-service/utils"

	"github.com/gin-gonic/gin"
)

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, models.Succeed(status, message, data))
}

// respondError 业务错误映射为对应状态码, 其他错误统一 500
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(apperrors.CodeOf(err))
	_ = c.Error(err)
	c.JSON(status, models.Fail(status, apperrors.PublicMessage(err)))
}

func respondBindError(c *gin.Context, err error) {
	respondError(c, apperrors.Wrap(apperrors.ValidationError, err, err.Error()))
}

// actorFrom 取出 AuthMiddleware 写入的身份
func actorFrom(c *gin.Context) (services.Actor, bool) {
	id := c.GetString(middlewares.ContextUserID)
	if id == "" {
		respond401(c)
		return services.Actor{}, false
	}
	return services.Actor{ID: id, Admin: c.GetString(middlewares.ContextRole) == utils.RoleAdmin}, true
}

func respond401(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, models.Fail(http.StatusUnauthorized, "user not authenticated"))
}
