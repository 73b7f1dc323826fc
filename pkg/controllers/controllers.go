package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"samplr/config"
	"samplr/pkg/consts"
	"samplr/pkg/entities"
	"samplr/pkg/middlewares"
	"samplr/pkg/usecases"
	"samplr/utilities"
)

type Controller struct {
	router      *gin.RouterGroup
	useCases    usecases.UseCaseImply
	middleWares *middlewares.Middlewares
}

// NewController
func NewController(
	router *gin.RouterGroup, useCases usecases.UseCaseImply, middleWare *middlewares.Middlewares,
) *Controller {
	return &Controller{
		router:      router,
		useCases:    useCases,
		middleWares: middleWare,
	}
}

// InitRoutes
func (c *Controller) InitRoutes() {

	v1 := c.router.Group(config.GetConfig().Server.APIVersion)
	{
		v1.GET("/", c.RootHandler)
		v1.GET("/health", c.HealthHandler)
		v1.GET("/db/health", c.DatabaseHealthHandler)
		v1.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

}

func (c *Controller) RootHandler(ctx *gin.Context) {
	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: 200,
			Message:    "Welcome to the Samplr API! Please refer to the documentation for information on available endpoints.",
		},
	)
}

// HealthHandler
func (c *Controller) HealthHandler(ctx *gin.Context) {
	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: 200,
			Message:    "Heath check ok",
		},
	)
}

func (c *Controller) DatabaseHealthHandler(ctx *gin.Context) {
	err := c.useCases.DBHealthHandler(ctx)
	if err != nil {
		ctx.JSON(
			http.StatusServiceUnavailable, entities.ErrorResponse{
				StatusCode: http.StatusServiceUnavailable,
				Message:    "unhealthy database",
			},
		)
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: 200,
			Message:    "database health is okay",
		},
	)
}

// respondError writes err with the status its kind maps to.
func respondError(ctx *gin.Context, err error, reason string) {
	status := entities.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		utilities.NewLogger(ctx.HandlerName()).WithError(err).Error(reason)
	}
	ctx.JSON(
		status, entities.ErrorResponse{
			StatusCode: status,
			Error:      reason,
			Message:    err.Error(),
		},
	)
}

func profileID(ctx *gin.Context) string {
	return ctx.GetString(consts.UserID)
}
