package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"samplr/config"
	"samplr/pkg/entities"
	"samplr/pkg/middlewares"
	"samplr/pkg/usecases"
	"samplr/utilities"
)

type UserController struct {
	router      *gin.RouterGroup
	useCases    usecases.NotificationUsecaseImply
	middleWares *middlewares.Middlewares
}

// NewUserController
func NewUserController(
	router *gin.RouterGroup, notificationUseCases usecases.NotificationUsecaseImply, middleWare *middlewares.Middlewares,
) *UserController {
	return &UserController{
		router:      router,
		useCases:    notificationUseCases,
		middleWares: middleWare,
	}
}

// InitRoutes initializes the routes for the UserController.
func (user *UserController) InitRoutes() {
	v1 := user.router.Group(config.GetConfig().Server.APIVersion)

	resolved := v1.Group("/users/:user_id", user.middleWares.ResolveUser)
	{
		resolved.POST("/devices", user.RegisterDevice)
		resolved.PUT("/preferences", user.UpdatePreferences)
	}
}

// RegisterDevice stores the FCM token of a device for push delivery.
func (user *UserController) RegisterDevice(ctx *gin.Context) {
	log := utilities.NewLogger("RegisterDevice")

	var request entities.FCM
	if err := ctx.BindJSON(&request); err != nil {
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: 400,
				Error:      "failed to register device",
				Message:    fmt.Sprintf("binding failed: %s", err.Error()),
			},
		)
		return
	}
	request.ProfileID = profileID(ctx)

	if err := user.useCases.RegisterDevice(ctx, request); err != nil {
		respondError(ctx, err, "failed to register device")
		return
	}

	log.Debugf("device registered for %s", request.ProfileID)

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: 200,
			Message:    "Device registered",
		},
	)
}

// UpdatePreferences merges the given toggles into the account's preferences.
func (user *UserController) UpdatePreferences(ctx *gin.Context) {
	var prefs map[string]bool
	if err := ctx.BindJSON(&prefs); err != nil {
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: 400,
				Error:      "failed to update preferences",
				Message:    fmt.Sprintf("binding failed: %s", err.Error()),
			},
		)
		return
	}

	if err := user.useCases.UpdatePreferences(ctx, profileID(ctx), prefs); err != nil {
		respondError(ctx, err, "failed to update preferences")
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: 200,
			Message:    "Preferences updated",
		},
	)
}
