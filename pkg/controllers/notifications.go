package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"samplr/config"
	"samplr/pkg/consts"
	"samplr/pkg/entities"
	"samplr/pkg/middlewares"
	"samplr/pkg/repo/driver/medium"
	"samplr/pkg/usecases"
	"samplr/utilities"
)

type NotificationController struct {
	router      *gin.RouterGroup
	useCases    usecases.NotificationUsecaseImply
	middleWares *middlewares.Middlewares
	ws          *medium.Socket
}

// NewNotificationController
func NewNotificationController(
	router *gin.RouterGroup, notificationUseCases usecases.NotificationUsecaseImply,
	ws *medium.Socket, middleWare *middlewares.Middlewares,
) *NotificationController {
	return &NotificationController{
		router:      router,
		useCases:    notificationUseCases,
		middleWares: middleWare,
		ws:          ws,
	}
}

// InitRoutes
func (n *NotificationController) InitRoutes() {
	v1 := n.router.Group(config.GetConfig().Server.APIVersion)

	user := v1.Group("/users/:user_id", n.middleWares.ResolveUser)
	{
		user.GET("/ws", n.WebsocketHandler)
		user.POST("/notifications", n.Notify)
		user.GET("/notifications", n.GetNotifications)
		user.GET("/notifications/unread/count", n.UnreadCount)
		user.PUT("/notifications/read", n.MarkAllRead)
		user.PUT("/notifications/:notification_id/read", n.MarkRead)
		user.DELETE("/notifications/:notification_id", n.DeleteNotification)
		user.DELETE("/notifications", n.ClearNotifications)
	}
}

// Notify appends a notification from a producer outside the ledger.
func (n *NotificationController) Notify(ctx *gin.Context) {
	log := utilities.NewLogger("Notify")

	var request entities.NotificationRequest
	if err := ctx.BindJSON(&request); err != nil {
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: 400,
				Error:      "failed to send notification",
				Message:    fmt.Sprintf("binding failed: %s", err.Error()),
			},
		)
		return
	}

	log.Infof("Received Notify request of type %s for %s", request.Type, profileID(ctx))

	entry, err := n.useCases.Notify(ctx, profileID(ctx), request)
	if err != nil {
		respondError(ctx, err, "failed to send notification")
		return
	}

	ctx.JSON(
		http.StatusCreated, entities.Response{
			StatusCode: http.StatusCreated,
			Message:    "Successfully sent notification",
			Data:       entry,
		},
	)
}

// GetNotifications lists the newest notifications, optionally unread only.
func (n *NotificationController) GetNotifications(ctx *gin.Context) {
	limit := utilities.ParseLimit(
		ctx.DefaultQuery("limit", consts.DefaultPageSize), cast.ToInt(consts.DefaultPageSize), consts.NotificationLogCapacity,
	)
	unreadOnly := cast.ToBool(ctx.Query("unread"))

	data, err := n.useCases.GetNotifications(ctx, profileID(ctx), limit, unreadOnly)
	if err != nil {
		respondError(ctx, err, "failed fetching notifications")
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: 200,
			Message:    "Successfully fetched notifications",
			Data:       data,
		},
	)
}

func (n *NotificationController) UnreadCount(ctx *gin.Context) {
	count, err := n.useCases.UnreadCount(ctx, profileID(ctx))
	if err != nil {
		respondError(ctx, err, "failed counting unread notifications")
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: 200,
			Message:    "Successfully counted unread notifications",
			Data:       map[string]int{"unread": count},
		},
	)
}

func (n *NotificationController) MarkRead(ctx *gin.Context) {
	err := n.useCases.MarkRead(ctx, profileID(ctx), ctx.Param("notification_id"))
	if err != nil {
		respondError(ctx, err, "failed to mark notification read")
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: 200,
			Message:    "Notification marked read",
		},
	)
}

func (n *NotificationController) MarkAllRead(ctx *gin.Context) {
	marked, err := n.useCases.MarkAllRead(ctx, profileID(ctx))
	if err != nil {
		respondError(ctx, err, "failed to mark notifications read")
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: 200,
			Message:    "Notifications marked read",
			Data:       map[string]int{"marked": marked},
		},
	)
}

func (n *NotificationController) DeleteNotification(ctx *gin.Context) {
	err := n.useCases.DeleteNotification(ctx, profileID(ctx), ctx.Param("notification_id"))
	if err != nil {
		respondError(ctx, err, "failed to delete notification")
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: 200,
			Message:    "Notification deleted",
		},
	)
}

func (n *NotificationController) ClearNotifications(ctx *gin.Context) {
	if err := n.useCases.ClearNotifications(ctx, profileID(ctx)); err != nil {
		respondError(ctx, err, "failed to clear notifications")
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: 200,
			Message:    "Notifications cleared",
		},
	)
}

// WebsocketHandler upgrades the request into the account's live feed.
func (n *NotificationController) WebsocketHandler(ctx *gin.Context) {
	upgrader := medium.Upgrade()
	wsConn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("failed to upgrade websocket connection")
		return
	}

	n.ws.Add(profileID(ctx), wsConn)
}
