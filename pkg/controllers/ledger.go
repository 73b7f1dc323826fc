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

type LedgerController struct {
	router      *gin.RouterGroup
	useCases    usecases.AccrualUsecaseImply
	middleWares *middlewares.Middlewares
}

// NewLedgerController
func NewLedgerController(
	router *gin.RouterGroup, accrualUseCases usecases.AccrualUsecaseImply, middleWare *middlewares.Middlewares,
) *LedgerController {
	return &LedgerController{
		router:      router,
		useCases:    accrualUseCases,
		middleWares: middleWare,
	}
}

// InitRoutes
func (l *LedgerController) InitRoutes() {
	v1 := l.router.Group(config.GetConfig().Server.APIVersion)

	user := v1.Group("/users/:user_id", l.middleWares.ResolveUser)
	{
		user.POST("/events/:event_id/check-ins", l.SubmitCheckIn)
		user.POST("/events/:event_id/reviews", l.SubmitReview)
		user.GET("/statistics", l.GetStatistics)
		user.POST("/statistics/reconcile", l.ReconcileTotals)
	}
}

// SubmitCheckIn credits the points of an event check-in.
func (l *LedgerController) SubmitCheckIn(ctx *gin.Context) {
	log := utilities.NewLogger("SubmitCheckIn")

	var request entities.CheckInRequest
	if err := ctx.BindJSON(&request); err != nil {
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: 400,
				Error:      "failed to submit check-in",
				Message:    fmt.Sprintf("binding failed: %s", err.Error()),
			},
		)
		return
	}
	request.UserID = profileID(ctx)
	request.EventID = ctx.Param("event_id")

	log.Infof("Received SubmitCheckIn request for user %s and event %s", request.UserID, request.EventID)

	record, err := l.useCases.SubmitCheckIn(ctx, request)
	if err != nil {
		respondError(ctx, err, "failed to submit check-in")
		return
	}

	ctx.JSON(
		http.StatusCreated, entities.Response{
			StatusCode: http.StatusCreated,
			Message:    "Check-in recorded",
			Data:       record,
		},
	)
}

// SubmitReview credits the points of a sampling review.
func (l *LedgerController) SubmitReview(ctx *gin.Context) {
	log := utilities.NewLogger("SubmitReview")

	var request entities.ReviewRequest
	if err := ctx.BindJSON(&request); err != nil {
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: 400,
				Error:      "failed to submit review",
				Message:    fmt.Sprintf("binding failed: %s", err.Error()),
			},
		)
		return
	}
	request.UserID = profileID(ctx)
	request.EventID = ctx.Param("event_id")

	log.Infof("Received SubmitReview request for user %s and event %s", request.UserID, request.EventID)

	record, err := l.useCases.SubmitReview(ctx, request)
	if err != nil {
		respondError(ctx, err, "failed to submit review")
		return
	}

	ctx.JSON(
		http.StatusCreated, entities.Response{
			StatusCode: http.StatusCreated,
			Message:    "Review recorded",
			Data:       record,
		},
	)
}

func (l *LedgerController) GetStatistics(ctx *gin.Context) {
	stats, err := l.useCases.GetStatistics(ctx, profileID(ctx))
	if err != nil {
		respondError(ctx, err, "failed to fetch statistics")
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: 200,
			Message:    "Successfully fetched statistics",
			Data:       stats,
		},
	)
}

// ReconcileTotals repairs totals left behind by a failed update.
func (l *LedgerController) ReconcileTotals(ctx *gin.Context) {
	log := utilities.NewLogger("ReconcileTotals")
	log.Info("Received ReconcileTotals request for user ", profileID(ctx))

	result, err := l.useCases.ReconcileTotals(ctx, profileID(ctx))
	if err != nil {
		respondError(ctx, err, "failed to reconcile totals")
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: 200,
			Message:    "Totals reconciled",
			Data:       result,
		},
	)
}
