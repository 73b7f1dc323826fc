package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"samplr/pkg/consts"
	"samplr/pkg/entities"
	"samplr/utilities"
)

// ProfileResolver maps a profile or auth id to the profile id.
type ProfileResolver interface {
	ResolveProfileID(ctx context.Context, userID string) (string, error)
}

type Middlewares struct {
	Cache    *cache.Cache
	resolver ProfileResolver
}

// NewMiddlewares
func NewMiddlewares(resolver ProfileResolver) *Middlewares {
	return &Middlewares{
		Cache:    cache.New(5*time.Minute, 10*time.Minute),
		resolver: resolver,
	}
}

// ResolveUser turns the :user_id path parameter into a profile id and stores
// it under consts.UserID. The auth to profile mapping never changes, so
// resolved ids are cached.
func (m *Middlewares) ResolveUser(ctx *gin.Context) {
	log := utilities.NewLogger("ResolveUser")

	userID := ctx.Param("user_id")
	if profileID, found := m.Cache.Get(userID); found {
		ctx.Set(consts.UserID, profileID)
		ctx.Next()
		return
	}

	profileID, err := m.resolver.ResolveProfileID(ctx, userID)
	if err != nil {
		status := entities.HTTPStatus(err)
		if status >= 500 {
			log.WithError(err).Errorf("failed to resolve user %s", userID)
		}
		ctx.AbortWithStatusJSON(
			status, entities.ErrorResponse{
				StatusCode: status,
				Error:      "failed to resolve user",
				Message:    err.Error(),
			},
		)
		return
	}

	m.Cache.Set(userID, profileID, cache.DefaultExpiration)
	ctx.Set(consts.UserID, profileID)
	ctx.Next()
}
