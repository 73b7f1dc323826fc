package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"samplr/config"
	"samplr/pkg/consts"
	controllersLib "samplr/pkg/controllers"
	"samplr/pkg/entities"
	"samplr/pkg/middlewares"
	repoLib "samplr/pkg/repo"
	"samplr/pkg/repo/driver/db"
	"samplr/pkg/repo/driver/medium"
	"samplr/pkg/repo/memory"
	"samplr/pkg/usecases"
	"samplr/utilities"
)

// stores groups the repositories the usecases are built on.
type stores struct {
	health        repoLib.Imply
	ledger        repoLib.LedgerRepoImply
	users         repoLib.UserRepoImply
	tiers         repoLib.TierRepoImply
	notifications repoLib.NotificationRepoImply
	close         func()
}

// initStores opens Cassandra, or the in-process store in local mode.
func initStores(ctx context.Context, conf *config.SamplrConfModel) (*stores, error) {
	log := utilities.NewLogger("initStores")

	if conf.Mode == consts.ModeLocal {
		log.Info("Initialising in-memory store")
		store := memory.New()
		if err := seedLocal(ctx, store); err != nil {
			return nil, err
		}
		return &stores{
			health:        store,
			ledger:        store,
			users:         store,
			tiers:         store,
			notifications: store,
			close:         func() {},
		}, nil
	}

	log.Info("Initialising DB")
	session, err := db.NewCassandraSession(conf.DB)
	if err != nil {
		return nil, fmt.Errorf("unable to create cassandra session: %w", err)
	}

	return &stores{
		health:        repoLib.NewRepo(session, conf),
		ledger:        repoLib.NewLedgerRepo(session, conf),
		users:         repoLib.NewUserRepo(session, conf),
		tiers:         repoLib.NewTierRepo(session, conf),
		notifications: repoLib.NewNotificationRepo(session, conf),
		close:         session.Close,
	}, nil
}

// seedLocal gives local mode a tier catalog and a demo account to play with.
func seedLocal(ctx context.Context, store *memory.Store) error {
	tiers := []entities.Tier{
		{Order: 1, Name: "Newbie", RequiredPoints: 0},
		{Order: 2, Name: "Active", RequiredPoints: 1000},
		{Order: 3, Name: "Pro", RequiredPoints: 5000},
	}
	for _, tier := range tiers {
		if err := store.UpsertTier(ctx, tier); err != nil {
			return err
		}
	}

	return store.UpsertAccount(ctx, entities.UserAccount{AuthID: "demo-auth", ProfileID: "demo"})
}

// initPush returns the Firebase sender, or a logging stand-in in local mode.
func initPush(ctx context.Context, conf *config.SamplrConfModel, tokens medium.TokenSource) usecases.PushSender {
	log := utilities.NewLogger("initPush")

	if conf.Mode == consts.ModeLocal {
		log.Info("Local mode, push notifications are only logged")
		return medium.LogSender{}
	}

	log.Info("Initialising firebase")
	sender, err := medium.InitFirebase(ctx, conf, tokens)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise firebase")
	}
	return sender
}

func Run() {
	ctx := context.Background()
	ctx, cancelFn := context.WithCancel(ctx)

	// init the env config
	conf, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("unable to initialize environment variables %s", err.Error())
	}

	// Initialise the logger
	utilities.InitLogger(conf.LogLevel, conf.Mode)
	log := utilities.NewLogger("run")

	repos, err := initStores(ctx, conf)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise store")
	}
	defer repos.close()

	pushSender := initPush(ctx, conf, repos.users)

	// here initalizing the router
	router := initRouter(conf)
	if conf.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	path, err := url.JoinPath(conf.Server.APIPrefix, conf.Mode)
	if err != nil {
		log.Panic(err)
	}

	api := router.Group(path)

	notificationWS := medium.NewWebSocket()

	// usecases
	dispatcher := usecases.NewDispatcher(repos.users, pushSender, conf)
	notificationLog := usecases.NewNotificationLog(repos.notifications, conf)
	notificationUsecases := usecases.NewNotificationUsecases(notificationLog, repos.users, notificationWS, dispatcher)
	accrualUsecases := usecases.NewAccrualUsecases(repos.ledger, repos.users, repos.tiers, notificationUsecases)
	useCases := usecases.NewUseCases(repos.health)

	// initializing middleware
	m := middlewares.NewMiddlewares(notificationUsecases)

	// initializing controllersLib
	controllersLib.NewLedgerController(api, accrualUsecases, m).InitRoutes()
	controllersLib.NewNotificationController(api, notificationUsecases, notificationWS, m).InitRoutes()
	controllersLib.NewUserController(api, notificationUsecases, m).InitRoutes()
	controllersLib.NewController(api, useCases, m).InitRoutes()

	log.Infof("Serving routes under %s", config.PathPrefix)

	// run the app
	launch(ctx, cancelFn, router, dispatcher)
}

func initRouter(conf *config.SamplrConfModel) *gin.Engine {

	router := gin.Default()

	router.Use(
		cors.New(
			cors.Config{
				AllowOrigins: []string{"*"},
				AllowMethods: []string{"PUT", "PATCH", "POST", "DELETE", "GET", "OPTIONS"},
				AllowHeaders: []string{
					"Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token", "Authorization", "accept",
					"origin", "Cache-Control", "HOST",
				},
				AllowCredentials: true,
				MaxAge:           12 * time.Hour,
			},
		),
	)

	if conf.Mode == "stage" || conf.Mode == consts.ModeLocal {
		router.GET("/debug/pprof/*profile", gin.WrapF(pprof.Index))
	}

	router.Use(gzip.Gzip(gzip.DefaultCompression))

	return router
}

// launch serves until SIGINT or SIGTERM, then stops accepting requests and
// lets in-flight push dispatches finish.
func launch(ctx context.Context, cancelFn context.CancelFunc, router *gin.Engine, dispatcher *usecases.Dispatcher) {
	log := utilities.NewLogger("launch")
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.GetConfig().Server.Host, config.GetConfig().Server.Port),
		Handler: router,
	}

	go func() {
		// service connections
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	log.Info("Server listening in...", config.GetConfig().Server.Port)

	// kill (no param) default send syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	// kill -9 is syscall.SIGKILL but can't be caught, so don't need add it
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Println("Shutdown Server ...")
	cancelFn()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server Shutdown")
	}
	if err := dispatcher.Drain(shutdownCtx); err != nil {
		log.WithError(err).Warn("push dispatches still running at exit")
	}
	log.Println("Server exiting")
}
