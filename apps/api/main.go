package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/elimu-cd/elimu/apps/api/echo"
	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/catalog"
	"github.com/elimu-cd/elimu/core/enrollment"
	"github.com/elimu-cd/elimu/core/liveclass"
	"github.com/elimu-cd/elimu/core/material"
	"github.com/elimu-cd/elimu/core/rating"
	"github.com/elimu-cd/elimu/core/user"
	emailsvc "github.com/elimu-cd/elimu/services/email"
	logsvc "github.com/elimu-cd/elimu/services/logger"
	"github.com/elimu-cd/elimu/storage/database"
	sqlxrepos "github.com/elimu-cd/elimu/storage/database/sqlx"
	"github.com/elimu-cd/elimu/storage/files"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.InitConf()

	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!conf.Debug)

	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	store, err := files.NewLocal(conf.Upload.Dir, conf.Upload.MaxFileSize)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file store: %v", err), err)
	}

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, logger)
	catSvc := catalog.NewService(sqlxrepos.NewCatalogRepository(db))
	enrSvc := enrollment.NewService(sqlxrepos.NewEnrollmentRepository(db))
	rtgSvc := rating.NewService(sqlxrepos.NewRatingRepository(db), enrSvc)
	lcSvc := liveclass.NewService(sqlxrepos.NewLiveClassRepository(db), enrSvc)
	matSvc := material.NewService(sqlxrepos.NewMaterialRepository(db), store, enrSvc, logger)

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	server := echoapi.NewServer(
		&echoapi.Options{
			Address:       conf.Server.Address(),
			Logger:        logger,
			UserSvc:       usrSvc,
			CatalogSvc:    catSvc,
			EnrollmentSvc: enrSvc,
			RatingSvc:     rtgSvc,
			LiveClassSvc:  lcSvc,
			MaterialSvc:   matSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return sqlx.NewDb(db, conf.Database.Engine), nil
}
