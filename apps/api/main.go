package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/DYJJ/Academic-StarChain-sub001/apps/api/echo"
	"github.com/DYJJ/Academic-StarChain-sub001/core"
	"github.com/DYJJ/Academic-StarChain-sub001/core/appeal"
	"github.com/DYJJ/Academic-StarChain-sub001/core/grade"
	"github.com/DYJJ/Academic-StarChain-sub001/core/user"
	actionlogsvc "github.com/DYJJ/Academic-StarChain-sub001/services/actionlog"
	analysissvc "github.com/DYJJ/Academic-StarChain-sub001/services/analysis"
	emailsvc "github.com/DYJJ/Academic-StarChain-sub001/services/email"
	logsvc "github.com/DYJJ/Academic-StarChain-sub001/services/logger"
	"github.com/DYJJ/Academic-StarChain-sub001/storage/database"
	sqlxrepos "github.com/DYJJ/Academic-StarChain-sub001/storage/database/sqlx"
)

func main() {
	conf := core.Conf

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	var analysisSvc core.AnalysisService
	if conf.GeminiAPIKey != "" {
		analysisSvc, err = analysissvc.NewGeminiService(context.Background())
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up analysis service: %v", err), err)
		}
	} else {
		analysisSvc = analysissvc.EchoService{}
	}

	actionLog := actionlogsvc.NewDatabaseLogger(db, logger)

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, mailSvc)
	gradeSvc := grade.NewService(database.NewTransactor(db), sqlxrepos.NewGradeRepository(db), usrRepo, actionLog, mailSvc, logger)
	appealSvc := appeal.NewService(sqlxrepos.NewAppealRepository(db), gradeSvc, actionLog)

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// start API server
	server := echoapi.NewServer(&echoapi.Options{
		Address:     conf.Server.Address(),
		UserSvc:     usrSvc,
		GradeSvc:    gradeSvc,
		AppealSvc:   appealSvc,
		AnalysisSvc: analysisSvc,
		Logger:      logger,
		Validate:    core.Validate,
		Translator:  core.Translator,
	})

	go server.Start()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	if err = server.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
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
	return db, nil
}
