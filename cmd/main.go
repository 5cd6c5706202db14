package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"github.com/Imking640/Felicity-Event-Booking-sub000/cmd/buildCFG"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/api/api"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/auth"
	rabbitReader "github.com/Imking640/Felicity-Event-Booking-sub000/internal/consumerWorker"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/mailer"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/rabbit"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/repo"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/service"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/ticket"
)

func main() {
	zlog.Init()
	log := zlog.Logger

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", "FELICITY"); err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)

	storageCfg, err := buildCFG.BuildStorageConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid storage config")
	}

	var repository repo.Repository
	migrationPath := storageCfg.MigrationsPath
	if !filepath.IsAbs(migrationPath) {
		cwd, err := os.Getwd()
		if err != nil {
			log.Fatal().Err(err).Msg("cannot get working directory")
		}
		migrationPath = filepath.Join(cwd, migrationPath)
	}

	switch storageCfg.Driver {
	case buildCFG.StorageDriverMemory:
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		repository = repo.NewMemoryRepository()
	default:
		masterDSN, slaveDSNs, poolOptions, err := buildCFG.BuildDBConfig(cfg, &log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build DB config")
		}
		db, err := dbpg.New(masterDSN, slaveDSNs, poolOptions)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to DB")
		}
		repository, err = repo.NewRepository(db, &log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize repository")
		}
		log.Info().Msg("database connected")
	}

	if err := repository.MigrateUp(migrationPath); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	ticketCfg := buildCFG.BuildTicketConfig(cfg)
	signer, err := ticket.NewSigner(ticketCfg.Scheme, ticketCfg.Secret)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build ticket signer")
	}
	issuer := ticket.NewIssuer(repository, signer, &log)

	proofs, err := buildCFG.BuildProofStore(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build payment proof store")
	}

	paymentTimeout := buildCFG.BuildPaymentTimeout(cfg)
	opts := []service.Option{service.WithPaymentTimeout(paymentTimeout)}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var (
		pub service.Publisher
		rmq *rabbit.Client
	)
	if rabbitCfg, ok := buildCFG.BuildRabbitConfig(cfg, &log); ok {
		rmq, err = rabbit.NewRabbit(rabbitCfg, &log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()
		pub = rmq
	} else if paymentTimeout > 0 {
		log.Warn().Dur("payment_timeout", paymentTimeout).Msg("payment timeout needs rabbit, unpaid registrations will not expire")
	}

	serviceInstance := service.NewService(repository, issuer, proofs, pub, &log, opts...)

	var reader *rabbitReader.Reader
	if rmq != nil {
		mail := mailer.New(buildCFG.BuildMailerConfig(cfg), paymentTimeout, &log)
		reader = rabbitReader.NewReader(rmq, serviceInstance, mail, &log)
		if err := reader.Start(workerCtx); err != nil {
			log.Fatal().Err(err).Msg("failed to start notification reader")
		}
	}

	authCfg, err := buildCFG.BuildAuthConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid auth config")
	}
	authenticator, err := auth.New(authCfg.Secret, authCfg.Issuer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build authenticator")
	}

	app := api.NewRouters(&api.Routers{
		Service: serviceInstance,
		Auth:    authenticator,
		Log:     &log,
		Mode:    serverCfg.Mode,
	})
	srv := &http.Server{
		Addr:              ":" + serverCfg.Port,
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Str("port", serverCfg.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Str("signal", sig.String()).Msg("initiating shutdown")
	case err := <-serverErrChan:
		log.Error().Err(err).Msg("server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down server")
	}

	cancelWorkers()
	if reader != nil {
		reader.Stop()
	}

	if storageCfg.MigrateDown {
		log.Info().Msg("rolling back migrations")
		if err := repository.MigrateDown(migrationPath); err != nil {
			log.Error().Err(err).Msg("failed to rollback migrations")
		}
	}
	log.Info().Msg("shutdown complete")
}
