package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/callistaenterprise/blog-test-aync-processes/api"
	"github.com/callistaenterprise/blog-test-aync-processes/config"
	"github.com/callistaenterprise/blog-test-aync-processes/kafka"
	"github.com/callistaenterprise/blog-test-aync-processes/logger"
	"github.com/callistaenterprise/blog-test-aync-processes/models"
	"github.com/callistaenterprise/blog-test-aync-processes/noise"
	"github.com/callistaenterprise/blog-test-aync-processes/store"
	"github.com/callistaenterprise/blog-test-aync-processes/tracing"
)

func main() {
	if err := run(); err != nil {
		logger.Error("eventsource exited", err)
		os.Exit(1)
	}
}

func run() error {
	logger.Info("starting application",
		logger.FieldKV("port", config.ApiPort),
		logger.FieldKV("broker", config.KafkaBroker),
		logger.FieldKV("topic", config.Topic))

	// Root context cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp := tracing.Init(config.ServiceName)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Error("tracer shutdown failed", err)
		}
	}()

	producer := kafka.NewProducer(config.KafkaBroker, config.Topic, config.Partitions, config.PublishTimeout)
	defer producer.Close()

	opts := []kafka.PublisherOption{kafka.WithValidator(models.NewValidator())}
	if config.DLQTopic != "" {
		dlq := kafka.NewDeadLetter(config.KafkaBroker, config.DLQTopic)
		defer dlq.Close()
		opts = append(opts, kafka.WithDeadLetter(dlq))
	}
	publisher := kafka.NewPublisher(producer, config.PublishWorkers, config.PaddingBytes, opts...)

	checks := []api.ReadyCheck{{
		Name: "kafka",
		Check: func(ctx context.Context) error {
			_, err := kafka.Ping(ctx, config.KafkaBroker, config.Topic)
			return err
		},
	}}

	// Mongo journal is optional
	var repo api.Repository
	if config.MongoURI != "" {
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		m, err := store.Connect(cctx, config.MongoURI, config.MongoDatabase)
		cancel()
		if err != nil {
			return err
		}
		defer m.Close(context.Background())
		repo = m
		checks = append(checks, api.ReadyCheck{Name: "mongo", Check: m.Ping})
	}

	srv := api.NewServer(publisher, repo, checks...)
	publisher.Subscribe(srv.Hub())

	httpServer := &http.Server{
		Addr:              ":" + config.ApiPort,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", logger.FieldKV("port", config.ApiPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		noise.NewMaker(publisher, config.NoiseInterval).Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		sctx, cancel := context.WithTimeout(context.Background(), config.ShutdownGrace)
		defer cancel()
		err := httpServer.Shutdown(sctx)
		srv.Hub().CloseAll()
		return err
	})

	err := g.Wait()
	// Drain queued events before the producer closes
	publisher.Close()
	logger.Info("application stopped")
	return err
}
