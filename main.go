package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kpitracker/config"
	"kpitracker/database"
	"kpitracker/handlers"
	"kpitracker/logger"
	"kpitracker/middlewares"
	repository "kpitracker/repositories"
	"kpitracker/routes"
	services "kpitracker/services"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logrus.Fatal(err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.Fatal(err)
	}

	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.WithError(err).Error("Failed to disconnect from MongoDB")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		log.WithError(err).Fatal("Failed to ping MongoDB")
	}
	log.Info("Connected to MongoDB")
	logReplicaSet(client, log)

	db := client.Database(cfg.MongoDatabase)
	if err := database.CreateKPIIndexes(context.Background(), db); err != nil {
		log.WithError(err).Warn("Failed to create KPI indexes")
	}

	kpiRepo := repository.NewKPIRepository(db)
	evidenceStore, err := repository.NewEvidenceStore(db)
	if err != nil {
		log.WithError(err).Fatal("Failed to open evidence store")
	}
	enforcer, err := middlewares.NewEnforcer()
	if err != nil {
		log.WithError(err).Fatal("Failed to load authorization policy")
	}

	kpiService := services.NewKPIService(kpiRepo, evidenceStore, log)
	kpiHandler := handlers.NewKPIHandler(kpiService, log, cfg.MaxUploadBytes, cfg.RequestTimeout)
	handler := routes.SetupRoutes(kpiHandler, cfg.JWTSecret, enforcer, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
	log.Info("Server stopped")
}

// logReplicaSet logs the deployment topology of the connected server.
func logReplicaSet(client *mongo.Client, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var result bson.M
	if err := client.Database("admin").RunCommand(ctx, bson.M{"hello": 1}).Decode(&result); err != nil {
		log.WithError(err).Warn("Error checking replica set")
		return
	}

	if setName, exists := result["setName"]; exists {
		log.WithField("replica_set", setName).Info("Part of replica set")
		return
	}
	log.Info("Not part of a replica set")
}
