package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-migrator/internal/backup"
	"github.com/dvloznov/finance-migrator/internal/events"
	"github.com/dvloznov/finance-migrator/internal/logger"
	"github.com/dvloznov/finance-migrator/internal/safety"
	"github.com/dvloznov/finance-migrator/internal/storage/badgerstore"
	"github.com/dvloznov/finance-migrator/internal/validation"
)

func main() {
	dataDir := flag.String("data-dir", "./data", "directory for the local record store")
	backupDir := flag.String("backup-dir", "./safety", "base directory for backups and checkpoints")
	bqProject := flag.String("bq-project", "", "BigQuery project for migration events (empty: disabled)")
	bqDataset := flag.String("bq-dataset", "finance_migrator", "BigQuery dataset for migration events")
	interval := flag.Duration("interval", time.Minute, "monitor check interval")
	logLevel := flag.String("log-level", "info", "minimum log level")
	flag.Parse()

	log := logger.NewWithLevel(*logLevel)
	log.Info().Msg("Starting safety monitor")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := badgerstore.Open(badgerstore.DefaultConfig(*dataDir), logger.Component(log, "storage"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer store.Close()

	var rec events.Recorder = events.NopRecorder{}
	if *bqProject != "" {
		rec, err = events.NewBigQueryRecorder(ctx, *bqProject, *bqDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect event sink")
		}
	}
	defer rec.Close()

	backups, err := backup.NewManager(backup.DefaultConfig(*backupDir), logger.Component(log, "backup"), rec)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create backup manager")
	}
	defer backups.Close()

	engine := validation.NewEngine(logger.Component(log, "validation"))
	sup := safety.NewSupervisor(safety.DefaultConfig(), store, backups, engine, rec, logger.Component(log, "safety"))

	if arming, err := sup.ArmSafetyChecks(ctx); err != nil {
		log.Fatal().Err(err).Msg("Arming checks failed")
	} else if !arming.Armed {
		for _, check := range arming.FailedChecks() {
			log.Warn().
				Str("check", check.Name).
				Str("remediation", check.Remediation).
				Msg(check.Detail)
		}
	}

	onAlert := func(a safety.Alert) {
		log.Warn().
			Str("severity", string(a.Severity)).
			Str("category", string(a.Category)).
			Msg(a.Message)
	}
	monitor := safety.NewMonitor(sup, *interval, onAlert, logger.Component(log, "monitor"))
	if err := monitor.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start monitor")
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("Shutting down")
	monitor.Stop()
}
