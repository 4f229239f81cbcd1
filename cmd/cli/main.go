package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/finance-migrator/internal/backup"
	"github.com/dvloznov/finance-migrator/internal/domain"
	"github.com/dvloznov/finance-migrator/internal/events"
	"github.com/dvloznov/finance-migrator/internal/logger"
	"github.com/dvloznov/finance-migrator/internal/migration"
	"github.com/dvloznov/finance-migrator/internal/profilestore"
	"github.com/dvloznov/finance-migrator/internal/safety"
	"github.com/dvloznov/finance-migrator/internal/storage/badgerstore"
	"github.com/dvloznov/finance-migrator/internal/validation"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "assess":
		runAssess()
	case "migrate":
		runMigrate()
	case "rollback":
		runRollback()
	case "reset":
		runReset()
	case "status":
		runStatus()
	case "backup":
		runBackup()
	case "verify":
		runVerify()
	case "arm":
		runArm()
	case "recommend":
		runRecommend()
	case "housekeeping":
		runHousekeeping()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Migrator CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  assess        Dry-run report: is migration possible, estimates, counts")
	fmt.Println("  migrate       Run the full staged migration")
	fmt.Println("  rollback      Restore the pre-migration state from the last backup")
	fmt.Println("  reset         Return the migration state machine to notStarted")
	fmt.Println("  status        Show the persisted migration status")
	fmt.Println("  backup        Take a backup of the current state")
	fmt.Println("  verify        Verify a backup (newest by default)")
	fmt.Println("  arm           Run the five pre-flight safety checks")
	fmt.Println("  recommend     Print recovery recommendations")
	fmt.Println("  housekeeping  Prune old backups and checkpoints")
	fmt.Println("  help          Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// commonFlags are shared by every subcommand.
type commonFlags struct {
	dataDir   *string
	backupDir *string
	gcsBucket *string
	bqProject *string
	bqDataset *string
	logLevel  *string
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		dataDir:   fs.String("data-dir", "./data", "directory for the local record store"),
		backupDir: fs.String("backup-dir", "./safety", "base directory for backups and checkpoints"),
		gcsBucket: fs.String("gcs-bucket", "", "GCS bucket for the cloud profile store (empty: in-memory)"),
		bqProject: fs.String("bq-project", "", "BigQuery project for migration events (empty: disabled)"),
		bqDataset: fs.String("bq-dataset", "finance_migrator", "BigQuery dataset for migration events"),
		logLevel:  fs.String("log-level", "info", "minimum log level"),
	}
}

// app bundles the wired collaborators for one CLI invocation.
type app struct {
	log      zerolog.Logger
	store    *badgerstore.Store
	profiles profilestore.ProfileStore
	backups  *backup.Manager
	engine   *validation.Engine
	sup      *safety.Supervisor
	orch     *migration.Orchestrator
	rec      events.Recorder
}

func buildApp(ctx context.Context, cf *commonFlags) (*app, error) {
	log := logger.NewWithLevel(*cf.logLevel)

	store, err := badgerstore.Open(badgerstore.DefaultConfig(*cf.dataDir), logger.Component(log, "storage"))
	if err != nil {
		return nil, fmt.Errorf("opening record store: %w", err)
	}

	var rec events.Recorder = events.NopRecorder{}
	if *cf.bqProject != "" {
		rec, err = events.NewBigQueryRecorder(ctx, *cf.bqProject, *cf.bqDataset)
		if err != nil {
			return nil, fmt.Errorf("connecting event sink: %w", err)
		}
	}

	var profiles profilestore.ProfileStore = profilestore.NewMemoryStore()
	if *cf.gcsBucket != "" {
		profiles, err = profilestore.NewGCSStore(ctx, *cf.gcsBucket)
		if err != nil {
			return nil, fmt.Errorf("connecting profile store: %w", err)
		}
	}

	backups, err := backup.NewManager(backup.DefaultConfig(*cf.backupDir), logger.Component(log, "backup"), rec)
	if err != nil {
		return nil, fmt.Errorf("creating backup manager: %w", err)
	}

	engine := validation.NewEngine(logger.Component(log, "validation"))
	sup := safety.NewSupervisor(safety.DefaultConfig(), store, backups, engine, rec, logger.Component(log, "safety"))

	onProgress := func(p migration.Progress) {
		fmt.Printf("  [%3.0f%%] %s\n", p.Fraction*100, p.Step)
	}
	orch := migration.NewOrchestrator(store, profiles, backups, engine, rec, logger.Component(log, "migration"), onProgress)
	sup.SetMigrationActivity(orch)

	return &app{
		log:      log,
		store:    store,
		profiles: profiles,
		backups:  backups,
		engine:   engine,
		sup:      sup,
		orch:     orch,
		rec:      rec,
	}, nil
}

func (a *app) close() {
	if err := a.backups.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Closing backup manager")
	}
	if err := a.profiles.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Closing profile store")
	}
	if err := a.rec.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Closing event recorder")
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Closing record store")
	}
}

// withApp parses flags, wires the app, runs fn and exits non-zero on error.
func withApp(name string, args []string, fn func(ctx context.Context, a *app) error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cf := registerCommon(fs)
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	a, err := buildApp(ctx, cf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.close()

	if err := fn(ctx, a); err != nil {
		a.log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runAssess() {
	withApp("assess", os.Args[2:], func(ctx context.Context, a *app) error {
		assessment, err := a.orch.Assess(ctx)
		if err != nil {
			return err
		}
		return printJSON(assessment)
	})
}

func runMigrate() {
	withApp("migrate", os.Args[2:], func(ctx context.Context, a *app) error {
		if interrupted, err := a.orch.DetectInterrupted(ctx); err != nil {
			return err
		} else if interrupted {
			a.log.Warn().Msg("Previous run was interrupted; rolling back before restarting")
			if outcome := a.orch.Rollback(ctx); !outcome.Success {
				return fmt.Errorf("recovering interrupted run: %s", outcome.Message)
			}
			if err := a.orch.Reset(ctx); err != nil {
				return err
			}
		}

		arming, err := a.sup.ArmSafetyChecks(ctx)
		if err != nil {
			return err
		}
		if !arming.Armed {
			for _, check := range arming.FailedChecks() {
				a.log.Error().
					Str("check", check.Name).
					Str("remediation", check.Remediation).
					Msg(check.Detail)
			}
			return fmt.Errorf("safety checks not armed")
		}

		outcome := a.orch.Execute(ctx)
		fmt.Println(outcome.Message)
		if !outcome.Success {
			os.Exit(1)
		}
		return nil
	})
}

func runRollback() {
	withApp("rollback", os.Args[2:], func(ctx context.Context, a *app) error {
		outcome := a.orch.Rollback(ctx)
		fmt.Println(outcome.Message)
		if !outcome.Success {
			os.Exit(1)
		}
		return nil
	})
}

func runReset() {
	withApp("reset", os.Args[2:], func(ctx context.Context, a *app) error {
		if err := a.orch.Reset(ctx); err != nil {
			return err
		}
		fmt.Println("migration state reset")
		return nil
	})
}

func runStatus() {
	withApp("status", os.Args[2:], func(ctx context.Context, a *app) error {
		status, err := a.orch.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil
	})
}

func runBackup() {
	withApp("backup", os.Args[2:], func(ctx context.Context, a *app) error {
		data, err := a.store.Get(ctx, domain.KeyLegacyData)
		if err != nil {
			return fmt.Errorf("reading legacy data: %w", err)
		}
		result, err := a.backups.CreateBackup(ctx, backup.Snapshot{
			LegacyData:      data,
			AppState:        []byte(`{}`),
			UserPreferences: []byte(`{}`),
		})
		if err != nil {
			return err
		}
		fmt.Printf("backup %s created\n", result.BackupID)
		return nil
	})
}

func runVerify() {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	cf := registerCommon(fs)
	backupID := fs.String("backup-id", "", "backup to verify (default: newest)")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	a, err := buildApp(ctx, cf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.close()

	id := *backupID
	if id == "" {
		id, err = a.backups.Latest(ctx)
		if err != nil {
			a.log.Error().Err(err).Msg("Command failed")
			os.Exit(1)
		}
	}

	result, err := a.backups.VerifyBackup(ctx, id)
	if err != nil {
		a.log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
	if err := printJSON(result); err != nil {
		os.Exit(1)
	}
	if !result.OK {
		os.Exit(1)
	}
}

func runArm() {
	withApp("arm", os.Args[2:], func(ctx context.Context, a *app) error {
		result, err := a.sup.ArmSafetyChecks(ctx)
		if err != nil {
			return err
		}
		if err := printJSON(result); err != nil {
			return err
		}
		if !result.Armed {
			os.Exit(1)
		}
		return nil
	})
}

func runRecommend() {
	withApp("recommend", os.Args[2:], func(ctx context.Context, a *app) error {
		return printJSON(a.sup.RecoveryRecommendations(ctx))
	})
}

func runHousekeeping() {
	withApp("housekeeping", os.Args[2:], func(ctx context.Context, a *app) error {
		result, err := a.backups.Housekeeping(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d backups, %d checkpoints\n", result.RemovedBackups, result.RemovedCheckpoints)
		return nil
	})
}
