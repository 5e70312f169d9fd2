package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"race-registration/internal/config"
	"race-registration/internal/infrastructure/database"
	"race-registration/internal/infrastructure/repository"
	"race-registration/internal/service"
	"race-registration/pkg/clock"
	"race-registration/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	sweepOnce     bool
	sweepInterval int
)

// sweepCmd runs the expiration sweeper that cancels registrations whose hold
// has lapsed and expires their pending invites.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the expiration sweeper",
	Long: `Cancel registrations whose payment hold has expired and release their
capacity. Runs periodically by default; use --once for a single pass, which
suits an external scheduler driving the internal cleanup endpoint instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		runSweeper()
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().BoolVar(&sweepOnce, "once", false, "Run a single sweep and exit")
	sweepCmd.Flags().IntVar(&sweepInterval, "interval", 0, "Sweep interval in seconds (overrides config)")
}

func runSweeper() {
	cfg := config.Get()

	db, err := database.NewConnection(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.Username,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}

	store := repository.NewRegistrationStore(db)
	holdTTL := time.Duration(cfg.Registration.HoldTTLMinutes) * time.Minute
	registrationService := service.NewRegistrationService(store, clock.System{}, holdTTL)

	interval := time.Duration(cfg.Registration.SweepIntervalSeconds) * time.Second
	if sweepInterval > 0 {
		interval = time.Duration(sweepInterval) * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweep := func() {
		cancelled, err := registrationService.CleanupExpiredRegistrations(ctx)
		if err != nil {
			logger.Error("Sweep failed: %v", err)
			return
		}
		logger.Info("Sweep completed, cancelled %d expired registrations", cancelled)
	}

	if sweepOnce {
		sweep()
		return
	}

	logger.Info("Starting expiration sweeper with interval %s", interval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweep()
	for {
		select {
		case <-ticker.C:
			sweep()
		case <-quit:
			logger.Info("Shutting down sweeper...")
			cancel()
			return
		}
	}
}
