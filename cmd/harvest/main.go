package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"QuoteHarvest/internal/model"
	"QuoteHarvest/internal/notifier"
	"QuoteHarvest/internal/pipeline"
	"QuoteHarvest/internal/server"
)

const version = "v1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	var a *app

	rootCmd := &cobra.Command{
		Use:          "harvest",
		Short:        "QuoteHarvest - daily quote collection and next-day close model",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			// Load environment variables from .env file
			_ = godotenv.Load()
			if cfgPath == "" {
				cfgPath = "configs/config.yaml"
				if v := os.Getenv("CONFIG_PATH"); v != "" {
					cfgPath = v
				}
			}
			var err error
			a, err = newApp(cfgPath)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a != nil {
				a.close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), a)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Configuration file path (default configs/config.yaml or $CONFIG_PATH)")

	rootCmd.AddCommand(newScheduleCmd(&a))
	rootCmd.AddCommand(newServeCmd(&a))
	rootCmd.AddCommand(newPredictCmd(&a))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func runOnce(ctx context.Context, a *app) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rep, err := a.newPipeline().RunOnce(ctx)
	if rep != nil {
		fmt.Print(pipeline.FormatReport(rep))
	}
	if err != nil {
		a.logger.Error("pipeline run failed", zap.String("kind", model.KindOf(err)), zap.Error(err))
		return err
	}
	return nil
}

// newScheduleCmd runs the pipeline on the configured cron expression until
// SIGINT or SIGTERM.
func newScheduleCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on the configured cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ap := *a
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var n notifier.Notifier
			tn := ap.newTelegram()
			if tn != nil {
				n = tn
			}
			sched := pipeline.NewScheduler(ctx, ap.newPipeline(), n, ap.logger)
			if err := sched.Register(ap.cfg.Schedule.Cron); err != nil {
				return fmt.Errorf("%w: %w", model.ErrConfiguration, err)
			}
			sched.Start()

			if tn != nil && ap.cfg.Telegram.Polling {
				go tn.StartPolling(ctx, sched.HandleCommand)
				ap.logger.Info("telegram polling started")
			}

			if ap.cfg.Schedule.RunOnStart {
				ap.logger.Info("run_on_start enabled, executing pipeline now")
				go sched.RunNow()
			}

			ap.logger.Info("QuoteHarvest is running. Press Ctrl+C to stop.")
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			ap.logger.Info("shutdown signal received, stopping...")
			cancel()
			sched.Stop()
			ap.logger.Info("QuoteHarvest stopped")
			return nil
		},
	}
}

func newServeCmd(a **app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions and model metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ap := *a
			if addr == "" {
				addr = ap.cfg.Server.Addr
			}
			router := server.NewRouter(server.NewPredictionHandler(ap.newTrainer(), ap.logger), ap.logger)
			srv := &http.Server{
				Addr:         addr,
				Handler:      router,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				ap.logger.Info("starting server", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return fmt.Errorf("server: %w", err)
			case <-quit:
			}

			ap.logger.Info("shutting down server...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			ap.logger.Info("server exited properly")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default server.addr)")
	return cmd
}

func newPredictCmd(a **app) *cobra.Command {
	var open, high, low, volume float64
	cmd := &cobra.Command{
		Use:     "predict",
		Short:   "Predict the next-day close from one day's Open/High/Low/Volume",
		Example: "harvest predict --open 100 --high 105 --low 99 --volume 1000000",
		RunE: func(cmd *cobra.Command, args []string) error {
			row := map[string]float64{"Open": open, "High": high, "Low": low, "Volume": volume}
			preds, err := (*a).newTrainer().Predict([]map[string]float64{row})
			if err != nil {
				return err
			}
			fmt.Printf("Predicted next-day close: %.4f\n", preds[0])
			return nil
		},
	}
	cmd.Flags().Float64Var(&open, "open", 0, "Open price")
	cmd.Flags().Float64Var(&high, "high", 0, "High price")
	cmd.Flags().Float64Var(&low, "low", 0, "Low price")
	cmd.Flags().Float64Var(&volume, "volume", 0, "Traded volume")
	for _, name := range []string{"open", "high", "low", "volume"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("QuoteHarvest " + version)
		},
	}
}
