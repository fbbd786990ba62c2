package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"clusterdash/internal/app"
	"clusterdash/internal/config"
	"clusterdash/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Container *app.Container
	ConfigDir string

	v         = viper.New()
	logCloser io.Closer
)

var RootCmd = &cobra.Command{
	Use:   "clusterdash",
	Short: "Live dashboard for a GPU cluster",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if ConfigDir == "" {
			dir, err := config.DefaultDir()
			if err != nil {
				return err
			}
			ConfigDir = dir
		}

		cfg, err := config.LoadConfig(v, ConfigDir)
		if err != nil {
			return err
		}
		if err := logging.Setup(cfg.LogLevel, os.Stderr); err != nil {
			return err
		}
		Container = app.NewContainer(cfg)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeAll()
	},
	Run: func(cmd *cobra.Command, args []string) {
		RunDashboard()
	},
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVar(&ConfigDir, "config-dir", "", "Directory holding config.json and the history database")
	flags.String("url", "http://localhost:8080", "URL of the cluster-dash server")
	flags.Duration("timeout", 0, "Request timeout (0 waits forever)")
	flags.Duration("interval", 30*time.Second, "Refresh interval")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	mustBind("server_url", "url")
	mustBind("timeout", "timeout")
	mustBind("refresh_interval", "interval")
	mustBind("log_level", "log-level")
}

func mustBind(key, flag string) {
	if err := v.BindPFlag(key, RootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// logToFile moves logging off the terminal while a TUI owns it.
func logToFile() {
	cfg := Container.Config
	closer, err := logging.SetupFile(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		logrus.Warnf("Could not open log file, logging to stderr: %v", err)
		return
	}
	logCloser = closer
}

func closeAll() {
	if Container != nil {
		if err := Container.Close(); err != nil {
			logrus.Warnf("closing: %v", err)
		}
	}
	if logCloser != nil {
		logCloser.Close()
	}
}

// fatalf closes open resources before exiting, which os.Exit would skip.
func fatalf(format string, args ...interface{}) {
	closeAll()
	logrus.Fatalf(format, args...)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
