package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"clusterdash/internal/web"

	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	serveAddr string
	serveOpen bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the live dashboard as a local web page",
	Run: func(cmd *cobra.Command, args []string) {
		handleServe(serveAddr, serveOpen)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "Open the dashboard in a browser")
	RootCmd.AddCommand(serveCmd)
}

func handleServe(addr string, open bool) {
	if addr == "" {
		addr = Container.Config.ListenAddr
	}

	ctx, stop := signalContext()
	defer stop()

	if open {
		go func() {
			if err := browser.OpenURL(localURL(addr)); err != nil {
				logrus.Warnf("Could not open browser: %v", err)
			}
		}()
	}

	if err := web.NewServer(Container).Start(ctx, addr); err != nil {
		fatalf("Web server error: %v", err)
	}
}

// localURL turns a listen address into a URL a local browser can open.
func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
