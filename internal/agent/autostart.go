package agent

import (
	"fmt"
	"os"

	"github.com/emersion/go-autostart"
)

const autostartName = "clusterdash-agent"

// AutostartApp is the login entry that runs `agent run` with the given
// config dir.
func AutostartApp(configDir string) (*autostart.App, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating executable: %w", err)
	}
	exec := []string{exe, "agent", "run"}
	if configDir != "" {
		exec = append(exec, "--config-dir", configDir)
	}
	return &autostart.App{
		Name:        autostartName,
		DisplayName: "clusterdash reporting agent",
		Exec:        exec,
	}, nil
}

func EnableAutostart(configDir string) error {
	app, err := AutostartApp(configDir)
	if err != nil {
		return err
	}
	if app.IsEnabled() {
		return nil
	}
	if err := app.Enable(); err != nil {
		return fmt.Errorf("enabling autostart: %w", err)
	}
	return nil
}

func DisableAutostart() error {
	app := &autostart.App{Name: autostartName}
	if !app.IsEnabled() {
		return nil
	}
	if err := app.Disable(); err != nil {
		return fmt.Errorf("disabling autostart: %w", err)
	}
	return nil
}

func AutostartEnabled() bool {
	return (&autostart.App{Name: autostartName}).IsEnabled()
}
