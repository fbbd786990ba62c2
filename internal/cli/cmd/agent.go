package cmd

import (
	"fmt"

	"clusterdash/internal/agent"

	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the reporting agent on a GPU machine",
}

var agentRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect and post machine data until stopped",
	Run: func(cmd *cobra.Command, args []string) {
		handleAgentRun()
	},
}

var agentAutostartCmd = &cobra.Command{
	Use:       "autostart [enable|disable|status]",
	Short:     "Manage starting the agent at login",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"enable", "disable", "status"},
	Run: func(cmd *cobra.Command, args []string) {
		handleAutostart(args[0])
	},
}

func init() {
	agentCmd.AddCommand(agentRunCmd, agentAutostartCmd)
	RootCmd.AddCommand(agentCmd)
}

func handleAgentRun() {
	cfg := Container.Config.Agent
	collector := agent.NewSystemCollector(cfg.Hostname, agent.NewNVMLReader())

	ctx, stop := signalContext()
	defer stop()

	if err := agent.New(collector, Container.Client, cfg).Run(ctx); err != nil {
		fatalf("Agent stopped: %v", err)
	}
}

func handleAutostart(action string) {
	switch action {
	case "enable":
		if err := agent.EnableAutostart(ConfigDir); err != nil {
			fatalf("%v", err)
		}
		fmt.Println("Agent will start at login.")
	case "disable":
		if err := agent.DisableAutostart(); err != nil {
			fatalf("%v", err)
		}
		fmt.Println("Agent autostart disabled.")
	case "status":
		if agent.AutostartEnabled() {
			fmt.Println("Agent autostart is enabled.")
		} else {
			fmt.Println("Agent autostart is disabled.")
		}
	default:
		fatalf("Unknown action %q (want enable, disable or status)", action)
	}
}
