package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dirgate/dirgate/internal/config"
	"github.com/dirgate/dirgate/internal/daemon"
)

func init() { //nolint: gochecknoinits
	checkCmd.Flags().StringVar(&configPath, "config", "", "Path to the configuration directory")

	rootCmd.AddCommand(checkCmd)
}

// checkCmd probes every enabled directory server: connect plus service bind.
// Exit status is non-zero if any probe fails.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe all enabled directory servers (connect and bind)",
	PreRun: func(_ *cobra.Command, _ []string) {
		if cfg, err = config.ReadConfig(configPath); err != nil {
			panic(err)
		}
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		results, err := daemon.CheckServers(cmd.Context(), &cfg)
		if err != nil {
			return err
		}

		var failed bool

		for _, r := range results {
			status := "ok"
			if r.Err != nil {
				status = r.Err.Error()
				failed = true
			}

			cmd.Printf("%-30s %s\n", r.Name, status)
		}

		if failed {
			return fmt.Errorf("one or more directory servers failed the probe")
		}

		return nil
	},
}
