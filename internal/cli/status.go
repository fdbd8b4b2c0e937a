package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/hass-bridge/internal/adminclient"
	"github.com/dwizi/hass-bridge/internal/config"
)

func newStatusCommand() *cobra.Command {
	var (
		apiURL  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show component health and catalog state of a running serve process",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				apiURL = adminclient.BaseURLForAddr(config.FromEnv().HTTPAddr)
			}
			client, err := adminclient.New(apiURL, timeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			snapshot, err := client.Heartbeat(cmd.Context())
			if err != nil {
				return fmt.Errorf("read heartbeat: %w", err)
			}
			fmt.Fprintf(out, "overall: %s\n", snapshot.Overall)
			for _, component := range snapshot.Components {
				line := fmt.Sprintf("  %-20s %-9s %s", component.Name, component.State, component.Message)
				if component.Error != "" {
					line += " (" + component.Error + ")"
				}
				fmt.Fprintln(out, line)
			}

			status, err := client.Catalog(cmd.Context())
			if err != nil {
				return fmt.Errorf("read catalog: %w", err)
			}
			fmt.Fprintf(out, "catalog: %d entities", status.Entities)
			if status.RefreshedAtUnix > 0 {
				fmt.Fprintf(out, ", refreshed %s", time.Unix(status.RefreshedAtUnix, 0).Local().Format(time.DateTime))
			}
			fmt.Fprintln(out)
			if last := status.LastRefresh; last != nil && last.Error != "" {
				fmt.Fprintf(out, "last %s refresh failed: %s\n", last.Trigger, last.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", "", "base url of the HTTP API (defaults to HASS_BRIDGE_HTTP_ADDR on loopback)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}
