package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/hass-bridge/internal/app"
	"github.com/dwizi/hass-bridge/internal/config"
	"github.com/dwizi/hass-bridge/internal/gateway"
	"github.com/dwizi/hass-bridge/internal/names"
	"github.com/dwizi/hass-bridge/internal/store"
)

const localOperator = "local-operator"

func openCore(logger *slog.Logger) (*app.Core, config.Config, error) {
	cfg := config.FromEnv()
	core, err := app.NewCore(cfg, logger)
	if err != nil {
		return nil, cfg, err
	}
	return core, cfg, nil
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newExecCommand(logger *slog.Logger) *cobra.Command {
	var (
		userID      string
		displayName string
		skipRefresh bool
	)
	cmd := &cobra.Command{
		Use:   "exec <text>",
		Short: "Run one chat line through the command gateway without Discord",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, cfg, err := openCore(logger)
			if err != nil {
				return err
			}
			defer core.Close()

			ctx, cancel := commandContext()
			defer cancel()

			text := strings.Join(args, " ")
			if !skipRefresh && gateway.Parse(text).Kind == gateway.KindSwitch {
				if err := core.RefreshCatalog(ctx, app.TriggerCLI); err != nil {
					logger.Warn("catalog refresh failed, resolving with an empty catalog", "error", err)
				}
			}
			if strings.TrimSpace(userID) == "" {
				userID = localOperator
				if len(cfg.AllowedUserIDs) > 0 {
					userID = cfg.AllowedUserIDs[0]
				}
			}
			out, err := core.Gateway.HandleMessage(ctx, gateway.MessageInput{
				Connector:   "cli",
				ExternalID:  "cli",
				FromUserID:  userID,
				DisplayName: displayName,
				Text:        text,
			})
			if err != nil {
				return err
			}
			if !out.Handled {
				fmt.Fprintln(cmd.OutOrStdout(), "(ignored: not a bridge command)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "as", "", "issuer user id (defaults to the first allowed user id)")
	cmd.Flags().StringVar(&displayName, "name", localOperator, "issuer display name sent to Home Assistant")
	cmd.Flags().BoolVar(&skipRefresh, "no-refresh", false, "skip the catalog refresh before switch commands")
	return cmd
}

func newResolveCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <phrase>",
		Short: "Refresh the entity catalog and show what a phrase resolves to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, _, err := openCore(logger)
			if err != nil {
				return err
			}
			defer core.Close()

			ctx, cancel := commandContext()
			defer cancel()
			if err := core.RefreshCatalog(ctx, app.TriggerCLI); err != nil {
				return err
			}

			phrases, err := names.ExpandNumericSuffix(strings.Join(args, " "))
			if err != nil {
				return err
			}
			for _, phrase := range phrases {
				phrase = strings.TrimSpace(phrase)
				if phrase == "" {
					continue
				}
				resolution := core.Resolver.ResolveTarget(phrase)
				switch {
				case len(resolution.EntityIDs) > 0:
					fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) -> %s\n", phrase, resolution.Source, strings.Join(resolution.EntityIDs, ", "))
				case len(resolution.Candidates) > 0:
					fmt.Fprintf(cmd.OutOrStdout(), "%s -> ambiguous:\n", phrase)
					for _, candidate := range resolution.Candidates {
						fmt.Fprintf(cmd.OutOrStdout(), "  %s (%s)\n", candidate.Label, candidate.ID)
					}
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s -> no match\n", phrase)
				}
			}
			return nil
		},
	}
}

func newHistoryCommand(logger *slog.Logger) *cobra.Command {
	var (
		limit      int
		failedOnly bool
		entityID   string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent outbound commands from the command log",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, _, err := openCore(logger)
			if err != nil {
				return err
			}
			defer core.Close()

			records, err := core.Store.ListCommandLog(cmd.Context(), store.ListCommandLogInput{
				EntityID:   entityID,
				FailedOnly: failedOnly,
				Limit:      limit,
			})
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no commands recorded")
				return nil
			}
			for _, record := range records {
				fmt.Fprintln(cmd.OutOrStdout(), formatRecord(record))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records to print")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "only show failed commands")
	cmd.Flags().StringVar(&entityID, "entity", "", "only show commands for this entity id")
	return cmd
}

func formatRecord(record store.CommandRecord) string {
	outcome := "ok"
	if !record.Succeeded {
		outcome = fmt.Sprintf("failed status=%d", record.Status)
		if record.Error != "" {
			outcome += " error=" + record.Error
		}
	}
	issuer := record.IssuerName
	if issuer == "" {
		issuer = record.IssuerID
	}
	return fmt.Sprintf("%s  %-8s %-28s %-20q by %s  %s",
		record.CreatedAt.Local().Format(time.DateTime),
		record.Command,
		record.EntityID,
		record.Phrase,
		issuer,
		outcome,
	)
}
