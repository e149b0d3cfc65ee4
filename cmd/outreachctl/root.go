package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/unclebandit/outreach-engine/internal/app"
	"github.com/unclebandit/outreach-engine/internal/config"
	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/logging"
	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/service"
)

var (
	output  string
	verbose bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "outreachctl",
		Short:         "Operate the outreach engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "output format: json|text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newFollowupCmd())
	rootCmd.AddCommand(newAnalyticsCmd())
	rootCmd.AddCommand(newAgentStatusCmd())
	rootCmd.AddCommand(newCampaignCmd())

	return rootCmd
}

// withApp builds the application graph for one command and tears it down afterwards.
func withApp(cmd *cobra.Command, migrate bool, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := "warn"
	if verbose {
		level = "debug"
	}
	cfg := config.Load(nil)
	log := logging.NewLoggerWithService("outreachctl", level, "development")

	a, err := app.New(ctx, cfg, log, nil, migrate)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Apply migrations and seed the default message templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app.App) error {
				n, err := a.TemplateService.SeedDefaults(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Database initialized (%d default templates added)\n", n)
				return nil
			})
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app.App) error {
				fmt.Fprintln(cmd.OutOrStdout(), "✅ Schema is up to date")
				return nil
			})
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch the automation agent's results and reconcile them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				res, err := a.Outreach.Sync(ctx)
				if err != nil {
					return err
				}
				return printBatch(cmd.OutOrStdout(), "Synced", res)
			})
		},
	}
}

func newFollowupCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "followup",
		Short: "Run one follow-up pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				if dryRun {
					contacts, err := a.Outreach.EligibleContacts(ctx)
					if err != nil {
						return err
					}
					return printContacts(cmd.OutOrStdout(), contacts)
				}
				res, err := a.Outreach.RunFollowups(ctx)
				if err != nil {
					return err
				}
				return printBatch(cmd.OutOrStdout(), "Followed up", res)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list eligible contacts without generating messages")
	return cmd
}

func newAnalyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Show the contact funnel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				stats, err := a.Outreach.Analytics(ctx)
				if err != nil {
					return err
				}
				return printAnalytics(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func newAgentStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent-status",
		Short: "Show the automation agent's raw status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				status, err := a.Agent.Status(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), status)
			})
		},
	}
}

func newCampaignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Manage campaigns",
	}
	cmd.AddCommand(newCampaignCreateCmd())
	cmd.AddCommand(newCampaignListCmd())
	cmd.AddCommand(newCampaignLaunchCmd())
	cmd.AddCommand(newCampaignStatusCmd("pause", model.CampaignPaused, "Pause a campaign so it cannot be launched"))
	cmd.AddCommand(newCampaignStatusCmd("resume", model.CampaignActive, "Mark a paused campaign active again"))
	cmd.AddCommand(newCampaignStatusCmd("complete", model.CampaignCompleted, "Mark a campaign completed"))
	return cmd
}

func newCampaignCreateCmd() *cobra.Command {
	var in service.CreateCampaignInput
	var variant string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(in.Name) == "" {
				return appErrors.Validation("--name is required")
			}
			in.Variant = model.Variant(variant)
			return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				c, err := a.CampaignService.CreateCampaign(ctx, in)
				if err != nil {
					return err
				}
				if output == "json" {
					return writeJSON(cmd.OutOrStdout(), c)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Created campaign %d (%s, %s)\n", c.ID, c.Name, c.Variant)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "campaign name")
	cmd.Flags().StringVar(&in.Description, "description", "", "campaign description")
	cmd.Flags().StringVar(&variant, "variant", string(model.VariantNetworking), "message variant")
	cmd.Flags().StringVar(&in.SpreadsheetURL, "spreadsheet", "", "spreadsheet of profiles for the agent")
	cmd.Flags().StringVar(&in.ConnectionTemplate, "template", "", "connection message template")
	return cmd
}

func newCampaignListCmd() *cobra.Command {
	var page, pageSize int
	var variant, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				campaigns, pagination, err := a.CampaignService.ListCampaigns(ctx, page, pageSize, variant, status)
				if err != nil {
					return err
				}
				if output == "json" {
					return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"data": campaigns, "pagination": pagination})
				}
				for _, c := range campaigns {
					fmt.Fprintf(cmd.OutOrStdout(), "%4d  %-30s  %-22s  %s\n", c.ID, c.Name, c.Variant, c.Status)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "page %d/%d, %d total\n", pagination["page"], pagination["total_pages"], pagination["total_count"])
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "campaigns per page")
	cmd.Flags().StringVar(&variant, "variant", "", "filter by variant")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}

func newCampaignLaunchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "launch <id>",
		Short: "Launch the automation agent for a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCampaignID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				res, err := a.CampaignService.LaunchCampaign(ctx, id)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newCampaignStatusCmd(use, status, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCampaignID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				c, err := a.CampaignService.SetCampaignStatus(ctx, id, status)
				if err != nil {
					return err
				}
				if output == "json" {
					return writeJSON(cmd.OutOrStdout(), c)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Campaign %d is now %s\n", c.ID, c.Status)
				return err
			})
		},
	}
}

func parseCampaignID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id < 1 {
		return 0, appErrors.Validation(fmt.Sprintf("invalid campaign id %q", arg))
	}
	return id, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printBatch(w io.Writer, verb string, res service.BatchResult) error {
	if output == "json" {
		return writeJSON(w, res)
	}
	_, err := fmt.Fprintf(w, "%s %d of %d\n", verb, res.Processed, res.Total)
	return err
}

func printContacts(w io.Writer, contacts []*model.Contact) error {
	if output == "json" {
		return writeJSON(w, contacts)
	}
	for _, c := range contacts {
		fmt.Fprintf(w, "%-50s  %-25s  attempts=%d\n", c.LinkedInURL, c.Name, c.FollowupAttempts)
	}
	_, err := fmt.Fprintf(w, "%d eligible\n", len(contacts))
	return err
}

func printAnalytics(w io.Writer, a *model.Analytics) error {
	if output == "json" {
		return writeJSON(w, a)
	}

	fmt.Fprintf(w, "Total contacts: %d\n", a.TotalContacts)

	statuses := make([]string, 0, len(a.StatusBreakdown))
	for st := range a.StatusBreakdown {
		statuses = append(statuses, st)
	}
	sort.Strings(statuses)
	fmt.Fprintln(w, "\nStatus breakdown:")
	for _, st := range statuses {
		fmt.Fprintf(w, "  %-30s %d\n", st, a.StatusBreakdown[st])
	}

	if len(a.VariantPerformance) > 0 {
		fmt.Fprintln(w, "\nVariant performance:")
		for _, v := range a.VariantPerformance {
			fmt.Fprintf(w, "  %-22s total=%d replied_connection=%d replied_followup=%d\n",
				v.Variant, v.Total, v.RepliedConnection, v.RepliedFollowup)
		}
	}

	if len(a.TopCompanies) > 0 {
		fmt.Fprintln(w, "\nTop companies:")
		for _, c := range a.TopCompanies {
			fmt.Fprintf(w, "  %-30s %d\n", c.Company, c.Count)
		}
	}
	return nil
}
