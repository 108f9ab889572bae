package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"deja/internal/domain/alerts"
	"deja/internal/ports/notify"
	"deja/internal/router"
)

func newAlertsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Alert operations",
	}
	cmd.AddCommand(newAlertsDispatchCommand())
	return cmd
}

func newAlertsDispatchCommand() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Compute current alerts and send them through each representative's channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			opts, cleanup, err := buildOptions(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			svc := router.NewServices(opts)

			var reports []alerts.Report
			if owner = strings.TrimSpace(owner); owner != "" {
				rep, err := svc.Dispatcher.Dispatch(ctx, owner)
				if err != nil {
					return err
				}
				reports = append(reports, rep)
			} else {
				reports, err = svc.Dispatcher.DispatchAll(ctx, svc.Medications, svc.Prescriptions, svc.Settings)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			skipped := 0
			for _, rep := range reports {
				if rep.Err != nil {
					skipped++
					fmt.Fprintf(out, "%s: error: %v\n", rep.OwnerUserID, rep.Err)
					continue
				}
				fmt.Fprintf(out, "%s: %d alerts, sent=%s", rep.OwnerUserID, rep.Alerts, joinChannels(rep.Sent))
				if len(rep.Failed) > 0 {
					failed := make([]string, 0, len(rep.Failed))
					for ch, ferr := range rep.Failed {
						failed = append(failed, fmt.Sprintf("%s(%v)", ch, ferr))
					}
					sort.Strings(failed)
					fmt.Fprintf(out, " failed=%s", strings.Join(failed, ","))
				}
				fmt.Fprintln(out)
			}
			if skipped > 0 {
				return fmt.Errorf("alert dispatch failed for %d of %d representatives", skipped, len(reports))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "dispatch only for this representative user id")
	return cmd
}

func joinChannels(chs []notify.Channel) string {
	if len(chs) == 0 {
		return "-"
	}
	out := make([]string, 0, len(chs))
	for _, c := range chs {
		out = append(out, string(c))
	}
	return strings.Join(out, ",")
}
