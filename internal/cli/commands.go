package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"tablequeue/waitlist-service/internal/demand"
	"tablequeue/waitlist-service/internal/models"
	"tablequeue/waitlist-service/internal/turnover"
	"tablequeue/waitlist-service/internal/waitlist"

	"github.com/spf13/cobra"
)

func newQueueCmd(open Opener) *cobra.Command {
	var restaurantID string
	var statuses []string
	c := &cobra.Command{
		Use:   "queue",
		Short: "List waitlist entries in queue order",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make([]models.EntryStatus, 0, len(statuses))
			for _, status := range statuses {
				filter = append(filter, models.EntryStatus(status))
			}
			return run(cmd, open, func(ctx context.Context, svc *waitlist.Service) error {
				entries, err := svc.ListEntries(ctx, restaurantID, filter...)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	}
	requireRestaurant(c, &restaurantID)
	c.Flags().StringSliceVar(&statuses, "status", nil, "only entries in these statuses")
	return c
}

func newExpireCmd(open Opener) *cobra.Command {
	var restaurantID string
	var grace int
	c := &cobra.Command{
		Use:   "expire",
		Short: "Cancel remote entries that never arrived",
		Long:  "Cancels remote_pending entries whose expected arrival plus the grace period has passed. Without --restaurant every restaurant with pending remote entries is swept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, svc *waitlist.Service) error {
				if restaurantID == "" {
					count, err := svc.ExpireAll(ctx, grace)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "expired %d entries\n", count)
					return nil
				}
				expired, err := svc.ExpireStaleRemoteEntries(ctx, restaurantID, grace)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "expired %d entries\n", len(expired))
				return nil
			})
		},
	}
	c.Flags().StringVar(&restaurantID, "restaurant", "", "restaurant id (all restaurants when empty)")
	c.Flags().IntVar(&grace, "grace", waitlist.DefaultGraceMinutes, "minutes after expected arrival before an entry expires")
	return c
}

func newTablesCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Table inventory",
	}
	cmd.AddCommand(newTablesListCmd(open))
	cmd.AddCommand(newTablesSaveCmd(open))
	return cmd
}

func newTablesListCmd(open Opener) *cobra.Command {
	var restaurantID string
	var activeOnly bool
	c := &cobra.Command{
		Use:   "list",
		Short: "List table types",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, svc *waitlist.Service) error {
				tables, err := svc.ListTableTypes(ctx, restaurantID, activeOnly)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tables)
			})
		},
	}
	requireRestaurant(c, &restaurantID)
	c.Flags().BoolVar(&activeOnly, "active", false, "only active table types")
	return c
}

func newTablesSaveCmd(open Opener) *cobra.Command {
	var table models.TableType
	var inactive bool
	c := &cobra.Command{
		Use:   "save",
		Short: "Create or update a table type",
		RunE: func(cmd *cobra.Command, args []string) error {
			table.Active = !inactive
			return run(cmd, open, func(ctx context.Context, svc *waitlist.Service) error {
				saved, err := svc.SaveTableType(ctx, table)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), saved)
			})
		},
	}
	requireRestaurant(c, &table.RestaurantID)
	c.Flags().StringVar(&table.TableTypeID, "id", "", "existing table type id to update")
	c.Flags().StringVar(&table.Name, "name", "", "display name")
	c.Flags().IntVar(&table.Capacity, "capacity", 0, "seats per table")
	c.Flags().IntVar(&table.Count, "count", 0, "number of tables")
	c.Flags().IntVar(&table.TurnoverMinutes, "turnover", 0, "estimated turnover minutes")
	c.Flags().BoolVar(&inactive, "inactive", false, "save the table type as inactive")
	return c
}

func newTurnoverCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "turnover",
		Short: "Compare configured and observed turnover times",
	}
	cmd.AddCommand(newTurnoverAnalyzeCmd(open))
	cmd.AddCommand(newTurnoverApplyCmd(open))
	return cmd
}

func newTurnoverAnalyzeCmd(open Opener) *cobra.Command {
	var restaurantID string
	c := &cobra.Command{
		Use:   "analyze",
		Short: "Show turnover analysis per table type",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, svc *waitlist.Service) error {
				analyses, err := svc.AnalyzeTurnover(ctx, restaurantID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), analyses)
			})
		},
	}
	requireRestaurant(c, &restaurantID)
	return c
}

func newTurnoverApplyCmd(open Opener) *cobra.Command {
	var restaurantID, minConfidence string
	c := &cobra.Command{
		Use:   "apply",
		Short: "Write suggested turnover times back to the inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			confidence := turnover.Confidence(minConfidence)
			switch confidence {
			case turnover.ConfidenceLow, turnover.ConfidenceMedium, turnover.ConfidenceHigh:
			default:
				return fmt.Errorf("--min-confidence must be low, medium, or high")
			}
			return run(cmd, open, func(ctx context.Context, svc *waitlist.Service) error {
				applied, err := svc.ApplyTurnoverRecommendations(ctx, restaurantID, confidence)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), applied)
			})
		},
	}
	requireRestaurant(c, &restaurantID)
	c.Flags().StringVar(&minConfidence, "min-confidence", string(turnover.ConfidenceMedium), "lowest confidence to apply")
	return c
}

func newDemandCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demand",
		Short: "Demand history and predictions",
	}
	cmd.AddCommand(newDemandPredictCmd(open))
	cmd.AddCommand(newDemandImportCmd(open))
	return cmd
}

func newDemandPredictCmd(open Opener) *cobra.Command {
	var restaurantID string
	var weather float64
	var events []string
	c := &cobra.Command{
		Use:   "predict",
		Short: "Predict demand and capacity for the coming hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			special := make([]demand.SpecialEvent, 0, len(events))
			for _, name := range events {
				special = append(special, demand.SpecialEvent{Name: name})
			}
			return run(cmd, open, func(ctx context.Context, svc *waitlist.Service) error {
				analysis, err := svc.AnalyzeWaitlist(ctx, restaurantID, weather, special)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), analysis)
			})
		},
	}
	requireRestaurant(c, &restaurantID)
	c.Flags().Float64Var(&weather, "weather", 1.0, "weather multiplier applied to predicted waits")
	c.Flags().StringSliceVar(&events, "event", nil, "special event names active for the whole window")
	return c
}

func newDemandImportCmd(open Opener) *cobra.Command {
	var restaurantID, path string
	c := &cobra.Command{
		Use:   "import",
		Short: "Import aggregated demand samples from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			var samples []models.DemandSample
			if err := json.Unmarshal(data, &samples); err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			return run(cmd, open, func(ctx context.Context, svc *waitlist.Service) error {
				if err := svc.ImportDemandSamples(ctx, restaurantID, samples); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d samples\n", len(samples))
				return nil
			})
		},
	}
	requireRestaurant(c, &restaurantID)
	c.Flags().StringVar(&path, "file", "", "JSON array of demand samples")
	_ = c.MarkFlagRequired("file")
	return c
}
