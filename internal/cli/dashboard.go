package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository"
	"ledger-service/internal/service"
)

func NewDashboardCommand(rootOpts *RootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print transaction totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("invalid format %q: must be table or json", format)
			}

			cfg, logger := rootOpts.Config, rootOpts.Logger
			db, err := repository.Open(cmd.Context(), cfg.GetDBConnectionString(), repository.PoolSettings{
				MaxOpenConns:    1,
				MaxIdleConns:    1,
				ConnMaxLifetime: time.Minute,
			})
			if err != nil {
				return err
			}
			defer db.Close()

			svc := service.NewDashboardService(repository.NewStore(db, logger), nil, logger)
			d, err := svc.Dashboard(cmd.Context())
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			}
			renderDashboard(cmd.OutOrStdout(), d)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format (table|json)")
	return cmd
}

func renderDashboard(w io.Writer, d domain.Dashboard) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.Append([]string{"Total transactions", strconv.FormatInt(d.TotalTransactions, 10)})
	table.Append([]string{"Total amount", d.TotalAmount.StringFixed(2)})
	table.Append([]string{"Deposits", strconv.FormatInt(d.DepositCount, 10)})
	table.Append([]string{"Withdrawals", strconv.FormatInt(d.WithdrawalCount, 10)})
	table.Render()
}
