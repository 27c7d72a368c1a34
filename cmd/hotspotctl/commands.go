package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func dataCap(b int64) string {
	if b <= 0 {
		return "unlimited"
	}
	return humanize.IBytes(uint64(b))
}

var plansAll bool

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List the plan catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/v1/plans"
		if plansAll {
			path = "/api/v1/admin/plans"
		}
		var out list[plan]
		if err := client().do(cmd.Context(), http.MethodGet, path, nil, &out); err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tDURATION\tDATA\tPRICE\tACTIVE")
		for _, p := range out.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d %s\t%t\n", p.ID, p.Name,
				time.Duration(p.DurationSeconds)*time.Second, dataCap(p.DataCapBytes), p.Price, p.Currency, p.Active)
		}
		return w.Flush()
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show live hotspot figures",
	RunE: func(cmd *cobra.Command, args []string) error {
		var d dashboard
		if err := client().do(cmd.Context(), http.MethodGet, "/api/v1/admin/dashboard", nil, &d); err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Sessions   %s active, %s total, %s started today\n",
			humanize.Comma(d.Sessions.Active), humanize.Comma(d.Sessions.Total), humanize.Comma(d.Sessions.StartedToday))
		fmt.Fprintf(w, "Devices    %s today\n", humanize.Comma(d.Sessions.DevicesToday))
		fmt.Fprintf(w, "Data       %s today, %s total\n",
			humanize.IBytes(uint64(max(d.Data.TodayBytes, 0))), humanize.IBytes(uint64(max(d.Data.TotalBytes, 0))))
		fmt.Fprintf(w, "Vouchers   %d unused, %d used, %d expired\n", d.Vouchers.Unused, d.Vouchers.Used, d.Vouchers.Expired)
		fmt.Fprintf(w, "Revenue    %s %s today, %s this month, %s total\n", d.Revenue.Currency,
			humanize.Comma(d.Revenue.Today), humanize.Comma(d.Revenue.Month), humanize.Comma(d.Revenue.Total))
		fmt.Fprintf(w, "Uptime     %s\n", time.Duration(d.UptimeSeconds)*time.Second)
		return nil
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List operator alerts (expired vouchers, low stock, busy hotspot)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Alerts []alert `json:"alerts"`
		}
		if err := client().do(cmd.Context(), http.MethodGet, "/api/v1/admin/alerts", nil, &out); err != nil {
			return err
		}
		if len(out.Alerts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no alerts")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LEVEL\tTITLE\tMESSAGE")
		for _, a := range out.Alerts {
			fmt.Fprintf(w, "%s\t%s\t%s\n", a.Level, a.Title, a.Message)
		}
		return w.Flush()
	},
}

var vouchersCmd = &cobra.Command{
	Use:   "vouchers",
	Short: "Generate and inspect vouchers",
}

var (
	genPlan  string
	genCount int
	genDays  int
	genNotes string
)

var vouchersGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a batch of vouchers",
	Example: `  hotspotctl vouchers generate --plan 01HX... --count 20 --days 30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			BatchID string    `json:"batch_id"`
			Items   []voucher `json:"items"`
		}
		in := map[string]any{"plan_id": genPlan, "count": genCount, "expires_in_days": genDays, "notes": genNotes}
		if err := client().do(cmd.Context(), http.MethodPost, "/api/v1/admin/vouchers", in, &out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "batch %s: %d vouchers\n", out.BatchID, len(out.Items))
		for _, v := range out.Items {
			fmt.Fprintln(cmd.OutOrStdout(), v.Display)
		}
		return nil
	},
}

var listStatus string

var vouchersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List vouchers",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		if listStatus != "" {
			q.Set("status", listStatus)
		}
		var out list[voucher]
		if err := client().do(cmd.Context(), http.MethodGet, "/api/v1/admin/vouchers?"+q.Encode(), nil, &out); err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tSTATUS\tEXPIRES")
		for _, v := range out.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\n", v.Display, v.Status, humanize.Time(v.ExpiresAt))
		}
		return w.Flush()
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage access sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out list[session]
		if err := client().do(cmd.Context(), http.MethodGet, "/api/v1/admin/sessions?status=active", nil, &out); err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMAC\tORIGIN\tUSED\tENDS")
		for _, s := range out.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.MAC, s.Origin,
				humanize.IBytes(uint64(max(s.BytesIn+s.BytesOut, 0))), humanize.Time(s.Deadline))
		}
		return w.Flush()
	},
}

var extendReason string

var sessionsExtendCmd = &cobra.Command{
	Use:   "extend SESSION_ID SECONDS",
	Short: "Grant extra time to an active session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		secs, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || secs <= 0 {
			return fmt.Errorf("seconds must be a positive integer")
		}
		var s session
		in := map[string]any{"seconds": secs, "reason": extendReason}
		if err := client().do(cmd.Context(), http.MethodPost, "/api/v1/admin/sessions/"+url.PathEscape(args[0])+"/extend", in, &s); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session %s now ends %s\n", s.ID, s.Deadline.Local().Format(time.DateTime))
		return nil
	},
}

var terminateReason string

var sessionsTerminateCmd = &cobra.Command{
	Use:   "terminate SESSION_ID",
	Short: "End a session immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var s session
		in := map[string]string{"reason": terminateReason}
		if err := client().do(cmd.Context(), http.MethodPost, "/api/v1/admin/sessions/"+url.PathEscape(args[0])+"/terminate", in, &s); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session %s %s (%s)\n", s.ID, s.Status, s.EndReason)
		return nil
	},
}

func init() {
	plansCmd.Flags().BoolVar(&plansAll, "all", false, "include inactive plans (admin)")

	vouchersGenerateCmd.Flags().StringVar(&genPlan, "plan", "", "plan id")
	vouchersGenerateCmd.Flags().IntVar(&genCount, "count", 10, "number of vouchers")
	vouchersGenerateCmd.Flags().IntVar(&genDays, "days", 30, "days until unused vouchers expire")
	vouchersGenerateCmd.Flags().StringVar(&genNotes, "notes", "", "free-form batch notes")
	_ = vouchersGenerateCmd.MarkFlagRequired("plan")
	vouchersListCmd.Flags().StringVar(&listStatus, "status", "", "unused|used|expired")
	vouchersCmd.AddCommand(vouchersGenerateCmd, vouchersListCmd)

	sessionsExtendCmd.Flags().StringVar(&extendReason, "reason", "", "reason recorded with the extension")
	sessionsTerminateCmd.Flags().StringVar(&terminateReason, "reason", "admin", "reason recorded on the session")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsExtendCmd, sessionsTerminateCmd)
}
