package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"shiftdesk/internal/app"
	"shiftdesk/internal/domain"
	"shiftdesk/internal/review"
	shiftdesksdk "shiftdesk/sdk/go"
)

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "reports", Short: "List, inspect and validate reports"}
	cmd.AddCommand(reportsListCmd(), reportsShowCmd(), reportsDecideCmd(domain.ActionApprove), reportsDecideCmd(domain.ActionReject))
	return cmd
}

func reportsListCmd() *cobra.Command {
	var foremanID, typ, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				items, err := s.API().ListReports(ctx, shiftdesksdk.Filter{
					ForemanID: foremanID,
					Type:      domain.ReportType(typ),
					Status:    domain.ReportStatus(status),
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				labels := s.Config().Labels
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", labels.Date, "Type", labels.Foreman, "Title", "Status"})
				for _, r := range items {
					tw.AppendRow(table.Row{r.ID, r.Date, labels.TypeLabel(r.Type), r.Foreman, review.Preview(r.Title, 60), r.StatusDisplay})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&foremanID, "foreman", "", "foreman id")
	cmd.Flags().StringVar(&typ, "type", "", "activity or analysis")
	cmd.Flags().StringVar(&status, "status", "", "pending, approved or rejected")
	return cmd
}

func reportsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				rp, err := s.API().GetReport(ctx, domain.ReportID(args[0]))
				if err != nil {
					return err
				}
				if viper.GetBool("json") || len(rp.Entries) == 0 {
					return printJSONOrTable(rp)
				}
				fmt.Printf("%s · %s · %s · %s\n", rp.Title, rp.Date, rp.Foreman, rp.StatusDisplay)
				tw := newTable()
				tw.AppendHeader(table.Row{"#", "Component", "Activities", "SC", "USC", "ACD"})
				for _, e := range rp.Entries {
					tw.AppendRow(table.Row{e.Index, e.Component, e.Activities, e.SC, e.USC, e.ACD})
				}
				tw.Render()
				return nil
			})
		},
	}
}

// reportsDecideCmd walks the review engine the way the page does: list the
// foreman's pending reports, open the one asked for, then decide.
func reportsDecideCmd(action domain.Action) *cobra.Command {
	var fb string
	cmd := &cobra.Command{
		Use:   string(action) + " ID",
		Short: strings.ToUpper(string(action[:1])) + string(action[1:]) + " a pending report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if err := requireRole(s, string(domain.RoleLeader)); err != nil {
					return err
				}
				id := domain.ReportID(args[0])
				rp, err := s.API().GetReport(ctx, id)
				if err != nil {
					return err
				}
				eng := s.Review
				if err := eng.ViewReports(ctx, review.Target{ForemanID: rp.ForemanID, ForemanName: rp.Foreman, Type: rp.Type}); err != nil {
					return err
				}
				if err := eng.OpenDetail(ctx, id); err != nil {
					return err
				}
				eng.SetFeedback(fb)
				return eng.Decide(ctx, action)
			})
		},
	}
	cmd.Flags().StringVar(&fb, "feedback", "", "feedback for the foreman")
	return cmd
}

func overviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Show what the page shows outside dialogs for the session role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if err := s.Refresh(ctx); err != nil {
					return err
				}
				ov := s.Overview()
				if viper.GetBool("json") {
					return printJSON(ov)
				}
				tw := newTable()
				switch s.Context().Role {
				case domain.RoleLeader:
					tw.AppendHeader(table.Row{"Foreman", "Pending"})
					for _, p := range s.Context().Foremen() {
						tw.AppendRow(table.Row{p.Name, ov.Pending[p.ID]})
					}
				case domain.RoleAdmin:
					tw.AppendHeader(table.Row{"Status", "Reports"})
					for _, st := range []domain.ReportStatus{domain.StatusPending, domain.StatusApproved, domain.StatusRejected} {
						tw.AppendRow(table.Row{st.Display(), ov.Totals[st]})
					}
				default:
					tw.AppendHeader(table.Row{"Unread notifications"})
					tw.AppendRow(table.Row{ov.Unread})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func reviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Interactive review session (leader)",
		Long: `Commands:
  foremen                      pending counts per foreman
  view FOREMAN [activity|analysis]
  open ID                      open the decision dialog of a listed report
  feedback TEXT                set the feedback text
  approve | reject             decide on the open report
  close                        close every dialog
  quit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if err := requireRole(s, string(domain.RoleLeader)); err != nil {
					return err
				}
				return runReview(ctx, s, os.Stdin, os.Stdout)
			})
		},
	}
}

func runReview(ctx context.Context, s *app.Session, in io.Reader, out io.Writer) error {
	eng := s.Review
	scanner := bufio.NewScanner(in)
	prompt := func() { fmt.Fprintf(out, "[%s]> ", eng.State()) }
	prompt()
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			prompt()
			continue
		}
		var err error
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "foremen":
			if err = s.Refresh(ctx); err == nil {
				ov := s.Overview()
				for _, p := range s.Context().Foremen() {
					fmt.Fprintf(out, "%-6s %-20s %d pending\n", p.ID, p.Name, ov.Pending[p.ID])
				}
			}
		case "view":
			err = reviewView(ctx, s, fields[1:])
			if err == nil {
				fmt.Fprintln(out, eng.ListingTable())
			}
		case "open":
			if len(fields) != 2 {
				err = errors.New("usage: open ID")
				break
			}
			if err = eng.OpenDetail(ctx, domain.ReportID(fields[1])); err == nil {
				fmt.Fprint(out, eng.SummaryText())
			}
		case "feedback":
			eng.SetFeedback(strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "feedback")))
		case "approve", "reject":
			err = eng.Decide(ctx, domain.Action(fields[0]))
		case "close":
			eng.DecisionDialog().Close()
			eng.ListingDialog().Close()
		default:
			err = fmt.Errorf("unknown command %q", fields[0])
		}
		if err != nil {
			fmt.Fprintln(out, "error:", err)
		}
		prompt()
	}
	return scanner.Err()
}

func reviewView(ctx context.Context, s *app.Session, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: view FOREMAN [activity|analysis]")
	}
	target := review.Target{ForemanID: args[0], ForemanName: args[0], Type: domain.ReportActivity}
	for _, p := range s.Context().Roster {
		if p.ID == args[0] {
			target.ForemanName = p.Name
		}
	}
	if len(args) > 1 {
		target.Type = domain.ReportType(args[1])
		if !target.Type.Valid() {
			return fmt.Errorf("unknown report type %q", args[1])
		}
	}
	return s.Review.ViewReports(ctx, target)
}
