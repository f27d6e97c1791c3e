package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"shiftdesk/internal/app"
	"shiftdesk/internal/domain"
	"shiftdesk/internal/editor"
	"shiftdesk/internal/foreman"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Submit reports (foreman)"}
	cmd.AddCommand(reportActivityCmd(), reportAnalysisCmd())
	return cmd
}

// parseEntry reads "component|activities|sc|usc|acd"; missing counters are 0.
func parseEntry(raw string, b *editor.Block) error {
	parts := strings.Split(raw, "|")
	if len(parts) < 2 || len(parts) > 5 {
		return fmt.Errorf("entry %q: want component|activities[|sc|usc|acd]", raw)
	}
	b.Component = strings.TrimSpace(parts[0])
	b.Activities = strings.TrimSpace(parts[1])
	counters := []*int{&b.SC, &b.USC, &b.ACD}
	for i, p := range parts[2:] {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return fmt.Errorf("entry %q: counter %q must be a non-negative integer", raw, p)
		}
		*counters[i] = n
	}
	return nil
}

func reportActivityCmd() *cobra.Command {
	var date, shift, unit string
	var entries []string
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Submit an activity report",
		Example: `  sd report activity --shift 1 --entry "1000|Ganti filter oli|1" --entry "7000|Cek wiring||1"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if err := requireRole(s, string(domain.RoleForeman)); err != nil {
					return err
				}
				h := s.Foreman
				h.OpenActivity()
				hdr := h.ActivityHeader()
				if date != "" {
					hdr.Date = date
				}
				hdr.Shift = shift
				hdr.UnitCode = unit
				h.SetActivityHeader(hdr)
				blocks := h.Entries()
				for _, raw := range entries {
					err := blocks.Update(blocks.Add().Index(), func(b *editor.Block) error {
						return parseEntry(raw, b)
					})
					if err != nil {
						return err
					}
				}
				return h.SubmitActivity(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "report date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&shift, "shift", "", "shift number")
	cmd.Flags().StringVar(&unit, "unit", "", "unit code")
	cmd.Flags().StringArrayVar(&entries, "entry", nil, "activity entry component|activities|sc|usc|acd (repeatable)")
	_ = cmd.MarkFlagRequired("entry")
	return cmd
}

func reportAnalysisCmd() *cobra.Command {
	var form foreman.AnalysisForm
	var track string
	cmd := &cobra.Command{
		Use:   "analysis",
		Short: "Submit an analysis report for one section track",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if err := requireRole(s, string(domain.RoleForeman)); err != nil {
					return err
				}
				h := s.Foreman
				h.OpenAnalysis()
				if err := h.SelectTrack(track); err != nil {
					return err
				}
				if form.Date == "" {
					form.Date = h.Analysis().Date
				}
				h.SetAnalysis(form)
				return h.SubmitAnalysis(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&track, "track", "", "section track, e.g. PC1250")
	cmd.Flags().StringVar(&form.Date, "date", "", "report date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&form.UnitCode, "unit", "", "unit code")
	cmd.Flags().StringVar(&form.Problem, "problem", "", "problem")
	cmd.Flags().StringVar(&form.Title, "title", "", "title")
	cmd.Flags().StringVar(&form.Details, "details", "", "details")
	_ = cmd.MarkFlagRequired("track")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func inboxCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "inbox", Short: "Foreman notifications"}
	list := &cobra.Command{
		Use:   "list",
		Short: "Show unread count and latest notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if err := requireRole(s, string(domain.RoleForeman)); err != nil {
					return err
				}
				inbox, err := s.Foreman.LoadInbox(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(inbox)
				}
				tw := newTable()
				tw.SetTitle(fmt.Sprintf("%d unread", inbox.UnreadCount))
				tw.AppendHeader(table.Row{"ID", "", "Title", "Message", "Created"})
				for _, n := range inbox.Notifications {
					mark := "•"
					if n.IsRead {
						mark = ""
					}
					tw.AppendRow(table.Row{n.ID, mark, n.Title, n.Message, n.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	read := &cobra.Command{
		Use:   "read ID",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid notification id %q", args[0])
			}
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if err := requireRole(s, string(domain.RoleForeman)); err != nil {
					return err
				}
				if err := s.Foreman.MarkRead(ctx, id); err != nil {
					return err
				}
				inbox, _ := s.Foreman.Inbox()
				fmt.Printf("%d unread\n", inbox.UnreadCount)
				return nil
			})
		},
	}
	cmd.AddCommand(list, read)
	return cmd
}
