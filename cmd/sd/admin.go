package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"shiftdesk/internal/admin"
	"shiftdesk/internal/app"
	"shiftdesk/internal/db"
	"shiftdesk/internal/domain"
	"shiftdesk/internal/engine"
	"shiftdesk/internal/migrate"
	"shiftdesk/internal/repo"
	"shiftdesk/internal/server"
)

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "admin", Short: "Export and clear reports (admin)"}
	export := &cobra.Command{
		Use:   "export PATH",
		Short: "Download every report; .xlsx paths are converted to a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if err := requireRole(s, string(domain.RoleAdmin)); err != nil {
					return err
				}
				res, err := s.Admin.Export(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	var yes bool
	clear := &cobra.Command{
		Use:   "clear",
		Short: "Delete every report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if err := requireRole(s, string(domain.RoleAdmin)); err != nil {
					return err
				}
				err := s.Admin.Clear(ctx, admin.ConfirmFunc(func(prompt string) bool {
					if yes {
						return true
					}
					return askYesNo(prompt)
				}))
				if errors.Is(err, admin.ErrCancelled) {
					fmt.Println("cancelled")
					return nil
				}
				return err
			})
		},
	}
	clear.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.AddCommand(export, clear)
	return cmd
}

func askYesNo(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "ya":
		return true
	}
	return false
}

// openEngine opens the workspace store, brings its schema up to date and
// reports the steps it applied.
func openEngine(ctx context.Context, workspace string) (engine.Engine, []string, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return engine.Engine{}, nil, nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return engine.Engine{}, nil, nil, err
	}
	applied, err := migrate.Apply(ctx, conn)
	if err != nil {
		conn.Close()
		return engine.Engine{}, nil, nil, err
	}
	return engine.New(conn, cfg), applied, func() { conn.Close() }, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func serveCmd() *cobra.Command {
	var addr, token string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the reference report backend on the workspace database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			e, applied, closeDB, err := openEngine(ctx, viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer closeDB()
			if addr == "" {
				addr = e.Config.Devserver.Addr
			}
			if token == "" {
				token = e.Config.Devserver.CSRFToken
			}
			if token == "" {
				return fmt.Errorf("a CSRF token is required (--token or devserver.csrf_token)")
			}
			logger, err := newLogger(e.Config)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if len(applied) > 0 {
				logger.Info("schema migrated", zap.Strings("applied", applied))
			}
			handler, err := server.New(server.Config{Engine: e, Auth: server.AuthConfig{CSRFToken: token}, Logger: logger})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			fmt.Printf("Serving Shiftdesk API on http://%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default devserver.addr)")
	cmd.Flags().StringVar(&token, "token", "", "CSRF token (default devserver.csrf_token)")
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Event log of the workspace backend"}
	var n int
	var evtType, entityKind, entityID string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace"), ReadOnly: true})
			if err != nil {
				return err
			}
			defer conn.Close()
			r := repo.Repo{DB: conn}
			events, err := r.LatestEvents(cmdContext(cmd), n, 0, evtType, entityKind, entityID)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(events)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
			for _, ev := range events {
				tw.AppendRow(table.Row{ev.ID, ev.TS, ev.Type, ev.EntityKind + " " + ev.EntityID, ev.ActorID})
			}
			tw.Render()
			return nil
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().StringVar(&evtType, "type", "", "event type filter")
	tail.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	tail.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	cmd.AddCommand(tail)
	return cmd
}

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "db", Short: "Workspace report store"}
	status := &cobra.Command{
		Use:   "status",
		Short: "Show the schema version and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			st, err := migrate.Status(cmdContext(cmd), conn)
			if err != nil {
				return err
			}
			return printJSONOrTable(st)
		},
	}
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, applied, closeDB, err := openEngine(cmdContext(cmd), viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer closeDB()
			fmt.Printf("applied %d migration(s)\n", len(applied))
			for _, name := range applied {
				fmt.Println(" ", name)
			}
			return nil
		},
	}
	cmd.AddCommand(status, migrateCmd)
	return cmd
}
