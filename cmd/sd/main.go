package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"shiftdesk/internal/app"
	"shiftdesk/internal/config"
	"shiftdesk/internal/feedback"
	"shiftdesk/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "sd",
	Short: "Shiftdesk CLI",
	Long: `Shiftdesk files and reviews shift reports.
- Foremen submit activity reports (one entry per component worked on) and analysis reports (one per section track).
- Leaders review pending reports per foreman and approve or reject them with feedback.
- Admins export every report to CSV or XLSX and can clear the report store.
- 'sd serve' runs a local reference backend on the workspace database.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

// initConfig loads <workspace>/.env first so viper sees its values through
// the environment.
func initConfig() {
	envFile := filepath.Join(viper.GetString("workspace"), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: %s: %v\n", envFile, err)
	}
	viper.SetEnvPrefix("SHIFTDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("base-url", "", "backend base URL (overrides config)")
	rootCmd.PersistentFlags().String("role", "", "page role: foreman, leader or admin")
	rootCmd.PersistentFlags().String("actor-id", "", "user id (overrides config session)")
	rootCmd.PersistentFlags().String("csrf-token", "", "anti-forgery token (overrides config session)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	for _, name := range []string{"workspace", "json", "base-url", "role", "actor-id", "csrf-token", "log-level"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(reportsCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(inboxCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(overviewCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(dbCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(settingsCmd())
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if u := viper.GetString("base-url"); u != "" {
		cfg.Server.BaseURL = u
	}
	if lvl := viper.GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.Log.Level, cfg.Log.Format, "sd")
}

// withSession builds the page session for the configured role, prints its
// notifications while fn runs and closes it afterwards.
func withSession(ctx context.Context, fn func(ctx context.Context, s *app.Session) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()
	pc, err := app.ResolvePageContext(cfg, app.Overrides{
		Role:      viper.GetString("role"),
		UserID:    viper.GetString("actor-id"),
		CSRFToken: viper.GetString("csrf-token"),
	})
	if err != nil {
		return err
	}
	s, err := app.NewSession(pc, app.Options{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer s.Close()
	unsubscribe := s.Feedback.Subscribe(printNotification)
	defer unsubscribe()
	if ctx == nil {
		ctx = context.Background()
	}
	return s.Dispatch(rootName(), func() error { return fn(ctx, s) })
}

func rootName() string {
	if len(os.Args) > 1 {
		return strings.Join(os.Args[1:], " ")
	}
	return rootCmd.Use
}

func printNotification(n feedback.Notification, visible bool) {
	if !visible {
		return
	}
	if n.Kind == feedback.KindError {
		fmt.Fprintln(os.Stderr, text.FgRed.Sprint("✗ "+n.Text))
		return
	}
	fmt.Fprintln(os.Stderr, text.FgGreen.Sprint("✓ "+n.Text))
}

func requireRole(s *app.Session, want string) error {
	if string(s.Context().Role) != want {
		return fmt.Errorf("this command needs the %s role (session role is %s; use --role)", want, s.Context().Role)
	}
	return nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("render output: %w", err)
	}
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage shiftdesk.yml"}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show who the session acts as",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				defer s.Profile.Close()
				return printJSONOrTable(s.ShowProfile())
			})
		},
	}
}

func settingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Show the effective client settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				defer s.Settings.Close()
				return printJSONOrTable(s.ShowSettings())
			})
		},
	}
}
