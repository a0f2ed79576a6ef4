package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"teamops/internal/app"
	"teamops/internal/config"
	"teamops/internal/db"
	"teamops/internal/domain"
	"teamops/internal/engine"
	"teamops/internal/logging"
	"teamops/internal/repo"
	"teamops/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "teamops",
	Short: "TeamOps CLI",
	Long: `TeamOps is a small-team operations dashboard.
Core concepts:
- Workspace: a directory holding teamops.yml, an optional .env and the .teamops state directory (database, logs).
- Profiles: one per team member. Emails on the founder allow-list become founders, everyone else is team.
- Tasks: active -> submitted -> completed -> archived. Team members submit work for review; founders approve or return it.
- XP: approving a task credits its impact (small 5, medium 10, large 20) and levels follow the XP total.
- Messages: team broadcasts, direct messages and kudos, with per-kind unread tracking.
- Board: the filtered, bucketed view of tasks the acting profile is allowed to see.
- Event log: every change is recorded, view it with 'teamops log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return loadDotEnv(workspace)
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TEAMOPS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "acting profile id")
	rootCmd.PersistentFlags().String("email", "", "acting profile email (created on first use)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("email", rootCmd.PersistentFlags().Lookup("email"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(messageCmd())
	rootCmd.AddCommand(kudosCmd())
	rootCmd.AddCommand(accomplishCmd())
	rootCmd.AddCommand(companyCmd())
	rootCmd.AddCommand(clientCmd())
	rootCmd.AddCommand(productCmd())
	rootCmd.AddCommand(meetingCmd())
	rootCmd.AddCommand(sopCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Workspace configuration",
		Long:  "teamops.yml holds the team name, the founder allow-list, seeded companies, the accomplishment store and the optional document sync, photo and webhook integrations.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var team string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default teamops.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(team)), 0o644); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"path": path})
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&team, "team", "TeamOps", "team name")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate teamops.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = config.Path(viper.GetString("workspace"))
			}
			_, err := config.FromFile(file)
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "config file (defaults to the workspace teamops.yml)")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Everything that happened: task changes, approvals, messages, kudos and content edits.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var after int64
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.ListEvents(ctx, repo.EventQuery{AfterID: after, Type: evtType, EntityKind: entityKind, EntityID: entityID, Limit: n})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable("ID", "TS", "Type", "Entity", "Actor")
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + ":" + evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().Int64Var(&after, "after", 0, "only events after this id (oldest first)")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

// --- helpers ---

// openWorkspace opens the workspace with a file logger. The returned close
// func releases both the database and the log file.
func openWorkspace(ctx context.Context, mirror io.Writer) (*app.Workspace, func(), error) {
	workspace := viper.GetString("workspace")
	logger, logFile, err := logging.Open(workspace, "teamops ", mirror)
	if err != nil {
		return nil, nil, err
	}
	ws, err := app.Open(ctx, workspace, logger)
	if err != nil {
		logFile.Close()
		return nil, nil, err
	}
	return ws, func() {
		ws.Close()
		logFile.Close()
	}, nil
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	ws, closeFn, err := openWorkspace(ctx, nil)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, ws.Engine)
}

// withActor runs fn as the profile selected by --actor-id or --email.
func withActor(ctx context.Context, fn func(context.Context, engine.Engine, domain.Profile) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		actor, err := resolveActor(ctx, e)
		if err != nil {
			return err
		}
		return fn(ctx, e, actor)
	})
}

// withDashboard signs the acting profile into a session and runs fn against a
// started dashboard, so task mutations re-fetch the board the same way an
// interactive client does.
func withDashboard(ctx context.Context, fn func(context.Context, *app.Dashboard) error) error {
	ws, closeFn, err := openWorkspace(ctx, nil)
	if err != nil {
		return err
	}
	defer closeFn()
	actor, err := resolveActor(ctx, ws.Engine)
	if err != nil {
		return err
	}
	sessions := session.NewManager()
	defer sessions.Close()
	sessions.Set(session.Session{ProfileID: actor.ID, Email: actor.Email, Name: actor.DisplayName})
	d := app.NewDashboard(ws.Engine, sessions)
	d.Logger = ws.Engine.Logger
	if err := d.Start(ctx); err != nil {
		return err
	}
	defer d.Stop()
	return fn(ctx, d)
}

func resolveActor(ctx context.Context, e engine.Engine) (domain.Profile, error) {
	return app.ResolveActor(ctx, e, viper.GetString("actor-id"), viper.GetString("email"))
}

func loadDotEnv(workspace string) error {
	err := godotenv.Load(filepath.Join(workspace, ".env"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// setEnvValue records key=value in the workspace .env, keeping other entries.
func setEnvValue(workspace, key, value string) error {
	path := filepath.Join(workspace, ".env")
	values, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		values = map[string]string{}
	}
	values[key] = value
	return godotenv.Write(values, path)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(header))
	return tw
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// changedString returns a pointer to value only when the flag was set, so an
// explicit empty value can clear a field.
func changedString(cmd *cobra.Command, flag, value string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &value
}
