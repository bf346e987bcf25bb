package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"petsitter/internal/app"
	"petsitter/internal/config"
	"petsitter/internal/db"
	"petsitter/internal/domain"
	"petsitter/internal/engine"
	"petsitter/internal/events"
	"petsitter/internal/migrate"
	"petsitter/internal/repo"
	"petsitter/internal/server"
)

const jwtSecretEnv = "PETSITTER_JWT_SECRET"

var rootCmd = &cobra.Command{
	Use:   "petsitter",
	Short: "Pet sitting marketplace",
	Long: `Pet Owners post dog sitting jobs, Pet Sitters apply to them and owners
accept or reject the applications.
- Workspace: the .petsitter directory holding the SQLite database, next to
  petsitter.yml and an optional .env.
- Roles: PET_OWNER, PET_SITTER and ADMIN. Registration never grants ADMIN;
  use 'petsitter admin create'.
- Event log: every committed change, view with 'petsitter log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		envPath := filepath.Join(workspace, ".env")
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envPath, err)
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PETSITTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(jobCmd())
	rootCmd.AddCommand(logCmd())
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				secret := viper.GetString("jwt_secret")
				if secret == "" {
					return fmt.Errorf("%s is required for bearer auth; generate one with petsitter config secret", jwtSecretEnv)
				}
				logger := log.New(os.Stderr, "petsitter ", log.LstdFlags|log.LUTC)
				e.Logger = logger
				if url := e.Config.Events.AMQPURL; url != "" {
					pub := events.NewAMQPPublisher(url, e.Config.Events.Queue)
					defer pub.Close()
					e.Publisher = pub
				}
				addr := e.Config.Server.Addr
				if cmd.Flags().Changed("addr") {
					addr = viper.GetString("addr")
				}
				basePath := e.Config.Server.BasePath
				if cmd.Flags().Changed("base-path") {
					basePath = viper.GetString("base-path")
				}
				handler, err := server.New(server.Config{
					Engine:   e,
					BasePath: basePath,
					Auth: server.AuthConfig{
						JWTSecret: secret,
						Issuer:    e.Config.Auth.Issuer,
						TokenTTL:  e.Config.TokenTTL(),
						Logger:    logger,
					},
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving pet sitter API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:8080", "listen address (overrides server.addr)")
	cmd.Flags().String("base-path", "/v0", "API base path (overrides server.base_path)")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("base-path", cmd.Flags().Lookup("base-path"))
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				v, err := migrate.Version(r.DB)
				if err != nil {
					return err
				}
				return printJSONOrText(map[string]any{"schema_version": v}, fmt.Sprintf("schema version %d", v))
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage petsitter.yml and secrets",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configSecretCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default petsitter.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

// configSecretCmd stores a fresh signing secret in the workspace .env.
func configSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "secret",
		Short: "Generate " + jwtSecretEnv + " into the workspace .env",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(viper.GetString("workspace"), ".env")
			env, err := godotenv.Read(path)
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					return err
				}
				env = map[string]string{}
			}
			buf := make([]byte, 32)
			if _, err := rand.Read(buf); err != nil {
				return err
			}
			env[jwtSecretEnv] = hex.EncodeToString(buf)
			if err := godotenv.Write(env, path); err != nil {
				return err
			}
			fmt.Println("wrote", jwtSecretEnv, "to", path)
			return nil
		},
	}
}

func adminCmd() *cobra.Command {
	admin := &cobra.Command{Use: "admin", Short: "Manage administrators"}
	admin.AddCommand(adminCreateCmd())
	return admin
}

func adminCreateCmd() *cobra.Command {
	var email, fullName, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("PETSITTER_ADMIN_PASSWORD")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.BootstrapAdmin(ctx, email, fullName, password)
				if err != nil {
					return err
				}
				return printJSONOrText(u, fmt.Sprintf("created administrator %s (%s)", u.Email, u.ID))
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&fullName, "full-name", "Administrator", "display name")
	cmd.Flags().StringVar(&password, "password", "", "password (or PETSITTER_ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Inspect and remove users"}
	user.AddCommand(userListCmd())
	user.AddCommand(userDeleteCmd())
	return user
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				users, err := r.ListUsers(ctx, nil)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Email", "Full name", "Roles", "Created"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Email, u.FullName, u.Roles.String(), u.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func userDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user with their jobs and applications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RemoveUser(ctx, id); err != nil {
					return err
				}
				fmt.Println("deleted", id)
				return nil
			})
		},
	}
}

func jobCmd() *cobra.Command {
	job := &cobra.Command{Use: "job", Short: "Inspect jobs"}
	job.AddCommand(jobListCmd())
	return job
}

func jobListCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var ownerID *uuid.UUID
			if owner != "" {
				id, err := uuid.Parse(owner)
				if err != nil {
					return fmt.Errorf("invalid --owner %q: %w", owner, err)
				}
				ownerID = &id
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				jobs, err := r.ListJobs(ctx, nil, ownerID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(jobs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Owner", "Start", "End", "Activity", "Dog"})
				for _, j := range jobs {
					tw.AppendRow(table.Row{
						j.ID, j.OwnerID,
						j.StartTime.UTC().Format(domain.DateTimeLayout),
						j.EndTime.UTC().Format(domain.DateTimeLayout),
						j.Activity, j.Dog.Name,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "only jobs created by this user id")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every committed change to users, jobs and job applications.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, evt := range items {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + "/" + evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	ws, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws.Engine())
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	ws, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, repo.Repo{DB: ws.DB})
}

func printJSONOrText(v any, text string) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	fmt.Println(text)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
