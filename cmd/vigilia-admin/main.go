package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/vigilia-api/internal/dto"
	"github.com/noah-isme/vigilia-api/internal/models"
	"github.com/noah-isme/vigilia-api/internal/repository"
	"github.com/noah-isme/vigilia-api/internal/service"
	"github.com/noah-isme/vigilia-api/pkg/config"
	"github.com/noah-isme/vigilia-api/pkg/database"
	"github.com/noah-isme/vigilia-api/pkg/logger"
	"github.com/noah-isme/vigilia-api/pkg/storage"
)

const programName = "vigilia-admin"

// app holds what every subcommand needs. The database is opened lazily.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
}

func (a *app) database(ctx context.Context) (*sqlx.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := database.Open(ctx, a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.db = db
	return db, nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.logger.Sync()
}

func migrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.database(cmd.Context())
			if err != nil {
				return err
			}
			applied, err := database.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			a.logger.Info("migrations applied", zap.Strings("files", applied))
			fmt.Fprintf(cmd.OutOrStdout(), "%d migration(s) applied\n", len(applied))
			return nil
		},
	}
}

func createUserCommand(a *app) *cobra.Command {
	var req models.RegisterRequest
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.database(cmd.Context())
			if err != nil {
				return err
			}
			if req.Password == "" {
				req.Password = os.Getenv("VIGILIA_ADMIN_PASSWORD")
			}
			svc := service.NewAuthService(repository.NewUserRepository(db), repository.NewAuditRepository(db), service.NewValidator(), a.logger, nil, service.AuthConfig{
				Secret:     a.cfg.Session.Secret,
				SessionTTL: a.cfg.Session.TTL,
				Issuer:     "vigilia-api",
			})
			req.UserAgent = programName
			res, err := svc.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", res.User.ID, res.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Password, "password", "", "password, defaults to $VIGILIA_ADMIN_PASSWORD")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func createSectionCommand(a *app) *cobra.Command {
	var req dto.SectionRequest
	cmd := &cobra.Command{
		Use:   "create-section",
		Short: "Create a section",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.database(cmd.Context())
			if err != nil {
				return err
			}
			svc := service.NewSectionService(repository.NewSectionRepository(db), nil, service.NewValidator(), a.logger, 0)
			section, err := svc.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created section %s (%s, turn %d)\n", section.ID, section.Name, section.TurnNumber)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "section name")
	cmd.Flags().StringVar(&req.Parish, "parish", "", "parish")
	cmd.Flags().IntVar(&req.TurnNumber, "turn", 0, "turn number")
	cmd.Flags().StringVar(&req.Patron, "patron", "", "patron saint")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("parish")
	_ = cmd.MarkFlagRequired("turn")
	return cmd
}

func cleanupExportsCommand(a *app) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup-exports",
		Short: "Delete rendered exports older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.NewLocalStorage(a.cfg.Exports.StorageDir)
			if err != nil {
				return err
			}
			svc := service.NewExportService(nil, nil, nil, store, nil, service.ExportConfig{RetainFor: a.cfg.Exports.RetainFor}, a.logger, nil, nil, nil)
			deleted, err := svc.Cleanup(olderThan)
			if err != nil {
				return err
			}
			for _, path := range deleted {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age threshold, defaults to EXPORTS_RETAIN_FOR")
	return cmd
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           programName,
		Short:         "Administrative tasks for the Adoración Nocturna API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		migrateCommand(a),
		createUserCommand(a),
		createSectionCommand(a),
		cleanupExportsCommand(a),
	)
	return root
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	a := &app{cfg: cfg, logger: logr.With(zap.String("component", programName))}
	err = newRootCommand(a).ExecuteContext(context.Background())
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
