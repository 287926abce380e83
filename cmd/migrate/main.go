package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/cafepos-backend/internal/auth"
	"github.com/angelmondragon/cafepos-backend/pkg/config"
	"github.com/angelmondragon/cafepos-backend/pkg/db"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
	"github.com/angelmondragon/cafepos-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate|seed-manager")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	email := flag.String("email", "", "manager email (for seed-manager)")
	staffName := flag.String("staff-name", "", "manager display name (for seed-manager)")
	password := flag.String("password", "", "manager password (for seed-manager)")

	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx = logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	// create and validate only touch the migrations directory.
	switch *cmd {
	case "create":
		if *name == "" {
			fmt.Fprintln(os.Stderr, "missing -name for create")
			os.Exit(1)
		}
		logg.Info(ctx, "migrate ready")
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create migration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		logg.Info(ctx, "migrate ready")
		if err := migrate.ValidateDir(*dir); err != nil {
			fmt.Fprintf(os.Stderr, "migration validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migration validation passed")
		return
	}

	dbClient, err := db.New(context.Background(), cfg.DB, db.Options{
		UseSQLite:   cfg.FeatureFlags.UseSQLite,
		AutoMigrate: cfg.FeatureFlags.UseSQLite,
	}, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	logg.Info(ctx, "migrate ready")

	var migrator *migrate.Migrator
	if *cmd != "seed-manager" {
		migrator, err = migrate.NewMigrator(sqlDB, *dir)
		requireResource(ctx, logg, "migrator", err)
	}

	switch *cmd {
	case "up":
		report(ctx, logg, "up")(migrator.Up(ctx))

	case "down":
		report(ctx, logg, "down")(migrator.Down(ctx))

	case "status":
		current, err := migrator.Version(ctx)
		requireResource(ctx, logg, "schema version", err)
		pending, err := migrator.Pending(ctx)
		requireResource(ctx, logg, "schema status", err)
		fmt.Printf("current version: %d\npending: %v\n", current, pending)

	case "seed-manager":
		svc, err := auth.NewService(auth.ServiceParams{
			StaffRepo:      auth.NewRepository(dbClient.DB()),
			JWTConfig:      cfg.JWT,
			PasswordConfig: cfg.Password,
			Logger:         logg,
		})
		requireResource(ctx, logg, "auth service", err)
		staff, err := svc.CreateStaff(ctx, auth.CreateStaffRequest{
			Email:    *email,
			Name:     *staffName,
			Role:     enums.StaffRoleManager,
			Password: *password,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed manager failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("created manager:", staff.ID)

	case "version":
		if *version == "" {
			fmt.Fprintln(os.Stderr, "missing -version for version command")
			os.Exit(1)
		}
		report(ctx, logg, "version")(migrator.To(ctx, *version))

	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
}

// report prints each applied step and exits non-zero when goose failed.
func report(ctx context.Context, logg *logger.Logger, op string) func([]migrate.Step, error) {
	return func(steps []migrate.Step, err error) {
		for _, st := range steps {
			fmt.Printf("%s %d %s\n", st.Direction, st.Version, st.Path)
		}
		if err != nil {
			logg.Error(ctx, "migrate "+op+" failed", err)
			os.Exit(1)
		}
		if len(steps) == 0 {
			fmt.Println("schema already at target")
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
