package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jeovahfialho/tradelog/internal/access"
	"github.com/jeovahfialho/tradelog/internal/auth"
	"github.com/jeovahfialho/tradelog/internal/config"
	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/jeovahfialho/tradelog/internal/ingestion"
	"github.com/jeovahfialho/tradelog/internal/service"
	"github.com/jeovahfialho/tradelog/internal/storage"
	"github.com/jeovahfialho/tradelog/internal/storage/cache"
	"github.com/jeovahfialho/tradelog/pkg/logger"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "tradelog",
		Short: "Trade journal administration CLI",
		Long: `Administration CLI for the trade journal.
Applies the schema, seeds demo data, imports CSV files and prints analytics.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			decimal.MarshalJSONWithoutQuotes = true
			return nil
		},
	}

	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Applies the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if m, ok := a.store.(service.Migrator); ok {
					if err := m.Migrate(ctx); err != nil {
						return err
					}
				}
				fmt.Printf("✅ Schema up to date (%s)\n", a.cfg.DatabaseDriver)
				return nil
			})
		},
	}

	var createAdminCmd = &cobra.Command{
		Use:   "create-admin",
		Short: "Creates the configured admin account if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				created, err := a.auth.EnsureAdmin(ctx, a.cfg.AdminEmail, a.cfg.AdminUsername, a.cfg.AdminPassword)
				if err != nil {
					return err
				}
				if created {
					fmt.Printf("✅ Admin %s created\n", a.cfg.AdminEmail)
				} else {
					fmt.Printf("ℹ️  Admin %s already exists\n", a.cfg.AdminEmail)
				}
				return nil
			})
		},
	}

	var seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Loads demo traders and trades",
		Long: `Creates three demo traders (charlie, bob and alice, password "pass123")
with closed and open trades. Running it again adds nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				inserted, err := service.Seed(ctx, a.store, a.auth, time.Now())
				if err != nil {
					return err
				}
				fmt.Printf("🌱 Seed complete: %d trades inserted\n", inserted)
				return nil
			})
		},
	}

	var importCmd = &cobra.Command{
		Use:   "import [files...]",
		Short: "Imports CSV files for a trader",
		Long: `Imports trade CSV files on behalf of the trader identified by --email.
Accepts several files, wildcards (ex: data/*.csv) and http(s) URLs, which are
downloaded into DOWNLOAD_DIR first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			return withApp(func(ctx context.Context, a *app) error {
				return importFiles(ctx, a, email, args)
			})
		},
	}
	importCmd.Flags().StringP("email", "e", "", "Owner of the imported trades")
	_ = importCmd.MarkFlagRequired("email")

	var summaryCmd = &cobra.Command{
		Use:   "summary",
		Short: "Prints the analytics summary of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			return withApp(func(ctx context.Context, a *app) error {
				return printSummary(ctx, a, email)
			})
		},
	}
	summaryCmd.Flags().StringP("email", "e", "", "User email")
	_ = summaryCmd.MarkFlagRequired("email")

	var deleteUserCmd = &cobra.Command{
		Use:   "delete-user",
		Short: "Deletes a user and all of its trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			return withApp(func(ctx context.Context, a *app) error {
				if err := a.auth.DeleteUser(ctx, email); err != nil {
					return err
				}
				fmt.Printf("🗑️  User %s deleted\n", email)
				return nil
			})
		},
	}
	deleteUserCmd.Flags().StringP("email", "e", "", "User email")
	_ = deleteUserCmd.MarkFlagRequired("email")

	var healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Checks database and cache connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkHealth()
		},
	}

	rootCmd.AddCommand(migrateCmd, createAdminCmd, seedCmd, importCmd, summaryCmd, deleteUserCmd, healthCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// app bundles the collaborators a command needs.
type app struct {
	cfg       *config.Config
	store     service.Store
	cache     *cache.RedisCache
	auth      *service.AuthService
	analytics *service.AnalyticsService
	ingestion *service.IngestionService
}

func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx := context.Background()
	cfg := config.Load()

	if err := logger.Init(cfg.LogLevel, cfg.IsDevelopment()); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	store, err := storage.Open(openCtx, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	a := &app{cfg: cfg, store: store}

	var serviceCache service.Cache
	if a.cache = connectRedis(cfg); a.cache != nil {
		defer a.cache.Close()
		serviceCache = a.cache
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry)
	a.auth = service.NewAuthService(store, serviceCache, tokens)
	a.analytics = service.NewAnalyticsService(store, serviceCache)
	a.ingestion = service.NewIngestionService(store, serviceCache, cfg.BatchSize, cfg.Workers)

	return fn(ctx, a)
}

// connectRedis returns nil when the cache is unreachable; commands run without it.
func connectRedis(cfg *config.Config) *cache.RedisCache {
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		return nil
	}
	return redisCache
}

func importFiles(ctx context.Context, a *app, email string, patterns []string) error {
	user, err := a.store.GetUserByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return fmt.Errorf("user %s: %w", email, err)
	}
	if user.Role == domain.RoleAdmin {
		return fmt.Errorf("%s is an admin; admins cannot own trades", email)
	}

	var files, urls []string
	for _, pattern := range patterns {
		if ingestion.IsRemote(pattern) {
			urls = append(urls, pattern)
			continue
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			matches = []string{pattern}
		}
		files = append(files, matches...)
	}

	if len(urls) > 0 {
		fmt.Printf("⬇️  Downloading %d file(s) into %s...\n", len(urls), a.cfg.DownloadDir)
		downloader := ingestion.NewDownloader(a.cfg.Workers, a.cfg.DownloadRateLimit, a.cfg.DownloadTimeout)
		paths, errs := downloader.DownloadAll(ctx, urls, a.cfg.DownloadDir)
		for i, path := range paths {
			if errs[i] != nil {
				fmt.Printf("❌ %v\n", errs[i])
				continue
			}
			files = append(files, path)
		}
		fmt.Println()
	}

	fmt.Printf("📥 Importing %d file(s) for %s...\n\n", len(files), email)

	var total int64
	for _, result := range a.ingestion.ImportFiles(ctx, user.ID, files) {
		if result.Error != nil {
			fmt.Printf("❌ %s: %v\n", result.FilePath, result.Error)
			continue
		}
		fmt.Printf("✅ %d trades from %s\n", result.RecordsCount, result.FilePath)
		for _, rejected := range result.Rejected {
			fmt.Printf("   ⚠️  line %d: %s\n", rejected.Line, rejected.Msg)
		}
		total += result.RecordsCount
	}

	fmt.Printf("\n📊 Total: %d trades imported\n", total)
	return nil
}

func printSummary(ctx context.Context, a *app, email string) error {
	user, err := a.store.GetUserByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return fmt.Errorf("user %s: %w", email, err)
	}

	summary, err := a.analytics.Summary(ctx, access.Principal{UserID: user.ID, Role: user.Role})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func checkHealth() error {
	ctx := context.Background()
	cfg := config.Load()

	fmt.Println("🏥 Checking system health...")
	fmt.Println()

	fmt.Printf("Database (%s): ", cfg.DatabaseDriver)
	openCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	store, err := storage.Open(openCtx, cfg)
	cancel()
	if err != nil {
		fmt.Printf("❌ %v\n", err)
	} else {
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			fmt.Printf("❌ %v\n", err)
		} else {
			fmt.Println("✅ OK")
		}
	}

	fmt.Print("Redis: ")
	redisCache := connectRedis(cfg)
	if redisCache == nil {
		fmt.Println("❌ unavailable")
	} else {
		defer redisCache.Close()
		if err := redisCache.HealthCheck(ctx); err != nil {
			fmt.Printf("❌ %v\n", err)
		} else {
			fmt.Println("✅ OK")
		}
	}

	fmt.Println("\n✅ Check complete")
	return nil
}
