package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docvault-api/internal/documents"
	"docvault-api/internal/identity"
	"docvault-api/internal/shared/auth"
	"docvault-api/internal/shared/config"
	"docvault-api/internal/shared/server"
	"docvault-api/internal/shared/storage/db"
	"docvault-api/internal/shared/storage/object"
	localstore "docvault-api/internal/shared/storage/object/local"
	s3store "docvault-api/internal/shared/storage/object/s3"
	"docvault-api/internal/shared/telemetry"
	"docvault-api/internal/users"
	"docvault-api/internal/vault"
)

// App holds shared dependencies and the router built on them.
type App struct {
	Config     config.Config
	Router     *gin.Engine
	DB         *sql.DB
	Redis      *redis.Client
	Store      object.Store
	Identity   *identity.LocalProvider
	Documents  *documents.Service
	Vault      *vault.Service
	Workspaces *vault.Workspaces

	stopWatch func()
}

// Build wires config -> storage -> services -> router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildStore(ctx, cfg)
	if err != nil {
		closeDB(sqlDB)
		return nil, err
	}
	redisClient, err := buildRedis(ctx, cfg)
	if err != nil {
		closeDB(sqlDB)
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Redis:  redisClient,
		Store:  store,
	}
	if err := buildServices(ctx, app); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// Close stops background work and releases connections.
func (a *App) Close() error {
	if a.stopWatch != nil {
		a.stopWatch()
	}
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	log := telemetry.L()
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			log.Warn("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if cfg.IsDevLike() {
			log.Warn("bootstrap: database connect failed; using in-memory repositories", zap.Error(err))
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, s3store.Options{
			Region:        cfg.AWSRegion,
			Bucket:        cfg.S3Bucket,
			Prefix:        cfg.S3Prefix,
			KMSKeyID:      cfg.SSEKMSKeyID,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
	default:
		return localstore.New(cfg.LocalStoreDir, cfg.PublicBaseURL), nil
	}
}

func buildRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func buildServices(ctx context.Context, app *App) error {
	cfg := app.Config

	var (
		userRepo users.Repo
		docTable documents.Table
	)
	if app.DB != nil {
		userRepo = &users.PGRepo{DB: app.DB}
		docTable = &documents.PGRepo{DB: app.DB}
	} else {
		userRepo = users.NewMemoryRepo()
		docTable = documents.NewMemoryRepo()
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.Env, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return err
	}
	provider := identity.NewLocalProvider(userRepo, issuer)
	provider.VerifyURL = cfg.VerifyURL
	if app.Redis != nil {
		provider.Revocations = identity.NewRedisRevocations(app.Redis)
	}
	if cfg.SMTPHost != "" {
		provider.Mailer = identity.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	}

	docSvc := documents.NewService(app.Store, docTable)
	workspaces := vault.NewWorkspaces(docSvc, cfg.WorkspaceCacheSize, cfg.WorkspaceTTL)
	vaultSvc := vault.NewService(docSvc, workspaces)
	app.stopWatch = workspaces.Watch(context.WithoutCancel(ctx), provider)

	identityHandler := identity.NewHandler(provider)
	identityHandler.EventOrigins = originPatterns(cfg.CORSAllowOrigin)

	health := server.NewHealth()
	if app.DB != nil {
		health.Add("database", func(ctx context.Context) error { return db.Ping(ctx, app.DB, 0) })
	}
	if app.Redis != nil {
		health.Add("redis", func(ctx context.Context) error { return app.Redis.Ping(ctx).Err() })
	}

	var publicDir string
	if cfg.ObjectStoreType != "s3" {
		publicDir = cfg.LocalStoreDir
	}

	app.Identity = provider
	app.Documents = docSvc
	app.Vault = vaultSvc
	app.Workspaces = workspaces
	app.Router = server.NewRouter(server.RouterDeps{
		Config:        cfg,
		Authenticator: provider,
		Identity:      identityHandler,
		Google: identity.NewGoogleSignIn(
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.GoogleRedirectURL,
			cfg.UIRedirectURL,
			provider,
		),
		Vault:     vault.NewHandler(vaultSvc),
		Health:    health,
		PublicDir: publicDir,
	})
	return nil
}

// originPatterns strips schemes, which websocket origin patterns do not take.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

func closeDB(sqlDB *sql.DB) {
	if sqlDB != nil {
		_ = sqlDB.Close()
	}
}
