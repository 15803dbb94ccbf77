package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// App holds the wired pieces so the setup steps can hand them around.
type App struct {
	db     *bun.DB
	repo   accounts.RepositoryManager
	tokens *accounts.TokenManager
	auth   *accounts.Auther
	auther accounts.HTTPAuthenticator
	config accounts.Config
	srv    router.Server[*fiber.App]
}

func main() {
	ctx := context.Background()

	cfg := accounts.NewSimpleConfig(getenv("ACCOUNTS_SIGNING_KEY", "dev-signing-secret"))

	app := &App{config: cfg}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithAuth(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	addr := getenv("ACCOUNTS_ADDR", ":8572")
	fmt.Printf("listening on %s\n", addr)

	app.srv.Serve(addr)

	WaitExitSignal()
}

// WithPersistence opens the database and applies the embedded migrations.
func WithPersistence(ctx context.Context, app *App) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, getenv("ACCOUNTS_DSN", "file:accounts.db?cache=shared"))
	if err != nil {
		return err
	}

	app.db = bun.NewDB(sqldb, sqlitedialect.New())

	if err := runMigrations(ctx, app.db); err != nil {
		return err
	}

	app.repo = accounts.NewRepositoryManager(app.db)

	return app.repo.Validate()
}

// WithAuth wires the lifecycle token manager, the session issuer, and the
// HTTP glue on top of the user repository.
func WithAuth(ctx context.Context, app *App) error {
	users := app.repo.Users()

	app.tokens = accounts.NewTokenManager(users).
		WithMailer(accounts.NewDevMailer(getenv("ACCOUNTS_BASE_URL", "http://localhost:8572")))

	tracker := userTrackerAdapter{users: users}
	auth := accounts.NewAuthenticator(accounts.NewUserProvider(tracker), app.config).
		WithTokenManager(app.tokens)
	app.auth = auth

	auther, err := accounts.NewHTTPAuthenticator(auth, app.config)
	if err != nil {
		return err
	}
	app.auther = auther

	return nil
}

// WithHTTPServer mounts the account API plus a pair of demo pages behind
// the request gate.
func WithHTTPServer(ctx context.Context, app *App) error {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
		}))
	})

	gate := accounts.NewGate()
	srv.Router().Use(gate.Middleware(app.auth.TokenService(), app.config))

	accounts.RegisterAccountRoutes(srv.Router(),
		accounts.WithControllerRepo(app.repo),
		accounts.WithControllerTokens(app.tokens),
		accounts.WithControllerAuther(app.auther),
		accounts.WithControllerSigner(app.auth.TokenService()),
		accounts.WithControllerConfig(app.config),
	)

	srv.Router().Get("/", func(ctx router.Context) error {
		return ctx.JSON(router.StatusOK, map[string]any{
			"message": "public home",
		})
	})

	srv.Router().Get("/profile", func(ctx router.Context) error {
		claims, ok := accounts.GetClaims(ctx.Context())
		if !ok {
			return ctx.JSON(router.StatusUnauthorized, map[string]any{
				"error": "missing session",
			})
		}
		return ctx.JSON(router.StatusOK, map[string]any{
			"message": "your profile",
			"user_id": claims.UserID(),
		})
	})

	srv.Router().Get("/login", func(ctx router.Context) error {
		return ctx.JSON(router.StatusOK, map[string]any{
			"message": "post credentials to /api/users/login",
		})
	})

	app.srv = srv

	return nil
}

// userTrackerAdapter narrows the repository to the tracker contract the
// identity provider expects.
type userTrackerAdapter struct {
	users accounts.Users
}

func (a userTrackerAdapter) GetByIdentifier(ctx context.Context, identifier string) (*accounts.User, error) {
	return a.users.GetByIdentifier(ctx, identifier)
}

func (a userTrackerAdapter) TrackAttemptedLogin(ctx context.Context, user *accounts.User) error {
	return a.users.TrackAttemptedLogin(ctx, user)
}

func (a userTrackerAdapter) TrackSuccessfulLogin(ctx context.Context, user *accounts.User) error {
	return a.users.TrackSuccessfulLogin(ctx, user)
}

// runMigrations executes the embedded SQL files in lexical order, honoring
// the bun split markers inside each file.
func runMigrations(ctx context.Context, db *bun.DB) error {
	migrations, err := fs.Sub(accounts.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}

	entries, err := fs.ReadDir(migrations, ".")
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}

		content, err := fs.ReadFile(migrations, entry.Name())
		if err != nil {
			return err
		}

		for _, stmt := range strings.Split(string(content), "--bun:split") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %s: %w", entry.Name(), err)
			}
		}
	}

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
