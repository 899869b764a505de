// Command poitctl is the operator tool for a Po-it database.
//
//	poitctl seed  --file seed.toml   # load users, follows and poems
//	poitctl token --username alice   # print a bearer token for a user
//
// --db and --jwt-secret fall back to DB_PATH and JWT_SECRET, the same
// variables the server reads.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/sakif/poit/internal/auth"
	"github.com/sakif/poit/internal/repository/sqlite"
	"github.com/sakif/poit/internal/seed"
	"github.com/sakif/poit/internal/service"
)

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "poitctl:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "poitctl",
		Usage:     "Manage a Po-it database",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "SQLite database path",
				Value:   "data/poit.db",
				Sources: cli.EnvVars("DB_PATH"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			seedCommand(),
			tokenCommand(),
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Load users, follows and poems from a TOML file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Seed file path",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			f, err := seed.Load(c.String("file"))
			if err != nil {
				return err
			}

			logger := newLogger(c)
			db, err := sqlite.New(c.String("db"))
			if err != nil {
				return err
			}
			defer db.Close()

			users := service.NewUserService(db, db, auth.NewPasswordService(), logger)
			poems := service.NewPoemService(db, logger)

			sum, err := seed.Apply(ctx, f, users, poems)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer,
				"users: %d created, %d existing; follows: %d; poems: %d; stanzas: %d\n",
				sum.UsersCreated, sum.UsersExisting, sum.Follows, sum.Poems, sum.Stanzas)
			return nil
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Print a signed bearer token for an existing user",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "User to sign the token for",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "jwt-secret",
				Usage:   "HMAC secret shared with the server",
				Sources: cli.EnvVars("JWT_SECRET"),
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime",
				Value: auth.DefaultTokenTTL,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			tokens, err := auth.NewTokenService(c.String("jwt-secret"))
			if err != nil {
				return err
			}
			ttl := c.Duration("ttl")
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive, got %s", ttl)
			}

			db, err := sqlite.New(c.String("db"))
			if err != nil {
				return err
			}
			defer db.Close()

			users := service.NewUserService(db, db, auth.NewPasswordService(), newLogger(c))
			user, err := users.GetByUsername(ctx, c.String("username"))
			if err != nil {
				return err
			}

			token, err := tokens.GenerateWithDuration(user.ID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.Root().Writer, token)
			return nil
		},
	}
}

// newLogger writes to stderr so stdout stays clean for `poitctl token`.
func newLogger(c *cli.Command) *slog.Logger {
	level := slog.LevelWarn
	if c.Bool("debug") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
