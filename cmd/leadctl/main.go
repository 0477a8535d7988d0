// leadctl is the operator CLI for the lead tracker. It talks to the store
// directly and needs the same environment as the server.
//
//	leadctl create-admin --username NAME [--email ADDR] [--role admin|super_admin] [--password PW]
//	leadctl assign-site --agent NAME --site SITE
//	leadctl unassign-site --agent NAME --site SITE
//	leadctl list-unsynced [--limit N]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/tlogandesigns/site-visitor-dash/internal/accounts"
	"github.com/tlogandesigns/site-visitor-dash/internal/database"
	"github.com/tlogandesigns/site-visitor-dash/pkg/config"
	"gorm.io/gorm"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		printUsage(os.Stdout)
		return nil
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Warnings only, on stderr: stdout carries the command output.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	cli := &cli{
		db:           db,
		accounts:     accounts.NewService(db, logger),
		out:          os.Stdout,
		readPassword: promptPassword,
	}
	return cli.dispatch(context.Background(), args)
}

type cli struct {
	db           *gorm.DB
	accounts     *accounts.Service
	out          io.Writer
	readPassword func() (string, error)
}

var errUsage = errors.New("usage")

func (c *cli) dispatch(ctx context.Context, args []string) error {
	name, rest := args[0], args[1:]

	var err error
	switch name {
	case "create-admin":
		err = c.createAdmin(ctx, rest)
	case "assign-site":
		err = c.assignSite(ctx, rest)
	case "unassign-site":
		err = c.unassignSite(ctx, rest)
	case "list-unsynced":
		err = c.listUnsynced(ctx, rest)
	default:
		printUsage(c.out)
		return fmt.Errorf("unknown command %q", name)
	}

	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	return err
}

func newFlagSet(name string, out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: leadctl <command> [flags]

Commands:
  create-admin    create or reset an admin account
  assign-site     assign a site to an agent
  unassign-site   remove a site from an agent
  list-unsynced   list leads that have not reached the CRM

Run "leadctl <command> --help" for the flags of a command.
`)
}
