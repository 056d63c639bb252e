package main

import (
	"context"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/wolfeidau/rollcall/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool   `help:"Enable debug mode."`
		EnvFile string `help:"dotenv file loaded before flags are resolved" default:".env" env:"ROLLCALL_ENV_FILE"`
		Version kong.VersionFlag
		Server  commands.ServerCmd `cmd:"" help:"Start the attendance API server"`
		Migrate commands.MigrateCmd `cmd:"" help:"Apply PostgreSQL migrations and exit"`
	}
)

func main() {
	loadEnvFile(os.Args[1:])

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}

// loadEnvFile loads the dotenv file named by --env-file or ROLLCALL_ENV_FILE
// so kong env bindings can see it. A missing default file is ignored.
func loadEnvFile(args []string) {
	path := os.Getenv("ROLLCALL_ENV_FILE")
	for i, arg := range args {
		if value, ok := strings.CutPrefix(arg, "--env-file="); ok {
			path = value
		} else if arg == "--env-file" && i+1 < len(args) {
			path = args[i+1]
		}
	}
	if path == "" {
		path = ".env"
	}
	_ = godotenv.Load(path)
}
