package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/rollcall/cmd/cli/internal/commands"
	"github.com/wolfeidau/rollcall/internal/logger"
)

var (
	version = "dev"
	cli     struct {
		Open        commands.OpenCmd        `cmd:"" help:"Open an attendance session"`
		Close       commands.CloseCmd       `cmd:"" help:"Close an attendance session"`
		Cancel      commands.CancelCmd      `cmd:"" help:"Cancel an attendance session (admin only)"`
		ForceClose  commands.ForceCloseCmd  `cmd:"" name:"force-close" help:"Close every active session of an instructor"`
		Get         commands.GetCmd         `cmd:"" help:"Show a session"`
		Active      commands.ActiveCmd      `cmd:"" help:"Show the active session of an instructor"`
		Sessions    commands.SessionsCmd    `cmd:"" help:"List sessions"`
		Record      commands.RecordCmd      `cmd:"" help:"Record a student as present"`
		Records     commands.RecordsCmd     `cmd:"" help:"List the attendance records of a session"`
		Report      commands.ReportCmd      `cmd:"" help:"Attendance reports"`
		Login       commands.LoginCmd       `cmd:"" help:"Save a server and token as a profile"`
		Credentials commands.CredentialsCmd `cmd:"" help:"Manage credential profiles"`
		Token       commands.TokenCmd       `cmd:"" help:"Issue a signed token"`
		Debug       bool                    `help:"Enable debug mode."`
		Version     kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("rollcall-cli"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)
	if !cli.Debug {
		log.Logger = log.Logger.Level(zerolog.WarnLevel)
	}

	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
