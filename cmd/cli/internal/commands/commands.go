package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/rollcall/cmd/cli/internal/credentials"
	"github.com/wolfeidau/rollcall/internal/client"
)

type Globals struct {
	Debug   bool
	Version string

	// Stdout receives command output, os.Stdout when nil.
	Stdout io.Writer
}

func (g *Globals) out() io.Writer {
	if g == nil || g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

// ClientFlags selects the server and credentials used by commands that call
// the rollcall services. Explicit flags override the stored profile.
type ClientFlags struct {
	Server         string        `help:"Server URL, overrides the profile" env:"ROLLCALL_SERVER"`
	Profile        string        `help:"Credentials profile, defaults to the default profile" env:"ROLLCALL_PROFILE"`
	Token          string        `help:"Bearer token, overrides the profile" env:"ROLLCALL_TOKEN"`
	Principal      string        `help:"Caller id sent to a server running with --no-auth" env:"ROLLCALL_PRINCIPAL"`
	CredentialsDir string        `help:"Custom credentials directory"`
	Timeout        time.Duration `help:"Request timeout" default:"30s"`
}

// config resolves the client configuration from flags and the profile store.
func (f *ClientFlags) config(globals *Globals) (client.Config, error) {
	config := client.DefaultConfig()
	config.Timeout = f.Timeout
	config.Debug = globals.Debug
	config.Principal = f.Principal

	if f.Server == "" || (f.Token == "" && f.Principal == "") {
		profile, err := f.profile()
		if err != nil {
			return client.Config{}, err
		}
		if profile != nil {
			config.ServerURL = profile.Server
			config.Token = profile.Token
			if profile.Expired(time.Now()) {
				log.Warn().Str("profile", profile.Name).Msg("stored token has expired")
			}
		}
	}

	if f.Server != "" {
		config.ServerURL = f.Server
	}
	if f.Token != "" {
		config.Token = f.Token
	}

	return config, nil
}

// profile loads the selected profile. A missing default profile is not an
// error, the built in defaults apply.
func (f *ClientFlags) profile() (*credentials.Profile, error) {
	store, err := credentials.NewStore(f.CredentialsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	profile, err := store.Resolve(f.Profile)
	switch {
	case errors.Is(err, credentials.ErrNoDefaultProfile):
		return nil, nil
	case errors.Is(err, credentials.ErrProfileNotFound):
		return nil, fmt.Errorf("profile %q not found\n\nRun 'rollcall-cli credentials list' to see available profiles", f.Profile)
	case err != nil:
		return nil, err
	}

	return profile, nil
}

func (f *ClientFlags) clients(globals *Globals) (*client.Clients, error) {
	config, err := f.config(globals)
	if err != nil {
		return nil, err
	}

	otelInterceptor, err := otelconnect.NewInterceptor()
	if err != nil {
		return nil, fmt.Errorf("failed to create interceptor: %w", err)
	}

	log.Debug().Str("server", config.ServerURL).Msg("connecting")

	return client.NewClients(config, connect.WithInterceptors(otelInterceptor)), nil
}

const timeLayout = "2006-01-02 15:04:05"

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
