package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfeidau/rollcall/cmd/cli/internal/credentials"
	"github.com/wolfeidau/rollcall/internal/auth"
	"github.com/wolfeidau/rollcall/internal/models"
)

// TokenCmd issues a signed bearer token with the server's shared secret.
type TokenCmd struct {
	Subject string        `help:"Principal id (instructor, admin or device id)" required:""`
	Role    string        `help:"Role granted by the token" default:"instructor" enum:"admin,instructor,device"`
	TTL     time.Duration `help:"Token lifetime" default:"12h"`
	Secret  string        `help:"Token signing secret" required:"" env:"ROLLCALL_TOKEN_SECRET"`

	Save           string `help:"Store the token in this credentials profile"`
	Server         string `help:"Server URL of the saved profile" default:"https://localhost:8443"`
	CredentialsDir string `help:"Custom credentials directory"`
}

func (t *TokenCmd) Run(ctx context.Context, globals *Globals) error {
	token, err := auth.IssueToken([]byte(t.Secret), models.Principal{
		ID:   t.Subject,
		Role: models.Role(t.Role),
	}, t.TTL)
	if err != nil {
		return err
	}

	if t.Save == "" {
		fmt.Fprintln(globals.out(), token)
		return nil
	}

	store, err := credentials.NewStore(t.CredentialsDir)
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	profile, err := store.Save(credentials.Profile{Name: t.Save, Server: t.Server, Token: token})
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	fmt.Fprintf(globals.out(), "Token for %s (%s) saved to profile %q, expires %s.\n",
		profile.PrincipalID, profile.Role, profile.Name, formatTime(profile.ExpiresAt))
	return nil
}
