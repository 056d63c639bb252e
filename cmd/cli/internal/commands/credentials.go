package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/rollcall/cmd/cli/internal/credentials"
)

// LoginCmd stores a server URL and token as a named profile.
type LoginCmd struct {
	Name           string `arg:"" help:"Profile name"`
	Server         string `help:"Server URL" required:""`
	Token          string `help:"Bearer token issued for you" env:"ROLLCALL_TOKEN"`
	Default        bool   `help:"Make this the default profile"`
	CredentialsDir string `help:"Custom credentials directory"`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(c.CredentialsDir)
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	profile, err := store.Save(credentials.Profile{Name: c.Name, Server: c.Server, Token: c.Token})
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	if c.Default {
		if err := store.SetDefault(profile.Name); err != nil {
			return fmt.Errorf("failed to set default: %w", err)
		}
	}

	w := globals.out()
	fmt.Fprintf(w, "Profile %q saved.\n", profile.Name)
	if profile.PrincipalID != "" {
		fmt.Fprintf(w, "Signed in as %s (%s).\n", profile.PrincipalID, profile.Role)
	}
	return nil
}

// CredentialsCmd manages local credential profiles.
type CredentialsCmd struct {
	List       CredentialsListCmd       `cmd:"" help:"List all profiles"`
	Show       CredentialsShowCmd       `cmd:"" help:"Show profile details"`
	Delete     CredentialsDeleteCmd     `cmd:"" help:"Delete a profile"`
	SetDefault CredentialsSetDefaultCmd `cmd:"" name:"set-default" help:"Set the default profile"`
}

// CredentialsListCmd lists all profiles.
type CredentialsListCmd struct {
	OutputDir string `help:"Custom credentials directory"`
}

func (c *CredentialsListCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(c.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	profiles, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	w := globals.out()
	if len(profiles) == 0 {
		fmt.Fprintln(w, "No profiles found.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "To add a profile:")
		fmt.Fprintln(w, "  rollcall-cli login <name> --server <url> --token <token>")
		return nil
	}

	defaultName := ""
	if def, err := store.GetDefault(); err == nil {
		defaultName = def.Name
	}

	now := time.Now()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSERVER\tPRINCIPAL\tROLE\tSTATUS\tDEFAULT")

	for _, p := range profiles {
		status := "valid"
		switch {
		case p.Token == "":
			status = "no token"
		case p.Expired(now):
			status = "expired"
		}

		isDefault := ""
		if p.Name == defaultName {
			isDefault = "*"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", p.Name, p.Server, orDash(p.PrincipalID), orDash(p.Role), status, isDefault)
	}

	return tw.Flush()
}

// CredentialsShowCmd shows details of a profile.
type CredentialsShowCmd struct {
	Name      string `arg:"" help:"Profile name"`
	OutputDir string `help:"Custom credentials directory"`
}

func (c *CredentialsShowCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(c.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	p, err := store.Get(c.Name)
	if err != nil {
		return notFound(c.Name, err)
	}

	w := globals.out()
	fmt.Fprintf(w, "Name:         %s\n", p.Name)
	fmt.Fprintf(w, "Server:       %s\n", p.Server)
	fmt.Fprintf(w, "Principal ID: %s\n", orDash(p.PrincipalID))
	fmt.Fprintf(w, "Role:         %s\n", orDash(p.Role))
	fmt.Fprintf(w, "Expires:      %s\n", formatTime(p.ExpiresAt))
	fmt.Fprintf(w, "Created:      %s\n", formatTime(&p.CreatedAt))
	fmt.Fprintf(w, "Updated:      %s\n", formatTime(&p.UpdatedAt))

	return nil
}

// CredentialsDeleteCmd deletes a profile.
type CredentialsDeleteCmd struct {
	Name      string `arg:"" help:"Profile name"`
	OutputDir string `help:"Custom credentials directory"`
}

func (c *CredentialsDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(c.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	if err := store.Delete(c.Name); err != nil {
		return notFound(c.Name, err)
	}

	fmt.Fprintf(globals.out(), "Profile %q deleted.\n", c.Name)
	fmt.Fprintln(globals.out(), "Note: the token stays valid on the server until it expires.")
	return nil
}

// CredentialsSetDefaultCmd sets the default profile.
type CredentialsSetDefaultCmd struct {
	Name      string `arg:"" help:"Profile name"`
	OutputDir string `help:"Custom credentials directory"`
}

func (c *CredentialsSetDefaultCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(c.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	if err := store.SetDefault(c.Name); err != nil {
		return notFound(c.Name, err)
	}

	fmt.Fprintf(globals.out(), "Default profile set to %q.\n", c.Name)
	return nil
}

func notFound(name string, err error) error {
	if errors.Is(err, credentials.ErrProfileNotFound) {
		return fmt.Errorf("profile %q not found\n\nRun 'rollcall-cli credentials list' to see available profiles", name)
	}
	return err
}
