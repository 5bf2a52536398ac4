package cli

import (
	"bufio"
	"context"
	"fmt"

	"github.com/mchmarny/agape/pkg/auth"
	urfave "github.com/urfave/cli/v3"
)

const (
	clientID       = "f1b500ebdf533aa8a3e2"
	keyringService = "agape"
	keyringUser    = "github_token"

	flagLogout = "logout"
)

func authCommand() *urfave.Command {
	return &urfave.Command{
		Name:  "auth",
		Usage: "Authenticate to GitHub to read issues with a higher rate limit",
		Flags: []urfave.Flag{
			&urfave.BoolFlag{
				Name:  flagLogout,
				Usage: "Remove the stored GitHub token",
			},
		},
		Action: cmdInitAuthFlow,
	}
}

func tokenStore(cfg *appConfig) *auth.TokenStore {
	return &auth.TokenStore{
		Service: keyringService,
		User:    keyringUser,
		Dir:     cfg.HomeDir,
	}
}

func getGitHubToken(cfg *appConfig) (string, error) {
	return tokenStore(cfg).Get()
}

func cmdInitAuthFlow(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	w := stdout(cmd)

	if cmd.Bool(flagLogout) {
		if err := tokenStore(cfg).Delete(); err != nil {
			return fmt.Errorf("deleting token: %w", err)
		}
		fmt.Fprintln(w, "Token removed")
		return nil
	}

	flow := auth.NewDeviceFlow(clientID)
	code, err := flow.GetDeviceCode(ctx)
	if err != nil {
		return fmt.Errorf("getting device code: %w", err)
	}

	fmt.Fprintf(w, "1). Copy this code: %s\n", code.UserCode)
	fmt.Fprintf(w, "2). Navigate to this URL in your browser to authenticate: %s\n", code.VerificationURL)
	fmt.Fprint(w, "3). Hit enter once authorized:\n>")

	if _, err := bufio.NewReader(stdin(cmd)).ReadString('\n'); err != nil {
		return fmt.Errorf("reading user input: %w", err)
	}

	token, err := flow.PollToken(ctx, code)
	if err != nil {
		return fmt.Errorf("getting token: %w", err)
	}

	if err := tokenStore(cfg).Save(token.AccessToken); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	fmt.Fprintln(w, "Token saved")
	return nil
}
