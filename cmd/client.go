package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shoplist/core/internal/remote"
	"github.com/shoplist/core/internal/services"
	"github.com/shoplist/core/internal/session"
	"github.com/shoplist/core/internal/storage"
	"github.com/shoplist/core/internal/store"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	email     string
	password  string
)

// newFacade builds the client stack without signing in.
func newFacade(ctx context.Context) (*services.Facade, error) {
	baseURL := serverURL
	if baseURL == "" {
		baseURL = cfg.Client.ServerURL
	}
	client := remote.New(baseURL, remote.WithTimeout(cfg.Client.Timeout))
	sc := session.New(client, client, logger)
	client.SetTokenSource(sc.Token)

	opts := []services.Option{services.WithLogger(logger)}
	exports, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open export storage: %w", err)
	}
	if exports != nil {
		opts = append(opts, services.WithExportSink(exports))
	}

	return services.NewFacade(sc,
		store.NewListRepository(client, sc),
		store.NewProductRepository(client, sc),
		opts...,
	), nil
}

// withSession signs in, runs fn and signs out again.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, f *services.Facade) error) error {
	ctx := cmd.Context()
	if strings.TrimSpace(email) == "" || password == "" {
		return errors.New("--email and --password are required (or SHOPLIST_EMAIL / SHOPLIST_PASSWORD)")
	}

	facade, err := newFacade(ctx)
	if err != nil {
		return err
	}
	if err := facade.SignIn(ctx, email, password); err != nil {
		return err
	}
	defer func() {
		if err := facade.SignOut(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("sign out failed", "error", err)
		}
	}()
	return fn(ctx, facade)
}

func addCredentialFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&serverURL, "server", "", "shoplist server URL (defaults to SHOPLIST_SERVER_URL)")
	cmd.PersistentFlags().StringVar(&email, "email", os.Getenv("SHOPLIST_EMAIL"), "account email")
	cmd.PersistentFlags().StringVar(&password, "password", os.Getenv("SHOPLIST_PASSWORD"), "account password")
}

var signupUsername string

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and its profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		facade, err := newFacade(ctx)
		if err != nil {
			return err
		}
		profile, err := facade.SignUp(ctx, email, password, signupUsername)
		if err != nil {
			return err
		}
		defer func() { _ = facade.SignOut(context.WithoutCancel(ctx)) }()
		fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s) as %s\n", profile.Username, profile.ID, profile.Role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signupCmd)
	addCredentialFlags(signupCmd)
	signupCmd.Flags().StringVar(&signupUsername, "username", "", "display name")
}
