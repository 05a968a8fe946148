package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"quizkeeper/internal/auth"
	"quizkeeper/internal/config"
	"quizkeeper/internal/remote"
	"quizkeeper/internal/store"
	"quizkeeper/internal/syncer"
)

// NewLoginCmd signs into the backend with a Google authorization code and
// persists the session for later sync passes.
func NewLoginCmd(configPath *string) *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), *configPath, code)
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "authorization code from the consent page")
	return cmd
}

func runLogin(ctx context.Context, configPath, code string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	g := cfg.Client.Google
	provider := auth.NewGoogleProvider(g.ClientID, g.ClientSecret, g.RedirectURL)
	if code == "" {
		fmt.Println("Open the consent page, then re-run with --code:")
		fmt.Println(provider.AuthCodeURL(uuid.NewString()))
		return nil
	}

	storePath := cfg.Client.StorePath
	if storePath == "" {
		storePath = "quizkeeper.db"
	}
	st, err := store.NewSQLiteStore(storePath)
	if err != nil {
		return err
	}
	defer st.Close()

	remoteURL := cfg.Client.RemoteURL
	if remoteURL == "" {
		remoteURL = "http://localhost:8080"
	}

	// The controller is the token owner; the client reads through it.
	var controller *auth.Controller
	client := remote.NewClient(remoteURL, func() string {
		if controller == nil {
			return ""
		}
		return controller.Token()
	})
	engine := syncer.NewEngine(st, client, nil, syncConfig(cfg))
	defer engine.Close()
	controller = auth.NewController(st, client, provider, engine)

	profile, err := controller.Login(ctx, code)
	if err != nil {
		return err
	}
	log.Printf("signed in as %s (%s)", profile.Name, profile.Email)
	return nil
}
