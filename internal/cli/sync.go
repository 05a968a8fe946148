package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"quizkeeper/internal/backup"
	"quizkeeper/internal/config"
	"quizkeeper/internal/remote"
	"quizkeeper/internal/store"
	"quizkeeper/internal/syncer"
)

// NewSyncCmd runs one manual sync pass for the local collection. With
// --watch it keeps running and re-syncs on backend change events.
func NewSyncCmd(configPath *string) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local quiz collection with the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), *configPath, watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "stay running and re-sync on remote changes")
	return cmd
}

func runSync(ctx context.Context, configPath string, watch bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
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
	tokenSource := func() string {
		token, expiry, ok := st.Credentials()
		if !ok || !time.Now().Before(expiry) {
			return ""
		}
		return token
	}
	client := remote.NewClient(remoteURL, tokenSource)

	var bkp backup.Backup
	if cfg.Client.DriveBackup {
		bkp = backup.NewDriveBackup()
	}

	engine := syncer.NewEngine(st, client, bkp, syncConfig(cfg))
	defer engine.Close()

	profile, ok := st.CurrentUser()
	if ok && tokenSource() != "" {
		engine.SetSession(profile.ID, tokenSource())
	} else {
		log.Printf("no active session, local collection only")
	}

	if err := engine.Load(ctx); err != nil {
		return err
	}
	if ok && tokenSource() != "" {
		if err := engine.SyncNow(ctx); err != nil {
			return err
		}
	}

	state, msg := engine.State()
	log.Printf("sync finished: %d quizzes, state %s %s", len(engine.Quizzes()), state, msg)

	if !watch {
		return nil
	}
	if !ok || tokenSource() == "" {
		log.Printf("watch requires an active session, run login first")
		return nil
	}

	watcher := remote.NewWatcher(remoteURL, tokenSource, func() {
		if err := engine.SyncNow(context.Background()); err != nil {
			log.Printf("change-triggered sync failed: %v", err)
		}
	})
	watcher.Start()
	defer watcher.Stop()
	log.Printf("watching for remote changes")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
		log.Println("stopping watch...")
	case <-ctx.Done():
	}
	return nil
}

func syncConfig(cfg config.Config) syncer.Config {
	sc := syncer.DefaultConfig()
	s := cfg.Client.Sync
	sc.Debounce = config.Duration(s.Debounce, sc.Debounce)
	sc.MinPushInterval = config.Duration(s.MinPushInterval, sc.MinPushInterval)
	sc.AutoWindow = config.Duration(s.AutoWindow, sc.AutoWindow)
	sc.ManualWindow = config.Duration(s.ManualWindow, sc.ManualWindow)
	sc.RetryBase = config.Duration(s.RetryBase, sc.RetryBase)
	if s.AutoLimit > 0 {
		sc.AutoLimit = s.AutoLimit
	}
	if s.ManualLimit > 0 {
		sc.ManualLimit = s.ManualLimit
	}
	if s.MaxAttempts > 0 {
		sc.MaxAttempts = s.MaxAttempts
	}
	return sc
}
