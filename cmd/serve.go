package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/database"
	"github.com/rehanbawakhan/vdetection/internal/logger"
	"github.com/rehanbawakhan/vdetection/internal/metrics"
	"github.com/rehanbawakhan/vdetection/internal/notify"
	"github.com/rehanbawakhan/vdetection/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the FaceWatch API server.
The server exposes the REST API used by the browser camera page: sign-in,
the known-face library, descriptor matching, detection history, alerts,
Web Push subscriptions and per-user settings.

POST /api/auth/face-login verifies the face on the server: the client must
send {"username", "descriptor"} with the live face descriptor. A request
carrying only the username is rejected with 400 "descriptor required".`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (defaults to PORT or 5000)")
	serveCmd.Flags().String("host", "", "Host to bind to (defaults to WEB_HOST or 0.0.0.0)")
}

// resolveServeHostPort lets flags override the environment.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")
	if port <= 0 {
		port = cfg.Server.Port
	}
	if host == "" {
		host = cfg.Server.Host
	}
	return port, host
}

// seedAdmin creates the configured admin account on first start.
func seedAdmin(ctx context.Context, store database.UserStore, auth config.AuthConfig, log *zap.Logger) error {
	_, err := store.GetUserByUsername(ctx, auth.AdminUser)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("failed to look up admin user: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(auth.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	pinHash, err := bcrypt.GenerateFromPassword([]byte(auth.AdminPIN), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin PIN: %w", err)
	}
	user := &database.User{
		Username:     auth.AdminUser,
		PasswordHash: string(passwordHash),
		PINHash:      string(pinHash),
	}
	if _, err := store.CreateUser(ctx, user); err != nil && !errors.Is(err, database.ErrConflict) {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	log.Info("admin user created", zap.String("username", auth.AdminUser))
	return nil
}

// initMatcher builds the face matcher. MATCHER=hnsw loads or builds the
// in-memory index and falls back to linear scans when that fails.
func initMatcher(ctx context.Context, store database.Store, cfg *config.Config, log *zap.Logger) *database.FaceMatcher {
	if cfg.Matcher.Mode != "hnsw" {
		log.Info("face matcher ready", zap.String("mode", "linear"))
		return database.NewFaceMatcher(store, nil)
	}

	matcher := database.NewFaceMatcher(store, database.NewHNSWIndex())
	start := time.Now()
	count, err := matcher.LoadHNSW(ctx, cfg.Database.HNSWIndexPath)
	if err != nil {
		log.Warn("failed to build face HNSW index, using linear scans", zap.Error(err))
		return database.NewFaceMatcher(store, nil)
	}
	database.RegisterFaceHNSWRebuilder(matcher)
	log.Info("face matcher ready",
		zap.String("mode", "hnsw"),
		zap.Int("faces", count),
		zap.String("index_path", cfg.Database.HNSWIndexPath),
		zap.String("took", formatDuration(time.Since(start))))
	return matcher
}

// buildDispatcher wires every configured notification channel.
func buildDispatcher(cfg *config.Config, store database.SubscriptionStore, m *metrics.Metrics, log *zap.Logger) (*notify.Dispatcher, *notify.MQTTProvider, error) {
	emailTmpl, err := notify.ParseTemplates("email", cfg.Templates.Email)
	if err != nil {
		return nil, nil, err
	}
	pushTmpl, err := notify.ParseTemplates("push", cfg.Templates.Push)
	if err != nil {
		return nil, nil, err
	}

	mqttProvider := notify.NewMQTTProvider(cfg.MQTT, log)
	providers := []notify.Provider{
		notify.NewEmailProvider(cfg.SMTP, emailTmpl),
		notify.NewWebPushProvider(cfg.WebPush, pushTmpl, store, log),
		mqttProvider,
		notify.NewShoutrrrProvider(cfg.Notify.URLs, pushTmpl, cfg.Notify.Timeout),
	}

	dispatcher := notify.NewDispatcher(log, providers,
		notify.WithTimeout(cfg.Notify.Timeout),
		notify.WithCooldown(cfg.Limits.AlertCooldown),
		notify.WithMetrics(m),
	)
	return dispatcher, mqttProvider, nil
}

// saveHNSWIndex persists the face index during shutdown.
func saveHNSWIndex(log *zap.Logger) {
	rebuilder := database.GetFaceHNSWRebuilder()
	if rebuilder == nil || !rebuilder.IsHNSWEnabled() {
		return
	}
	if err := rebuilder.SaveHNSWIndex(); err != nil {
		log.Warn("failed to save face HNSW index", zap.Error(err))
		return
	}
	log.Info("face HNSW index saved", zap.Int("faces", rebuilder.HNSWCount()))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "facewatch")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	if cfg.Auth.JWTSecret == "change_me_super_secret" {
		log.Warn("JWT_SECRET is not set, tokens are signed with the default secret")
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info("database ready", zap.String("backend", store.Backend()))

	if err := seedAdmin(ctx, store, cfg.Auth, log); err != nil {
		return err
	}

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	matcher := initMatcher(ctx, store, cfg, log)
	if n, err := store.CountFaces(ctx); err == nil {
		m.SetKnownFaces(n)
	}

	dispatcher, mqttProvider, err := buildDispatcher(cfg, store, m, log)
	if err != nil {
		return err
	}
	log.Info("notification providers", zap.String("active", strings.Join(dispatcher.Providers(), ",")))

	port, host := resolveServeHostPort(cmd, cfg)
	server := web.NewServer(cfg, port, host, web.Dependencies{
		Store:    store,
		Matcher:  matcher,
		Notifier: dispatcher,
		Metrics:  m,
		Logger:   log,
	})

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-sigCtx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("error during shutdown", zap.Error(err))
		}
	}()

	fmt.Printf("Starting FaceWatch API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-shutdownDone

	dispatcher.Wait()
	mqttProvider.Close()
	saveHNSWIndex(log)
	return nil
}
