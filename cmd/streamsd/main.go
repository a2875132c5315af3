// streamsd serves the streams API: stream lifecycle, attendance and
// visibility changes kept in step with Google Calendar and YouTube Live.
//
//	@title						Streams API
//	@version					1.0
//	@description				Stream attendance and visibility orchestration.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"google.golang.org/api/option"

	"streamhub/config"
	_ "streamhub/docs"
	"streamhub/internal/adapters/auth"
	"streamhub/internal/adapters/broadcast"
	"streamhub/internal/adapters/calendar"
	"streamhub/internal/adapters/crypto"
	"streamhub/internal/adapters/email"
	"streamhub/internal/adapters/oauth"
	"streamhub/internal/adapters/pubsub"
	"streamhub/internal/adapters/telemetry"
	deliveryhttp "streamhub/internal/delivery/http"
	"streamhub/internal/delivery/http/controllers"
	"streamhub/internal/delivery/http/middleware"
	"streamhub/internal/domain"
	"streamhub/internal/repository/postgres"
	"streamhub/internal/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var envFile, addr, issueFor, issueEmail string
	var migrate bool
	var issueTTL time.Duration

	flagSet := pflag.NewFlagSet("streamsd", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", "", "load environment from this file before reading config (default: .env)")
	flagSet.StringVar(&addr, "addr", "", "listen address (default: :$PORT)")
	flagSet.BoolVar(&migrate, "migrate", true, "apply database migrations on start")
	flagSet.StringVar(&issueFor, "issue-token", "", "print a bearer token for this member id and exit")
	flagSet.StringVar(&issueEmail, "email", "", "email claim for --issue-token")
	flagSet.DurationVar(&issueTTL, "ttl", 24*time.Hour, "lifetime of the token printed by --issue-token")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := config.NewLogger()

	if issueFor != "" {
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET is required to issue tokens")
		}
		token, err := auth.NewJWTIssuer(cfg.JWTSecret).Issue(issueFor, issueEmail, issueTTL)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Println(token)
		return nil
	}
	if addr == "" {
		addr = ":" + cfg.Port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("flush traces", "error", err)
		}
	}()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var (
		cache     oauth.TokenCache      = oauth.NewMemoryCache()
		publisher domain.EventPublisher = pubsub.Noop{}
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		cache = oauth.NewRedisCache(rdb, "streamhub:oauth:")
		publisher = pubsub.NewRedisPublisher(rdb)
	}

	txManager := postgres.NewTxManager(db)
	streamRepo := postgres.NewStreamRepository(db)
	attendeeRepo := postgres.NewStreamAttendeeRepository(db)
	memberRepo := postgres.NewMemberRepository(db)
	credentialRepo := postgres.NewOAuthCredentialRepository(db)

	var calendarClient domain.CalendarClient = calendar.Noop{Logger: logger}
	if cfg.Calendar.Provider == "google" {
		c, err := calendar.NewClient(ctx, option.WithCredentialsFile(cfg.Calendar.CredentialsFile))
		if err != nil {
			return fmt.Errorf("google calendar client: %w", err)
		}
		calendarClient = c
	}

	var (
		broadcastClient domain.BroadcastClient = broadcast.Noop{Logger: logger}
		credentials     domain.BroadcastCredentials
		tokens          domain.AccessTokenProvider
	)
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	if cfg.Broadcast.Provider == "youtube" {
		sealer, err := crypto.NewSealerFromHex(cfg.OAuth.EncryptionKey)
		if err != nil {
			return fmt.Errorf("token sealer: %w", err)
		}
		provider := oauth.NewProvider(oauth.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			TokenURL:     cfg.OAuth.TokenURL,
		}, credentialRepo, sealer, cache, httpClient, logger)
		broadcastClient = broadcast.NewClient(httpClient)
		credentials, tokens = provider, provider
	} else {
		tokens = noTokens{}
	}

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Email.Provider,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		SES: email.SESConfig{
			Region:             cfg.Email.AWSRegion,
			AccessKeyID:        cfg.Email.AWSAccessKeyID,
			SecretAccessKey:    cfg.Email.AWSSecretAccessKey,
			InsecureSkipVerify: cfg.Email.InsecureSkipVerify,
			Endpoint:           cfg.Email.SESEndpoint,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	emailService := services.NewEmailService(mailer, email.NewTemplateRenderer(), logger)
	notifier := services.NewNotifier(publisher, cfg.NotificationChannel, emailService, memberRepo, logger)
	defer notifier.Close()

	policy := services.NewStreamAccessPolicy(time.Now)
	syncCoordinator := services.NewSyncCoordinator(calendarClient, broadcastClient, tokens, logger)
	calendars := services.CountryCalendars{DefaultID: cfg.Calendar.DefaultID, ByCountry: cfg.Calendar.IDsByCountry}

	streamService := services.NewStreamService(txManager, streamRepo, memberRepo, calendars, policy, syncCoordinator, logger, cfg.RequestTimeout)
	attendanceService := services.NewAttendanceService(txManager, streamRepo, attendeeRepo, memberRepo, policy, syncCoordinator, notifier, logger, cfg.RequestTimeout)
	visibilityService := services.NewVisibilityService(txManager, streamRepo, attendeeRepo, memberRepo, policy, syncCoordinator, notifier, logger, cfg.RequestTimeout)

	ctrls := deliveryhttp.Controllers{
		Streams:    controllers.NewStreamController(logger, streamService, visibilityService),
		Attendance: controllers.NewAttendanceController(logger, attendanceService),
	}
	if credentials != nil {
		ctrls.Credentials = controllers.NewCredentialController(logger, credentials)
	}
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is empty; every authenticated request will be rejected")
	}
	mux := deliveryhttp.NewRouter(ctrls, middleware.RequireAuth(auth.NewJWTVerifier(cfg.JWTSecret), logger))
	handler := middleware.CORS(cfg.CORSAllowedOrigins, middleware.LoggingMiddleware(logger, mux))

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// noTokens backs the noop broadcast provider, which never needs an access token.
type noTokens struct{}

func (noTokens) AccessToken(context.Context, string) (string, error) { return "", nil }
