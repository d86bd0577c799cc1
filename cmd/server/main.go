package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"parking-service/internal/alert"
	"parking-service/internal/auth"
	"parking-service/internal/billing"
	"parking-service/internal/config"
	"parking-service/internal/db"
	httpapi "parking-service/internal/http"
	"parking-service/internal/repository"
	"parking-service/internal/rules"
	"parking-service/internal/service"
	"parking-service/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("service", cfg.App.Name).
		Logger()

	gdb, err := db.Connect(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	vehicleRepo := repository.NewVehicleRepository(gdb)
	ruleRepo := repository.NewRuleRepository(gdb)
	tariffRepo := repository.NewTariffRepository(gdb)
	sessionRepo := repository.NewSessionRepository(gdb)
	eventRepo := repository.NewEventRepository(gdb)
	alertRepo := repository.NewAlertRepository(gdb)
	userRepo := repository.NewUserRepository(gdb)

	ruleStore := rules.NewStore(ruleRepo)
	billingEngine := billing.NewEngine(tariffRepo)
	sessionManager := session.NewManager(sessionRepo, vehicleRepo, tariffRepo)
	alertService := alert.NewService(alertRepo, log)
	authService := auth.NewService(userRepo, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)

	sightingService := service.NewSightingService(
		gdb, vehicleRepo, eventRepo, ruleRepo,
		sessionManager, alertService, cfg.Storage.SnapshotDir, log,
	)
	vehicleService := service.NewVehicleService(vehicleRepo, log)

	if err := ensureAdminUser(userRepo, log); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap admin user")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.HTTP.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler := httpapi.NewHandler(
		sightingService, vehicleService, ruleStore, tariffRepo,
		billingEngine, sessionManager, sessionRepo, alertService,
		authService, cfg, log,
	)
	handler.Register(r)

	log.Info().Str("addr", cfg.HTTP.Addr).Msg("starting parking service")
	if err := r.Run(cfg.HTTP.Addr); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// ensureAdminUser seeds the initial admin account so the admin API is
// reachable on a fresh database. The generated password is logged once;
// change it after first login.
func ensureAdminUser(users *repository.UserRepository, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	existing, err := users.FindByUsername(ctx, "admin")
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	password := os.Getenv("PARKING_ADMIN_PASSWORD")
	if password == "" {
		password = "admin"
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user := &repository.User{
		Username:       "admin",
		FullName:       "Administrator",
		Email:          "admin@localhost",
		HashedPassword: hash,
		Role:           auth.RoleSuperadmin,
		Active:         true,
	}
	if err := users.Create(ctx, user); err != nil {
		return err
	}
	log.Warn().Msg("created default admin user; change the password after first login")
	return nil
}
