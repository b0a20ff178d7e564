package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/config"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/database"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/handler"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/middleware"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/repository"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/router"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/service"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/pkg/bankholidays"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Schedule{},
		&models.ScheduleHistory{},
		&models.ChallengeRecord{},
		&models.ConditionRecord{},
		&models.ScreenerAssessment{},
		&models.EducationEnrolment{},
		&models.SupportPlan{},
		&models.InboundEvent{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}

	holidayClient, err := bankholidays.New(bankholidays.Config{
		URL:      cfg.BankHolidaysURL,
		CacheTTL: cfg.HolidayCacheTTL,
	}, redisClient, logger)
	if err != nil {
		log.Fatalf("failed to create bank holiday client: %v", err)
	}

	// Malformed or unreachable holiday data is a structural refusal to run.
	holidays, err := holidayClient.Holidays(context.Background())
	if err != nil {
		log.Fatalf("failed to load bank holidays: %v", err)
	}

	calendar := service.NewWorkingDayCalendar(holidays)
	deadlines := service.NewDeadlineCalculator(calendar, service.DeadlinePolicy{
		PlanCreationDays: cfg.PlanCreationDays,
		ReviewDays:       cfg.ReviewDays,
		CutoverDate:      cfg.PolicyCutoverDate,
	})

	validate := validator.New(validator.WithRequiredStructEnabled())

	scheduleRepo := repository.NewScheduleRepository(db)
	needRepo := repository.NewNeedRepository(db)
	educationRepo := repository.NewEducationRepository(db)
	planRepo := repository.NewPlanRepository(db)
	eventRepo := repository.NewInboundEventRepository(db)

	needResolver := service.NewNeedResolver(needRepo, logger)
	scheduleService := service.NewScheduleService(scheduleRepo, deadlines, logger)
	statusService := service.NewStatusService(planRepo, scheduleRepo, educationRepo, needResolver, calendar, cfg.DueWindowDays, logger)
	searchService := service.NewSearchService(scheduleRepo, statusService, logger)
	eventService := service.NewLifecycleEventService(
		eventRepo, educationRepo, planRepo, needRepo,
		needResolver, scheduleService, deadlines,
		natsConn, cfg.EventSubject, cfg.EventQueueGroup,
		validate, logger,
	)

	reactorCtx, stopReactor := context.WithCancel(context.Background())
	defer stopReactor()
	eventService.Start(reactorCtx)

	scheduleHandler := handler.NewScheduleHandler(scheduleService, deadlines, validate, logger)
	statusHandler := handler.NewStatusHandler(statusService, needResolver, logger)
	searchHandler := handler.NewSearchHandler(searchService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})
	router.Register(app, cfg, router.Dependencies{
		ScheduleHandler: scheduleHandler,
		StatusHandler:   statusHandler,
		SearchHandler:   searchHandler,
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, natsConn, stopReactor)
}

func waitForShutdown(app *fiber.App, natsConn *nats.Conn, stopReactor context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	stopReactor()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	natsConn.Close()

	log.Println("server stopped")
}
