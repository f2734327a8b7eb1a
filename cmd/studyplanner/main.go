package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"study-planner/internal/bot"
	"study-planner/internal/config"
	"study-planner/internal/repository"
	"study-planner/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config")
	}

	log := newLogger(cfg.LogLevel)

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	areaRepo := repository.NewAreaRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	cycleRepo := repository.NewCycleRepository(db)
	gridRepo := repository.NewGridRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	studyRepo := repository.NewStudyRepository(db)

	scheduleSvc := service.NewScheduleService(scheduleRepo, time.Now, log.With().Str("component", "scheduler").Logger())
	studySvc := service.NewStudyService(studyRepo, scheduleRepo, time.Now)
	reportSvc := service.NewReportService(scheduleRepo, subjectRepo)

	telegramBot, err := bot.New(cfg.TelegramToken, bot.Deps{
		UserRepo:     userRepo,
		ProjectRepo:  projectRepo,
		AreaRepo:     areaRepo,
		SubjectRepo:  subjectRepo,
		CycleRepo:    cycleRepo,
		GridRepo:     gridRepo,
		SettingsRepo: settingsRepo,
		ScheduleRepo: scheduleRepo,
		ScheduleSvc:  scheduleSvc,
		StudySvc:     studySvc,
		ReportSvc:    reportSvc,
		Config:       &cfg,
		Log:          log.With().Str("component", "bot").Logger(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("bot")
	}

	cronSvc := service.NewCronService(time.Local)
	if _, err := cronSvc.ScheduleDaily(cfg.AgendaTime, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDailyAgendas(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("daily agendas")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("schedule agendas")
	}
	cronSvc.Start()
	defer cronSvc.Stop()

	log.Info().Str("agenda_time", cfg.AgendaTime).Msg("study planner bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("bot stopped with error")
	}
	log.Info().Msg("shutdown complete")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}
