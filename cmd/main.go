package main

import (
	"context"
	"log"

	"github.com/pot-code/lingua-lms/internal/access"
	"github.com/pot-code/lingua-lms/internal/course"
	"github.com/pot-code/lingua-lms/internal/domain"
	"github.com/pot-code/lingua-lms/internal/enrollment"
	infra "github.com/pot-code/lingua-lms/internal/infrastructure"
	"github.com/pot-code/lingua-lms/internal/infrastructure/driver"
	"github.com/pot-code/lingua-lms/internal/infrastructure/logging"
	"github.com/pot-code/lingua-lms/internal/infrastructure/uuid"
	ihttp "github.com/pot-code/lingua-lms/internal/interfaces/http"
	"github.com/pot-code/lingua-lms/internal/progress"
	"github.com/pot-code/lingua-lms/internal/progress/offline"
	"github.com/pot-code/lingua-lms/internal/user"
	"go.uber.org/zap"
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	option, err := infra.InitConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s\n", err)
	}
	logger = logger.With(
		zap.String("service.id", option.AppID),
	)
	defer logger.Sync()

	dbConn, err := driver.GetDBConnection(&driver.DBConfig{
		User:     option.Database.User,
		Password: option.Database.Password,
		MaxConn:  option.Database.MaxConn,
		Protocol: option.Database.Protocol,
		Driver:   option.Database.Driver,
		Host:     option.Database.Host,
		Port:     option.Database.Port,
		Query:    option.Database.Query,
		Schema:   option.Database.Schema,
	})
	if err != nil {
		log.Fatalf("Failed to create DB connection: %s\n", err)
	}
	logger.Debug("Create db connection instance", zap.String("db.driver", option.Database.Driver),
		zap.String("db.schema", option.Database.Schema),
		zap.String("db.host", option.Database.Host),
	)

	rdb := driver.NewRedisClient(option.KVStore.Host, option.KVStore.Port, option.KVStore.Password)

	queue, err := offline.OpenQueue(option.Offline.QueuePath)
	if err != nil {
		log.Fatalf("Failed to open update queue: %s\n", err)
	}
	defer queue.Close()

	UUIDGenerator := uuid.NewNanoIDGenerator(option.Security.IDLength)
	UserRepo := user.NewUserRepository(dbConn, UUIDGenerator)
	UserUseCase := user.NewUserUseCase(UserRepo)

	CourseRepo := course.NewCourseRepository(dbConn)
	ProgressRepo := progress.NewProgressRepository(rdb)
	EnrollmentRepo := enrollment.NewEnrollmentRepository(rdb)

	Orchestrator := enrollment.NewOrchestrator(EnrollmentRepo, ProgressRepo, CourseRepo, logger)

	Flusher := offline.NewFlusher(queue, ProgressRepo, offline.RetryPolicy{
		MaxAttempts: option.Offline.MaxAttempts,
		BaseDelay:   option.Offline.BaseDelay,
		MaxDelay:    option.Offline.MaxDelay,
	}, logger)
	flushCtx, stopFlusher := context.WithCancel(context.Background())
	defer stopFlusher()
	go Flusher.Run(flushCtx, option.Offline.FlushInterval)

	ProgressUseCase := progress.NewProgressUseCase(
		ProgressRepo, CourseRepo, Orchestrator, queue, Flusher,
		progress.Policy{
			Threshold:          option.Progress.CompletionThreshold,
			IdleTimeout:        option.Progress.IdleTimeout,
			SeekJump:           progress.DefaultPolicy().SeekJump,
			TrustFirstDuration: option.Progress.TrustFirstDuration,
		},
		logger,
	)

	AccessUseCase := access.NewAccessEngine(domain.AccessConfig{
		RequireAuthentication: option.Access.RequireAuthentication,
		RequireEnrollment:     option.Access.RequireEnrollment,
		CheckSequentialUnlock: option.Access.CheckSequentialUnlock,
		AllowPreviewLessons:   option.Access.AllowPreviewLessons,
	}, CourseRepo, EnrollmentRepo, ProgressRepo, logger)

	ihttp.Serve(dbConn, rdb, option, UserUseCase, UserRepo, ProgressUseCase, AccessUseCase, Orchestrator, logger)
}
