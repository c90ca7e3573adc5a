package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"librarycore/internal/config"
	"librarycore/internal/database"
	"librarycore/internal/handlers"
	"librarycore/internal/repositories"
	"librarycore/internal/services"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		log.Error("open database", "err", err)
		os.Exit(1)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Error("get generic DB", "err", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Error("migrate", "err", err)
			os.Exit(1)
		}
		log.Info("schema migrated")
	}

	bookRepo := repositories.NewBookRepository(db)
	bookCopyRepo := repositories.NewBookCopyRepository(db)
	customerRepo := repositories.NewCustomerRepository(db)
	authorRepo := repositories.NewAuthorRepository(db)
	rentalRepo := repositories.NewRentalRepository(db)
	invoiceRepo := repositories.NewInvoiceRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)
	roomRepo := repositories.NewStudyRoomRepository(db)
	reservationRepo := repositories.NewReservationRepository(db)
	eventRepo := repositories.NewEventRepository(db)
	attendanceRepo := repositories.NewAttendanceRepository(db)

	tx := database.NewTransactor(db, database.TxOptions{
		MaxAttempts: cfg.TxMaxAttempts,
		BaseDelay:   cfg.TxBaseDelay,
		Logger:      log,
	})
	ids := services.NewIDAllocator(repositories.NewSequenceRepository(db))
	ledger := services.NewLedger(bookCopyRepo, reservationRepo, attendanceRepo)

	billingService := services.NewBillingService(tx, ids, invoiceRepo, paymentRepo, log)
	rentalService := services.NewRentalService(services.RentalDeps{
		Tx:           tx,
		IDs:          ids,
		Ledger:       ledger,
		Billing:      billingService,
		BookRepo:     bookRepo,
		CopyRepo:     bookCopyRepo,
		CustomerRepo: customerRepo,
		RentalRepo:   rentalRepo,
		Log:          log,
	}, cfg.LoanPeriodDays)
	schedulingService := services.NewSchedulingService(services.SchedulingDeps{
		Tx:             tx,
		IDs:            ids,
		Ledger:         ledger,
		RoomRepo:       roomRepo,
		ResRepo:        reservationRepo,
		EventRepo:      eventRepo,
		AttendanceRepo: attendanceRepo,
		CustomerRepo:   customerRepo,
		AuthorRepo:     authorRepo,
		Log:            log,
	})
	catalogService := services.NewCatalogService(tx, ids, bookRepo, bookCopyRepo, roomRepo, eventRepo, log)

	router := gin.New()
	router.Use(gin.Recovery(), handlers.RequestID(), handlers.AccessLog(log), handlers.CORS(cfg.CORSAllowedOrigins))

	handlers.RegisterRoutes(router, handlers.Services{
		Catalog:    catalogService,
		Rentals:    rentalService,
		Billing:    billingService,
		Scheduling: schedulingService,
		Health:     sqlDB.PingContext,
	}, cfg.JWTSecret)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting server", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown", "err", err)
	}
}
