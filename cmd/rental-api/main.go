package main

import (
	bookinghandler "movez/internal/bookings/handler"
	bookingrepo "movez/internal/bookings/repository"
	bookingservice "movez/internal/bookings/service"
	bookingvalidator "movez/internal/bookings/validator"
	driverhandler "movez/internal/drivers/handler"
	driverrepo "movez/internal/drivers/repository"
	driverservice "movez/internal/drivers/service"
	drivervalidator "movez/internal/drivers/validator"
	notificationhandler "movez/internal/notifications/handler"
	paymenthandler "movez/internal/payments/handler"
	paymentrepo "movez/internal/payments/repository"
	paymentservice "movez/internal/payments/service"
	paymentvalidator "movez/internal/payments/validator"
	"movez/pkg/app"
	"movez/pkg/auth"
	"movez/pkg/config"
	"movez/pkg/events"
)

const ServiceName = "rental-api"

type services struct {
	bookings bookingservice.BookingService
	drivers  driverservice.DriverService
	payments paymentservice.PaymentService
}

func main() {
	cfg := config.Load(ServiceName)
	if cfg.JWTSecret == "" {
		cfg.Log.Fatal("JWT_SECRET is required to verify caller tokens")
	}
	cfg.SetMongo()
	cfg.SetRedis()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting rental API")

	publisher, closePublisher, err := events.Connect(cfg, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to set up event publishing", "error", err)
	}

	svc := initServices(cfg, publisher)

	serverApp := app.NewApplication(cfg)
	serverApp.OnShutdown(closePublisher)
	serverApp.SetApp(auth.NewVerifier(cfg.JWTSecret), initHandlers(cfg, svc)...)
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher) services {
	driverRepo := driverrepo.NewMongoDriverRepository(cfg)
	drivers := driverservice.NewDriverService(driverRepo, drivervalidator.NewDriverValidator(cfg.Log), cfg)

	bookingRepo := bookingrepo.NewMongoBookingRepository(cfg)
	bookings := bookingservice.NewBookingService(
		bookingRepo,
		bookingrepo.NewCarLockRepository(cfg),
		drivers,
		publisher,
		bookingvalidator.NewBookingValidator(cfg.Log),
		cfg,
	)

	payments := paymentservice.NewPaymentService(
		paymentrepo.NewMongoPaymentRepository(cfg),
		bookingRepo,
		publisher,
		paymentvalidator.NewPaymentValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Rental services initialized", "database", cfg.MongoDatabaseName, "currency", cfg.Currency)
	return services{bookings: bookings, drivers: drivers, payments: payments}
}

func initHandlers(cfg *config.Config, svc services) []app.Handler {
	return []app.Handler{
		bookinghandler.NewBookingHandler(svc.bookings, cfg.Log),
		driverhandler.NewDriverHandler(svc.drivers, cfg.Log),
		paymenthandler.NewPaymentHandler(svc.payments, cfg.Log, cfg.RecentFeedLimit),
		notificationhandler.NewNotificationHandler(svc.bookings, svc.payments, cfg.Log, cfg.RecentFeedLimit),
	}
}
