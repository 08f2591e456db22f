package main

import (
	bookinghandler "plotbook/internal/bookings/handler"
	bookingrepo "plotbook/internal/bookings/repository"
	bookingservice "plotbook/internal/bookings/service"
	"plotbook/internal/bookings/validator"
	"plotbook/internal/events"
	holdhandler "plotbook/internal/holds/handler"
	holdrepo "plotbook/internal/holds/repository"
	holdservice "plotbook/internal/holds/service"
	paymenthandler "plotbook/internal/payments/handler"
	paymentservice "plotbook/internal/payments/service"
	plothandler "plotbook/internal/plots/handler"
	plotrepo "plotbook/internal/plots/repository"
	plotservice "plotbook/internal/plots/service"
	projecthandler "plotbook/internal/projects/handler"
	projectrepo "plotbook/internal/projects/repository"
	projectservice "plotbook/internal/projects/service"
	"plotbook/pkg/app"
	"plotbook/pkg/clock"
	"plotbook/pkg/config"
)

const ServiceName = "plotbook"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting plotbook service")

	publisher, err := events.NewPublisher(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize event publisher", "error", err)
	}

	clk := clock.NewSystem()

	plotRepo := plotrepo.NewMongoPlotRepository(cfg)
	plotSvc := plotservice.NewPlotService(plotRepo, cfg)

	projectRepo := projectrepo.NewMongoProjectRepository(cfg)
	projectSvc := projectservice.NewProjectService(projectRepo, cfg)

	holdRepo := holdrepo.NewMongoHoldRepository(cfg)
	holdSvc := holdservice.NewHoldService(holdRepo, plotRepo, projectSvc, publisher, clk, cfg)

	bookingValidator := validator.NewBookingValidator(cfg.Log)
	bookingRepo := bookingrepo.NewMongoBookingRepository(cfg)
	bookingSvc := bookingservice.NewBookingService(
		bookingRepo,
		holdSvc,
		plotRepo,
		bookingValidator,
		publisher,
		clk,
		cfg,
	)

	paymentSvc := paymentservice.NewPaymentService(bookingRepo, bookingValidator, publisher, cfg)

	sweeper := holdservice.NewSweeper(holdRepo, plotRepo, bookingSvc, publisher, clk, cfg)
	sweeper.Start()

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		projecthandler.NewProjectHandler(projectSvc, cfg.Log),
		plothandler.NewPlotHandler(plotSvc, cfg.Log),
		holdhandler.NewHoldHandler(holdSvc, cfg.Log),
		bookinghandler.NewBookingHandler(bookingSvc, cfg.Log),
		paymenthandler.NewPaymentHandler(paymentSvc, cfg.Log),
	)
	serverApp.OnShutdown(sweeper.Stop)
	serverApp.OnShutdown(func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	})
	serverApp.Run()
}
