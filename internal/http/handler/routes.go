package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"companydir/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, store Pinger, svc service.CompanyService, log *zap.Logger) {
	app.Get("/health", HealthCheck(store))
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api")
	companies := api.Group("/companies")
	companies.Get("/", ListCompanies(svc, log))
	companies.Post("/", CreateCompany(svc, log))
	// Registered before /:id so "filters" is never taken as an id.
	companies.Get("/filters/values", FilterValues(svc, log))
	companies.Get("/:id", GetCompany(svc, log))
}
