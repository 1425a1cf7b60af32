package handler

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"companydir/internal/apperror"
	"companydir/internal/model"
	"companydir/internal/query"
	"companydir/internal/service"
)

// listParams copies the raw query string values. Missing keys read as "".
func listParams(c *fiber.Ctx) query.Params {
	return query.Params{
		Page:      c.Query("page"),
		Limit:     c.Query("limit"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Name:      c.Query("name"),
		Location:  c.Query("location"),
		Industry:  c.Query("industry"),
		Search:    c.Query("search"),
	}
}

// ListCompanies returns one page of companies matching the query string.
//
// @Summary      List companies
// @Tags         companies
// @Produce      json
// @Param        page       query  int     false  "Page number (default 1)"
// @Param        limit      query  int     false  "Page size (default 10, max 100)"
// @Param        sortBy     query  string  false  "name|location|industry|employees|founded"
// @Param        sortOrder  query  string  false  "asc|desc"
// @Param        name       query  string  false  "Name contains (case-insensitive)"
// @Param        location   query  string  false  "Location contains"
// @Param        industry   query  string  false  "Industry contains"
// @Param        search     query  string  false  "Matches name, location, industry or description"
// @Success      200  {object}  service.CompanyListResult
// @Failure      400  {object}  errorPayload
// @Failure      503  {object}  errorPayload
// @Router       /api/companies [get]
func ListCompanies(svc service.CompanyService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.List(c.UserContext(), listParams(c))
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.JSON(res)
	}
}

// GetCompany returns a single company.
//
// @Summary      Get company
// @Tags         companies
// @Produce      json
// @Param        id   path      string  true  "Company ID"
// @Success      200  {object}  model.Company
// @Failure      400  {object}  errorPayload
// @Failure      404  {object}  errorPayload
// @Router       /api/companies/{id} [get]
func GetCompany(svc service.CompanyService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		company, err := svc.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.JSON(company)
	}
}

// CreateCompany validates and stores a new company.
//
// @Summary      Create company
// @Tags         companies
// @Accept       json
// @Produce      json
// @Param        company  body      model.CompanyInput  true  "New company"
// @Success      201      {object}  model.Company
// @Failure      400      {object}  errorPayload
// @Router       /api/companies [post]
func CreateCompany(svc service.CompanyService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		in, err := decodeInput(c.Body())
		if err != nil {
			return writeServiceError(c, log, err)
		}
		company, err := svc.Create(c.UserContext(), in)
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(company)
	}
}

// FilterValues lists the distinct locations and industries.
//
// @Summary      Filter values
// @Tags         companies
// @Produce      json
// @Success      200  {object}  model.FilterValues
// @Router       /api/companies/filters/values [get]
func FilterValues(svc service.CompanyService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		values, err := svc.FilterValues(c.UserContext())
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.JSON(values)
	}
}

// decodeInput turns JSON decoding failures into validation errors that
// name the offending field where the decoder knows it.
func decodeInput(body []byte) (model.CompanyInput, error) {
	var in model.CompanyInput
	if len(body) == 0 {
		return in, apperror.NewValidation("body", "request body is required")
	}
	if err := json.Unmarshal(body, &in); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return in, apperror.NewValidation(typeErr.Field, fmt.Sprintf("must be of type %s", typeErr.Type))
		}
		return in, apperror.NewValidation("body", "malformed JSON")
	}
	return in, nil
}
