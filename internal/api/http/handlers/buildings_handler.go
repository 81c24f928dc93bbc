package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/propertyhub/maintenance-service/internal/api/dto"
	"github.com/propertyhub/maintenance-service/internal/domain"
	"github.com/propertyhub/maintenance-service/internal/repository"
	apperrors "github.com/propertyhub/maintenance-service/pkg/util"
)

// BuildingsHandler exposes building/apartment reference data.
type BuildingsHandler struct {
	buildings repository.BuildingRepository
}

// NewBuildingsHandler constructs handler.
func NewBuildingsHandler(buildings repository.BuildingRepository) *BuildingsHandler {
	return &BuildingsHandler{buildings: buildings}
}

// CreateBuilding POST /staff/buildings (admin only).
func (h *BuildingsHandler) CreateBuilding(c *fiber.Ctx) error {
	var req dto.CreateBuildingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Name) == "" {
		return apperrors.NewValidationError("name required", nil)
	}
	building := &domain.Building{Name: strings.TrimSpace(req.Name), Address: strings.TrimSpace(req.Address)}
	if err := h.buildings.CreateBuilding(c.Context(), building); err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": buildingResponse(building)})
}

// ListBuildings GET /staff/buildings.
func (h *BuildingsHandler) ListBuildings(c *fiber.Ctx) error {
	limit, offset := parsePaging(c)
	buildings, err := h.buildings.ListBuildings(c.Context(), limit, offset)
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.BuildingResponse, 0, len(buildings))
	for i := range buildings {
		items = append(items, buildingResponse(&buildings[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateApartment POST /staff/buildings/:id/apartments (admin only).
func (h *BuildingsHandler) CreateApartment(c *fiber.Ctx) error {
	buildingID := c.Params("id")
	if _, err := h.buildings.GetBuildingByID(c.Context(), buildingID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("building", map[string]any{"building_id": buildingID})
		}
		return apperrors.MapError(err)
	}
	var req dto.CreateApartmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Number) == "" {
		return apperrors.NewValidationError("number required", nil)
	}
	apartment := &domain.Apartment{BuildingID: buildingID, Number: strings.TrimSpace(req.Number), Floor: req.Floor}
	if err := h.buildings.CreateApartment(c.Context(), apartment); err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": apartmentResponse(apartment)})
}

// ListApartments GET /staff/buildings/:id/apartments.
func (h *BuildingsHandler) ListApartments(c *fiber.Ctx) error {
	apartments, err := h.buildings.ListApartments(c.Context(), c.Params("id"))
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.ApartmentResponse, 0, len(apartments))
	for i := range apartments {
		items = append(items, apartmentResponse(&apartments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func buildingResponse(building *domain.Building) dto.BuildingResponse {
	return dto.BuildingResponse{
		ID:        building.ID,
		Name:      building.Name,
		Address:   building.Address,
		CreatedAt: building.CreatedAt,
	}
}

func apartmentResponse(apartment *domain.Apartment) dto.ApartmentResponse {
	return dto.ApartmentResponse{
		ID:         apartment.ID,
		BuildingID: apartment.BuildingID,
		Number:     apartment.Number,
		Floor:      apartment.Floor,
		CreatedAt:  apartment.CreatedAt,
	}
}
