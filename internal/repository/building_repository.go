package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/propertyhub/maintenance-service/internal/domain"
)

// BuildingRepository stores buildings and their apartments.
type BuildingRepository interface {
	CreateBuilding(ctx context.Context, building *domain.Building) error
	ListBuildings(ctx context.Context, limit, offset int) ([]domain.Building, error)
	GetBuildingByID(ctx context.Context, id string) (*domain.Building, error)
	CreateApartment(ctx context.Context, apartment *domain.Apartment) error
	ListApartments(ctx context.Context, buildingID string) ([]domain.Apartment, error)
	GetApartmentByID(ctx context.Context, id string) (*domain.Apartment, error)
}

type buildingRepository struct {
	pool *pgxpool.Pool
}

// NewBuildingRepository builds the repository.
func NewBuildingRepository(pool *pgxpool.Pool) BuildingRepository {
	return &buildingRepository{pool: pool}
}

func (r *buildingRepository) CreateBuilding(ctx context.Context, building *domain.Building) error {
	const query = `
        INSERT INTO buildings (name, address)
        VALUES ($1,$2)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query, building.Name, building.Address).
		Scan(&building.ID, &building.CreatedAt, &building.UpdatedAt)
}

func (r *buildingRepository) ListBuildings(ctx context.Context, limit, offset int) ([]domain.Building, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, name, address, created_at, updated_at
        FROM buildings ORDER BY name ASC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Building
	for rows.Next() {
		var building domain.Building
		if err := rows.Scan(&building.ID, &building.Name, &building.Address, &building.CreatedAt, &building.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, building)
	}
	return result, rows.Err()
}

func (r *buildingRepository) GetBuildingByID(ctx context.Context, id string) (*domain.Building, error) {
	const query = `SELECT id, name, address, created_at, updated_at FROM buildings WHERE id=$1`
	var building domain.Building
	if err := r.pool.QueryRow(ctx, query, id).
		Scan(&building.ID, &building.Name, &building.Address, &building.CreatedAt, &building.UpdatedAt); err != nil {
		return nil, err
	}
	return &building, nil
}

func (r *buildingRepository) CreateApartment(ctx context.Context, apartment *domain.Apartment) error {
	const query = `
        INSERT INTO apartments (building_id, number, floor)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query, apartment.BuildingID, apartment.Number, apartment.Floor).
		Scan(&apartment.ID, &apartment.CreatedAt, &apartment.UpdatedAt)
}

func (r *buildingRepository) ListApartments(ctx context.Context, buildingID string) ([]domain.Apartment, error) {
	const query = `
        SELECT id, building_id, number, floor, created_at, updated_at
        FROM apartments WHERE building_id=$1 ORDER BY number ASC`
	rows, err := r.pool.Query(ctx, query, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Apartment
	for rows.Next() {
		var apartment domain.Apartment
		if err := rows.Scan(&apartment.ID, &apartment.BuildingID, &apartment.Number, &apartment.Floor, &apartment.CreatedAt, &apartment.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, apartment)
	}
	return result, rows.Err()
}

func (r *buildingRepository) GetApartmentByID(ctx context.Context, id string) (*domain.Apartment, error) {
	const query = `SELECT id, building_id, number, floor, created_at, updated_at FROM apartments WHERE id=$1`
	var apartment domain.Apartment
	if err := r.pool.QueryRow(ctx, query, id).
		Scan(&apartment.ID, &apartment.BuildingID, &apartment.Number, &apartment.Floor, &apartment.CreatedAt, &apartment.UpdatedAt); err != nil {
		return nil, err
	}
	return &apartment, nil
}
