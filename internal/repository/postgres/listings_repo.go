package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hydit/hydit-backend/internal/models"
	"github.com/hydit/hydit-backend/internal/repository"
)

type listingsRepo struct{ q querier }

const listingColumns = `id, producer_id, quantity_kg, price_per_kg, location, energy_source,
	certification_details, status, created_at, updated_at`

func scanListing(row interface{ Scan(...any) error }) (models.HydrogenListing, error) {
	var l models.HydrogenListing
	err := row.Scan(&l.ID, &l.ProducerID, &l.QuantityKg, &l.PricePerKg, &l.Location,
		&l.EnergySource, &l.CertificationDetails, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	return l, notFound(err)
}

func (r *listingsRepo) Create(ctx context.Context, l models.HydrogenListing) (models.HydrogenListing, error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	row := r.q.QueryRow(ctx,
		`INSERT INTO hydrogen_listings(id, producer_id, quantity_kg, price_per_kg, location,
		        energy_source, certification_details, status)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING `+listingColumns,
		l.ID, l.ProducerID, l.QuantityKg, l.PricePerKg, l.Location,
		l.EnergySource, l.CertificationDetails, l.Status,
	)
	return scanListing(row)
}

func (r *listingsRepo) GetByID(ctx context.Context, id uuid.UUID) (models.HydrogenListing, error) {
	return scanListing(r.q.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM hydrogen_listings WHERE id=$1`, id))
}

func (r *listingsRepo) Update(ctx context.Context, id uuid.UUID, up repository.ListingUpdate) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE hydrogen_listings
		    SET quantity_kg           = COALESCE($2, quantity_kg),
		        price_per_kg          = COALESCE($3, price_per_kg),
		        location              = COALESCE($4, location),
		        energy_source         = COALESCE($5, energy_source),
		        certification_details = COALESCE($6, certification_details),
		        status                = COALESCE($7, status),
		        updated_at            = now()
		  WHERE id=$1`,
		id, up.QuantityKg, up.PricePerKg, up.Location, up.EnergySource, up.CertificationDetails, up.Status,
	)
	if err == nil && tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return err
}

func (r *listingsRepo) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	var remaining int64
	err := r.q.QueryRow(ctx,
		`UPDATE hydrogen_listings
		    SET quantity_kg = quantity_kg + $2, updated_at = now()
		  WHERE id=$1
		  RETURNING quantity_kg`,
		id, delta,
	).Scan(&remaining)
	return remaining, notFound(err)
}

func (r *listingsRepo) ListActive(ctx context.Context) ([]models.HydrogenListing, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+listingColumns+` FROM hydrogen_listings
		  WHERE status='active' ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return collectListings(rows)
}

func (r *listingsRepo) ListByProducer(ctx context.Context, producerID uuid.UUID) ([]models.HydrogenListing, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+listingColumns+` FROM hydrogen_listings
		  WHERE producer_id=$1 ORDER BY created_at DESC`, producerID)
	if err != nil {
		return nil, err
	}
	return collectListings(rows)
}

func collectListings(rows pgx.Rows) ([]models.HydrogenListing, error) {
	defer rows.Close()
	var out []models.HydrogenListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
