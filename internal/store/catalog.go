package store

import (
	"context"
	"fmt"

	"picker-service/internal/models"
	apperrors "picker-service/pkg/errors"

	"github.com/jmoiron/sqlx"
)

// FindProductByExternalID looks a product up by its upstream id
func (r *queries) FindProductByExternalID(ctx context.Context, externalID int64) (*models.Product, error) {
	var product models.Product
	found, err := r.get(ctx, &product, "SELECT * FROM products WHERE product_id = $1", externalID)
	if err != nil || !found {
		return nil, err
	}
	return &product, nil
}

// GetProduct retrieves a product by internal id
func (r *queries) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	found, err := r.get(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFound("product", id)
	}
	return &product, nil
}

// ListProducts pages through the catalog
func (r *queries) ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error) {
	products := []models.Product{}
	err := sqlx.SelectContext(ctx, r.q, &products,
		"SELECT * FROM products ORDER BY id LIMIT $1 OFFSET $2", limitOrDefault(limit), offset)
	return products, err
}

// UpsertProduct inserts a product or overwrites every field of the existing
// row with the same upstream id.
func (r *queries) UpsertProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (product_id, client_item_id, name, slug, images, status,
			average_rating, total_reviews, sold_by_weight)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (product_id) DO UPDATE SET
			client_item_id = EXCLUDED.client_item_id,
			name = EXCLUDED.name,
			slug = EXCLUDED.slug,
			images = EXCLUDED.images,
			status = EXCLUDED.status,
			average_rating = EXCLUDED.average_rating,
			total_reviews = EXCLUDED.total_reviews,
			sold_by_weight = EXCLUDED.sold_by_weight,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	_, err := r.get(ctx, p, query,
		p.ProductID, p.ClientItemID, p.Name, p.Slug, p.Images, p.Status,
		p.AverageRating, p.TotalReviews, p.SoldByWeight)
	return translate(err)
}

// DeleteProduct removes a product and its inventory rows; fails while order
// lines still reference it
func (r *queries) DeleteProduct(ctx context.Context, id int64) error {
	return r.exec(ctx, apperrors.NotFound("product", id), "DELETE FROM products WHERE id = $1", id)
}

// FindInventory looks up stock for an internal product id at a store
func (r *queries) FindInventory(ctx context.Context, productID, storeID int64) (*models.Inventory, error) {
	var inv models.Inventory
	found, err := r.get(ctx, &inv,
		"SELECT * FROM inventories WHERE product_id = $1 AND store_id = $2", productID, storeID)
	if err != nil || !found {
		return nil, err
	}
	return &inv, nil
}

// UpsertInventory inserts or overwrites the (product, store) row
func (r *queries) UpsertInventory(ctx context.Context, inv *models.Inventory) error {
	query := `
		INSERT INTO inventories (product_id, store_id, stock, tax, mrp, discount, unit,
			aisle, rack, shelf, status, location_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (product_id, store_id) DO UPDATE SET
			stock = EXCLUDED.stock,
			tax = EXCLUDED.tax,
			mrp = EXCLUDED.mrp,
			discount = EXCLUDED.discount,
			unit = EXCLUDED.unit,
			aisle = EXCLUDED.aisle,
			rack = EXCLUDED.rack,
			shelf = EXCLUDED.shelf,
			status = EXCLUDED.status,
			location_data = EXCLUDED.location_data,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	_, err := r.get(ctx, inv, query,
		inv.ProductID, inv.StoreID, inv.Stock, inv.Tax, inv.MRP, inv.Discount, inv.Unit,
		inv.Aisle, inv.Rack, inv.Shelf, inv.Status, inv.LocationData)
	return translate(err)
}

// DecrementInventoryStock subtracts quantity, clamping at zero, and returns the new stock
func (r *queries) DecrementInventoryStock(ctx context.Context, productID, storeID int64, quantity float64) (float64, error) {
	var stock float64
	found, err := r.get(ctx, &stock, `
		UPDATE inventories SET stock = GREATEST(stock - $1, 0), updated_at = NOW()
		WHERE product_id = $2 AND store_id = $3
		RETURNING stock`, quantity, productID, storeID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, apperrors.NotFound("inventory", fmt.Sprintf("%d/%d", productID, storeID))
	}
	return stock, nil
}

// FindCustomerByExternalID looks a customer up by upstream id
func (r *queries) FindCustomerByExternalID(ctx context.Context, customerID string) (*models.Customer, error) {
	var customer models.Customer
	found, err := r.get(ctx, &customer, "SELECT * FROM customers WHERE customer_id = $1", customerID)
	if err != nil || !found {
		return nil, err
	}
	return &customer, nil
}

// UpsertCustomer inserts or fully replaces a customer
func (r *queries) UpsertCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (customer_id, name, email, phone, address, city, pincode, customer_metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (customer_id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			pincode = EXCLUDED.pincode,
			customer_metadata = EXCLUDED.customer_metadata,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	_, err := r.get(ctx, c, query,
		c.CustomerID, c.Name, c.Email, c.Phone, c.Address, c.City, c.Pincode, c.Metadata)
	return translate(err)
}

// DeleteCustomer removes a customer by internal id
func (r *queries) DeleteCustomer(ctx context.Context, id int64) error {
	return r.exec(ctx, apperrors.NotFound("customer", id), "DELETE FROM customers WHERE id = $1", id)
}
