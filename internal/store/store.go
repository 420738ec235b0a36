package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"picker-service/internal/models"
	apperrors "picker-service/pkg/errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository is the set of persistence operations the core depends on.
// Find* methods return (nil, nil) when the row does not exist; Get* methods
// return *apperrors.ErrNotFound.
type Repository interface {
	FindProductByExternalID(ctx context.Context, externalID int64) (*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error)
	UpsertProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error

	FindInventory(ctx context.Context, productID, storeID int64) (*models.Inventory, error)
	UpsertInventory(ctx context.Context, inv *models.Inventory) error
	DecrementInventoryStock(ctx context.Context, productID, storeID int64, quantity float64) (float64, error)

	FindCustomerByExternalID(ctx context.Context, customerID string) (*models.Customer, error)
	UpsertCustomer(ctx context.Context, customer *models.Customer) error
	DeleteCustomer(ctx context.Context, id int64) error

	FindOrderByExternalID(ctx context.Context, externalID int64) (*models.Order, error)
	FindOrderByReference(ctx context.Context, reference string) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	UpdatePickingStatus(ctx context.Context, orderID int64, status models.PickingStatus) error
	MarkOrderPacked(ctx context.Context, orderID int64, packedAt time.Time) error

	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	ListOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	UpdatePickedQuantity(ctx context.Context, itemID int64, quantity float64) error

	CreatePickingActivity(ctx context.Context, activity *models.PickingActivity) error
	ListPickingActivities(ctx context.Context, orderID int64) ([]models.PickingActivity, error)

	CreateCrateLabel(ctx context.Context, crate *models.CrateLabel) error
	FindCrateLabel(ctx context.Context, label string) (*models.CrateLabel, error)
	ListCrateLabels(ctx context.Context, orderID int64) ([]models.CrateLabel, error)

	CreateAgent(ctx context.Context, agent *models.Agent) error
	FindAgentByUsername(ctx context.Context, username string) (*models.Agent, error)
	GetAgent(ctx context.Context, id int64) (*models.Agent, error)
	ListAgents(ctx context.Context, limit, offset int) ([]models.Agent, error)
}

// UnitOfWork runs fn inside one transaction: committed when fn returns nil,
// rolled back on any error or panic.
type UnitOfWork interface {
	Repository
	RunInTx(ctx context.Context, fn func(Repository) error) error
}

// OrderFilter narrows ListOrders
type OrderFilter struct {
	Status string
	Limit  int
	Offset int
}

// Store is the Postgres implementation of UnitOfWork
type Store struct {
	db *sqlx.DB
	*queries
}

// queries runs against either the pool or an open transaction
type queries struct {
	q sqlx.ExtContext
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, queries: &queries{q: db}}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database reachability
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunInTx executes fn in a transaction
func (s *Store) RunInTx(ctx context.Context, fn func(Repository) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&queries{q: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// get runs a single-row query, returning found=false on sql.ErrNoRows
func (r *queries) get(ctx context.Context, dest interface{}, query string, args ...interface{}) (bool, error) {
	err := sqlx.GetContext(ctx, r.q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// exec runs a statement that must touch at least one row
func (r *queries) exec(ctx context.Context, notFound error, query string, args ...interface{}) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// translate maps Postgres constraint errors onto domain errors
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "23505":
		return &apperrors.ErrConflict{Message: fmt.Sprintf("duplicate value violates %s", pqErr.Constraint)}
	case "23503":
		return &apperrors.ErrConflict{Message: fmt.Sprintf("row is referenced by %s", pqErr.Constraint)}
	}
	return err
}

func limitOrDefault(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
