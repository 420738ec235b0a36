// Package storetest provides an in-memory store.UnitOfWork for tests.
// Transactions work on a copy of the data set that replaces the committed
// state only when the callback succeeds, so rollback paths are observable.
package storetest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"picker-service/internal/models"
	"picker-service/internal/store"
	apperrors "picker-service/pkg/errors"
)

type dataset struct {
	seq        int64
	products   map[int64]models.Product
	inventory  map[int64]models.Inventory
	customers  map[int64]models.Customer
	orders     map[int64]models.Order
	items      map[int64]models.OrderItem
	activities map[int64]models.PickingActivity
	crates     map[int64]models.CrateLabel
	agents     map[int64]models.Agent
}

func newDataset() *dataset {
	return &dataset{
		products:   map[int64]models.Product{},
		inventory:  map[int64]models.Inventory{},
		customers:  map[int64]models.Customer{},
		orders:     map[int64]models.Order{},
		items:      map[int64]models.OrderItem{},
		activities: map[int64]models.PickingActivity{},
		crates:     map[int64]models.CrateLabel{},
		agents:     map[int64]models.Agent{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *dataset) clone() *dataset {
	return &dataset{
		seq:        d.seq,
		products:   cloneMap(d.products),
		inventory:  cloneMap(d.inventory),
		customers:  cloneMap(d.customers),
		orders:     cloneMap(d.orders),
		items:      cloneMap(d.items),
		activities: cloneMap(d.activities),
		crates:     cloneMap(d.crates),
		agents:     cloneMap(d.agents),
	}
}

func (d *dataset) nextID() int64 {
	d.seq++
	return d.seq
}

// Store is an in-memory UnitOfWork
type Store struct {
	*repo

	mu       sync.Mutex
	data     *dataset
	failures map[string]error
	txCount  int
}

// New returns an empty Store
func New() *Store {
	s := &Store{data: newDataset(), failures: map[string]error{}}
	s.repo = &repo{s: s}
	return s
}

// FailOn makes every subsequent call of the named Repository method return err
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

// Commits reports how many transactions were committed
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

// RunInTx implements store.UnitOfWork. Transactions are fully serialized.
func (s *Store) RunInTx(ctx context.Context, fn func(store.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&repo{s: s, tx: work}); err != nil {
		return err
	}
	s.data = work
	s.txCount++
	return nil
}

type repo struct {
	s  *Store
	tx *dataset
}

// with runs fn against the transaction's data set, or the committed one
// under the store lock when used outside a transaction
func (r *repo) with(method string, fn func(d *dataset) error) error {
	if r.tx != nil {
		if err := r.s.failures[method]; err != nil {
			return err
		}
		return fn(r.tx)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failures[method]; err != nil {
		return err
	}
	return fn(r.s.data)
}

func page[T any](rows []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 100
	}
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func (r *repo) FindProductByExternalID(ctx context.Context, externalID int64) (*models.Product, error) {
	var out *models.Product
	err := r.with("FindProductByExternalID", func(d *dataset) error {
		for _, p := range d.products {
			if p.ProductID == externalID {
				p := p
				out = &p
			}
		}
		return nil
	})
	return out, err
}

func (r *repo) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var out *models.Product
	err := r.with("GetProduct", func(d *dataset) error {
		p, ok := d.products[id]
		if !ok {
			return apperrors.NotFound("product", id)
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *repo) ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error) {
	var out []models.Product
	err := r.with("ListProducts", func(d *dataset) error {
		rows := make([]models.Product, 0, len(d.products))
		for _, p := range d.products {
			rows = append(rows, p)
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
		out = page(rows, limit, offset)
		return nil
	})
	return out, err
}

func (r *repo) UpsertProduct(ctx context.Context, p *models.Product) error {
	return r.with("UpsertProduct", func(d *dataset) error {
		now := time.Now()
		for id, existing := range d.products {
			if existing.ProductID == p.ProductID {
				continue
			}
			if p.Slug != nil && existing.Slug != nil && *p.Slug == *existing.Slug {
				return &apperrors.ErrConflict{Message: fmt.Sprintf("slug %q already used by product %d", *p.Slug, id)}
			}
		}
		for id, existing := range d.products {
			if existing.ProductID == p.ProductID {
				p.ID = id
				p.CreatedAt = existing.CreatedAt
				p.UpdatedAt = now
				d.products[id] = *p
				return nil
			}
		}
		p.ID = d.nextID()
		p.CreatedAt, p.UpdatedAt = now, now
		d.products[p.ID] = *p
		return nil
	})
}

func (r *repo) DeleteProduct(ctx context.Context, id int64) error {
	return r.with("DeleteProduct", func(d *dataset) error {
		if _, ok := d.products[id]; !ok {
			return apperrors.NotFound("product", id)
		}
		for _, item := range d.items {
			if item.ProductID == id {
				return &apperrors.ErrConflict{Message: "product is referenced by order items"}
			}
		}
		for invID, inv := range d.inventory {
			if inv.ProductID == id {
				delete(d.inventory, invID)
			}
		}
		delete(d.products, id)
		return nil
	})
}

func (r *repo) FindInventory(ctx context.Context, productID, storeID int64) (*models.Inventory, error) {
	var out *models.Inventory
	err := r.with("FindInventory", func(d *dataset) error {
		for _, inv := range d.inventory {
			if inv.ProductID == productID && inv.StoreID == storeID {
				inv := inv
				out = &inv
			}
		}
		return nil
	})
	return out, err
}

func (r *repo) UpsertInventory(ctx context.Context, inv *models.Inventory) error {
	return r.with("UpsertInventory", func(d *dataset) error {
		if _, ok := d.products[inv.ProductID]; !ok {
			return &apperrors.ErrConflict{Message: "inventory references a missing product"}
		}
		now := time.Now()
		for id, existing := range d.inventory {
			if existing.ProductID == inv.ProductID && existing.StoreID == inv.StoreID {
				inv.ID = id
				inv.CreatedAt = existing.CreatedAt
				inv.UpdatedAt = now
				d.inventory[id] = *inv
				return nil
			}
		}
		inv.ID = d.nextID()
		inv.CreatedAt, inv.UpdatedAt = now, now
		d.inventory[inv.ID] = *inv
		return nil
	})
}

func (r *repo) DecrementInventoryStock(ctx context.Context, productID, storeID int64, quantity float64) (float64, error) {
	var stock float64
	err := r.with("DecrementInventoryStock", func(d *dataset) error {
		for id, inv := range d.inventory {
			if inv.ProductID == productID && inv.StoreID == storeID {
				inv.Stock = math.Max(inv.Stock-quantity, 0)
				inv.UpdatedAt = time.Now()
				d.inventory[id] = inv
				stock = inv.Stock
				return nil
			}
		}
		return apperrors.NotFound("inventory", fmt.Sprintf("%d/%d", productID, storeID))
	})
	return stock, err
}

func (r *repo) FindCustomerByExternalID(ctx context.Context, customerID string) (*models.Customer, error) {
	var out *models.Customer
	err := r.with("FindCustomerByExternalID", func(d *dataset) error {
		for _, c := range d.customers {
			if c.CustomerID == customerID {
				c := c
				out = &c
			}
		}
		return nil
	})
	return out, err
}

func (r *repo) UpsertCustomer(ctx context.Context, c *models.Customer) error {
	return r.with("UpsertCustomer", func(d *dataset) error {
		now := time.Now()
		for id, existing := range d.customers {
			if existing.CustomerID == c.CustomerID {
				c.ID = id
				c.CreatedAt = existing.CreatedAt
				c.UpdatedAt = now
				d.customers[id] = *c
				return nil
			}
		}
		c.ID = d.nextID()
		c.CreatedAt, c.UpdatedAt = now, now
		d.customers[c.ID] = *c
		return nil
	})
}

func (r *repo) DeleteCustomer(ctx context.Context, id int64) error {
	return r.with("DeleteCustomer", func(d *dataset) error {
		if _, ok := d.customers[id]; !ok {
			return apperrors.NotFound("customer", id)
		}
		delete(d.customers, id)
		return nil
	})
}

func (r *repo) FindOrderByExternalID(ctx context.Context, externalID int64) (*models.Order, error) {
	var out *models.Order
	err := r.with("FindOrderByExternalID", func(d *dataset) error {
		for _, o := range d.orders {
			if o.OrderID == externalID {
				o := o
				out = &o
			}
		}
		return nil
	})
	return out, err
}

func (r *repo) FindOrderByReference(ctx context.Context, reference string) (*models.Order, error) {
	var out *models.Order
	err := r.with("FindOrderByReference", func(d *dataset) error {
		for _, o := range d.orders {
			if o.ReferenceNumber == reference {
				o := o
				out = &o
			}
		}
		return nil
	})
	return out, err
}

func (r *repo) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var out *models.Order
	err := r.with("GetOrder", func(d *dataset) error {
		o, ok := d.orders[id]
		if !ok {
			return apperrors.NotFound("order", id)
		}
		out = &o
		return nil
	})
	return out, err
}

func (r *repo) GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	var out *models.Order
	err := r.with("GetOrderForUpdate", func(d *dataset) error {
		o, ok := d.orders[id]
		if !ok {
			return apperrors.NotFound("order", id)
		}
		out = &o
		return nil
	})
	return out, err
}

func (r *repo) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error) {
	var out []models.Order
	err := r.with("ListOrders", func(d *dataset) error {
		rows := []models.Order{}
		for _, o := range d.orders {
			if filter.Status == "" || o.Status == filter.Status {
				rows = append(rows, o)
			}
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
		out = page(rows, filter.Limit, filter.Offset)
		return nil
	})
	return out, err
}

func (r *repo) CreateOrder(ctx context.Context, o *models.Order) error {
	return r.with("CreateOrder", func(d *dataset) error {
		for _, existing := range d.orders {
			if existing.OrderID == o.OrderID || existing.ReferenceNumber == o.ReferenceNumber {
				return &apperrors.ErrConflict{Message: "duplicate order identity"}
			}
		}
		now := time.Now()
		o.ID = d.nextID()
		o.CreatedAt, o.UpdatedAt = now, now
		d.orders[o.ID] = *o
		return nil
	})
}

func (r *repo) UpdatePickingStatus(ctx context.Context, orderID int64, status models.PickingStatus) error {
	return r.with("UpdatePickingStatus", func(d *dataset) error {
		o, ok := d.orders[orderID]
		if !ok {
			return apperrors.NotFound("order", orderID)
		}
		o.PickingStatus = status
		o.UpdatedAt = time.Now()
		d.orders[orderID] = o
		return nil
	})
}

func (r *repo) MarkOrderPacked(ctx context.Context, orderID int64, packedAt time.Time) error {
	return r.with("MarkOrderPacked", func(d *dataset) error {
		o, ok := d.orders[orderID]
		if !ok {
			return apperrors.NotFound("order", orderID)
		}
		o.Status = models.OrderStatusPacked
		o.PickingStatus = models.PickingCompleted
		o.PackedAt = &packedAt
		o.UpdatedAt = time.Now()
		d.orders[orderID] = o
		return nil
	})
}

func (r *repo) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	return r.with("CreateOrderItem", func(d *dataset) error {
		if _, ok := d.orders[item.OrderID]; !ok {
			return &apperrors.ErrConflict{Message: "order item references a missing order"}
		}
		if _, ok := d.products[item.ProductID]; !ok {
			return &apperrors.ErrConflict{Message: "order item references a missing product"}
		}
		now := time.Now()
		item.ID = d.nextID()
		item.CreatedAt, item.UpdatedAt = now, now
		d.items[item.ID] = *item
		return nil
	})
}

func (r *repo) ListOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var out []models.OrderItem
	err := r.with("ListOrderItems", func(d *dataset) error {
		out = []models.OrderItem{}
		for _, item := range d.items {
			if item.OrderID == orderID {
				out = append(out, item)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

func (r *repo) UpdatePickedQuantity(ctx context.Context, itemID int64, quantity float64) error {
	return r.with("UpdatePickedQuantity", func(d *dataset) error {
		item, ok := d.items[itemID]
		if !ok {
			return apperrors.NotFound("order item", itemID)
		}
		if quantity < 0 || quantity > item.OrderedQuantity {
			return fmt.Errorf("check constraint violated: picked %v of %v", quantity, item.OrderedQuantity)
		}
		item.PickedQuantity = quantity
		item.UpdatedAt = time.Now()
		d.items[itemID] = item
		return nil
	})
}

func (r *repo) CreatePickingActivity(ctx context.Context, a *models.PickingActivity) error {
	return r.with("CreatePickingActivity", func(d *dataset) error {
		a.ID = d.nextID()
		a.PickedAt = time.Now()
		d.activities[a.ID] = *a
		return nil
	})
}

func (r *repo) ListPickingActivities(ctx context.Context, orderID int64) ([]models.PickingActivity, error) {
	var out []models.PickingActivity
	err := r.with("ListPickingActivities", func(d *dataset) error {
		out = []models.PickingActivity{}
		for _, a := range d.activities {
			if a.OrderID == orderID {
				out = append(out, a)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

func (r *repo) CreateCrateLabel(ctx context.Context, c *models.CrateLabel) error {
	return r.with("CreateCrateLabel", func(d *dataset) error {
		for _, existing := range d.crates {
			if existing.Label == c.Label {
				return &apperrors.ErrConflict{Message: "duplicate crate label"}
			}
		}
		c.ID = d.nextID()
		c.CreatedAt = time.Now()
		d.crates[c.ID] = *c
		return nil
	})
}

func (r *repo) FindCrateLabel(ctx context.Context, label string) (*models.CrateLabel, error) {
	var out *models.CrateLabel
	err := r.with("FindCrateLabel", func(d *dataset) error {
		for _, c := range d.crates {
			if c.Label == label {
				c := c
				out = &c
			}
		}
		return nil
	})
	return out, err
}

func (r *repo) ListCrateLabels(ctx context.Context, orderID int64) ([]models.CrateLabel, error) {
	var out []models.CrateLabel
	err := r.with("ListCrateLabels", func(d *dataset) error {
		out = []models.CrateLabel{}
		for _, c := range d.crates {
			if c.OrderID == orderID {
				out = append(out, c)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

func (r *repo) CreateAgent(ctx context.Context, a *models.Agent) error {
	return r.with("CreateAgent", func(d *dataset) error {
		for _, existing := range d.agents {
			if existing.Username == a.Username {
				return &apperrors.ErrConflict{Message: "duplicate username"}
			}
		}
		now := time.Now()
		a.ID = d.nextID()
		a.CreatedAt, a.UpdatedAt = now, now
		d.agents[a.ID] = *a
		return nil
	})
}

func (r *repo) FindAgentByUsername(ctx context.Context, username string) (*models.Agent, error) {
	var out *models.Agent
	err := r.with("FindAgentByUsername", func(d *dataset) error {
		for _, a := range d.agents {
			if a.Username == username {
				a := a
				out = &a
			}
		}
		return nil
	})
	return out, err
}

func (r *repo) GetAgent(ctx context.Context, id int64) (*models.Agent, error) {
	var out *models.Agent
	err := r.with("GetAgent", func(d *dataset) error {
		a, ok := d.agents[id]
		if !ok {
			return apperrors.NotFound("agent", id)
		}
		out = &a
		return nil
	})
	return out, err
}

func (r *repo) ListAgents(ctx context.Context, limit, offset int) ([]models.Agent, error) {
	var out []models.Agent
	err := r.with("ListAgents", func(d *dataset) error {
		rows := make([]models.Agent, 0, len(d.agents))
		for _, a := range d.agents {
			rows = append(rows, a)
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
		out = page(rows, limit, offset)
		return nil
	})
	return out, err
}

// Compile-time check
var _ store.UnitOfWork = (*Store)(nil)
