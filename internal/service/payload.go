package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"picker-service/internal/models"
	apperrors "picker-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// Upstream payloads are loosely typed: numbers arrive as strings, ids as
// floats, nested blocks as null. The flex types below decode whatever they
// are given and fall back to the zero value instead of failing the record.

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	*f = 0
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			*f = flexFloat(n)
		}
	}
	return nil
}

type flexInt int64

// Integral values parse exactly so ids above 2^53 keep every digit; only
// fractional or exponent forms go through float truncation.
func (i *flexInt) UnmarshalJSON(b []byte) error {
	*i = 0
	text := string(bytes.TrimSpace(b))
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		text = strings.TrimSpace(s)
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		*i = flexInt(n)
		return nil
	}

	var f flexFloat
	_ = f.UnmarshalJSON(b)
	*i = flexInt(math.Trunc(float64(f)))
	return nil
}

type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	*s = ""
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = flexString(strings.TrimSpace(str))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*s = flexString(n.String())
	}
	return nil
}

func (s flexString) ptr() *string {
	if s == "" {
		return nil
	}
	v := string(s)
	return &v
}

func (s flexString) or(def string) string {
	if s == "" {
		return def
	}
	return string(s)
}

type flexBool bool

func (v *flexBool) UnmarshalJSON(b []byte) error {
	*v = false
	var bv bool
	if err := json.Unmarshal(b, &bv); err == nil {
		*v = flexBool(bv)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, _ := strconv.ParseBool(strings.TrimSpace(s))
		*v = flexBool(parsed)
		return nil
	}
	var f flexFloat
	_ = f.UnmarshalJSON(b)
	*v = f != 0
	return nil
}

type flexMoney struct {
	decimal.Decimal
}

func (m *flexMoney) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		d = decimal.Zero
	}
	m.Decimal = d
	return nil
}

// rawJSON keeps a nested value for storage, dropping explicit nulls
type rawJSON json.RawMessage

func (r *rawJSON) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		*r = nil
		return nil
	}
	*r = append((*r)[:0], b...)
	return nil
}

func (r rawJSON) model() models.JSON {
	if len(r) == 0 {
		return nil
	}
	return models.JSON(r)
}

func isNull(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

func isArray(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '['
}

// decodeObject decodes a JSON object leniently: a nested value of the wrong
// shape leaves that field zeroed rather than failing the whole record.
func decodeObject(b []byte, v interface{}) error {
	if !isObject(b) {
		return errors.New("not a JSON object")
	}
	err := json.Unmarshal(b, v)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return nil
	}
	return err
}

// splitRecords normalizes a single object or a list of objects into a list
func splitRecords(b []byte) ([]json.RawMessage, bool) {
	switch {
	case isArray(b):
		var list []json.RawMessage
		if err := json.Unmarshal(b, &list); err != nil {
			return nil, false
		}
		return list, true
	case isObject(b):
		return []json.RawMessage{json.RawMessage(b)}, true
	}
	return nil, false
}

func invalidPayload(msg string) error {
	return &apperrors.ErrValidation{Code: apperrors.CodeInvalidPayload, Message: msg}
}

// Envelope is the order-service webhook acknowledgment wrapper
type Envelope struct {
	Code   flexInt         `json:"code"`
	Status flexString      `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a raw webhook body
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := decodeObject(body, &env); err != nil {
		return nil, invalidPayload("webhook body is not a JSON object")
	}
	return &env, nil
}

// Orders validates the acknowledgment and resolves the order records. Shapes
// are tried in a fixed order: data.order, data.data.order, a bare list of
// orders, a bare order object. Anything else is INVALID_PAYLOAD.
func (e *Envelope) Orders() ([]json.RawMessage, error) {
	if e.Code != 200 || e.Status != "SUCCESS" {
		return nil, invalidPayload("Webhook payload is invalid")
	}

	container, ok := orderContainer(e.Data)
	if !ok {
		return nil, invalidPayload("Webhook payload missing order data")
	}
	records, ok := splitRecords(container)
	if !ok {
		return nil, invalidPayload("Webhook order data is neither an object nor a list")
	}
	return records, nil
}

func orderContainer(data json.RawMessage) (json.RawMessage, bool) {
	if isArray(data) {
		return data, true
	}
	if !isObject(data) {
		return nil, false
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false
	}
	if v, ok := obj["order"]; ok && !isNull(v) {
		return v, true
	}
	if inner, ok := obj["data"]; ok && isObject(inner) {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(inner, &nested); err == nil {
			if v, ok := nested["order"]; ok && !isNull(v) {
				return v, true
			}
		}
	}
	if _, ok := obj["id"]; ok {
		return data, true
	}
	return nil, false
}

type namedRef struct {
	ID   flexString `json:"id"`
	Name flexString `json:"name"`
}

type locationRef struct {
	ID flexInt `json:"id"`
}

type orderRecord struct {
	ID               flexInt         `json:"id"`
	ReferenceNumber  flexString      `json:"referenceNumber"`
	CustomerID       flexString      `json:"customerId"`
	Customer         namedRef        `json:"customer"`
	Amount           flexMoney       `json:"amount"`
	Discount         flexMoney       `json:"discount"`
	Shipping         flexMoney       `json:"shipping"`
	ExtraCharges     flexMoney       `json:"extraCharges"`
	Status           flexString      `json:"status"`
	PaymentStatus    flexString      `json:"paymentStatus"`
	Type             json.RawMessage `json:"type"`
	PickupLocation   locationRef     `json:"pickupLocation"`
	PickupLocationID flexInt         `json:"pickupLocationId"`
	PreferredDate    flexString      `json:"preferredDate"`
	SlotType         flexString      `json:"slotType"`
	SlotStartTime    flexString      `json:"slotStartTime"`
	SlotEndTime      flexString      `json:"slotEndTime"`
	Items            json.RawMessage `json:"items"`
}

func decodeOrderRecord(raw json.RawMessage) (*orderRecord, error) {
	var rec orderRecord
	if err := decodeObject(raw, &rec); err != nil {
		return nil, invalidPayload("order record is not an object")
	}
	return &rec, nil
}

func (r *orderRecord) validate() error {
	fields := map[string]string{}
	if r.ID <= 0 {
		fields["id"] = "required"
	}
	if r.ReferenceNumber == "" {
		fields["referenceNumber"] = "required"
	}
	if len(fields) > 0 {
		return &apperrors.ErrValidation{
			Code:    apperrors.CodeMissingField,
			Message: "order is missing its identity fields",
			Fields:  fields,
		}
	}
	return nil
}

func (r *orderRecord) orderType() string {
	var name flexString
	if isObject(r.Type) {
		var ref namedRef
		_ = decodeObject(r.Type, &ref)
		name = ref.Name
	} else if len(r.Type) > 0 {
		_ = name.UnmarshalJSON(r.Type)
	}
	return name.or("PICKUP")
}

func (r *orderRecord) pickupLocation() *int64 {
	id := int64(r.PickupLocation.ID)
	if id == 0 {
		id = int64(r.PickupLocationID)
	}
	if id == 0 {
		return nil
	}
	return &id
}

func (r *orderRecord) model(raw json.RawMessage) *models.Order {
	customerID := r.CustomerID
	if customerID == "" {
		customerID = r.Customer.ID
	}
	return &models.Order{
		OrderID:          int64(r.ID),
		ReferenceNumber:  string(r.ReferenceNumber),
		CustomerID:       string(customerID),
		CustomerName:     string(r.Customer.Name),
		Amount:           r.Amount.Decimal,
		Discount:         r.Discount.Decimal,
		Shipping:         r.Shipping.Decimal,
		ExtraCharges:     r.ExtraCharges.Decimal,
		Status:           r.Status.or(models.OrderStatusPending),
		PaymentStatus:    r.PaymentStatus.or("PENDING"),
		OrderType:        r.orderType(),
		PickupLocationID: r.pickupLocation(),
		PreferredDate:    r.PreferredDate.ptr(),
		SlotType:         r.SlotType.or("ASAP"),
		SlotStartTime:    r.SlotStartTime.ptr(),
		SlotEndTime:      r.SlotEndTime.ptr(),
		PickingStatus:    models.PickingNotStarted,
		RawPayload:       models.JSON(raw),
	}
}

func (r *orderRecord) items() []json.RawMessage {
	if !isArray(r.Items) {
		return nil
	}
	items, _ := splitRecords(r.Items)
	return items
}

type storeLocation struct {
	Aisle    flexString `json:"aisle"`
	Rack     flexString `json:"rack"`
	Position flexString `json:"position"`
}

// storeRecord is one entry of storeSpecificData, or an inventory webhook entry
type storeRecord struct {
	ProductID  flexInt    `json:"product_id"`
	ProductID2 flexInt    `json:"productId"`
	ID         flexInt    `json:"id"`
	StoreID    flexInt    `json:"storeId"`
	StoreID2   flexInt    `json:"store_id"`
	Store      flexInt    `json:"store"`
	Stock      flexFloat  `json:"stock"`
	Tax        flexString `json:"tax"`
	MRP        flexMoney  `json:"mrp"`
	Discount   flexMoney  `json:"discount"`
	Unit       *flexInt   `json:"unit"`
	Status     flexString `json:"status"`
	Aisle      flexString `json:"aisle"`
	Rack       flexString `json:"rack"`
	Shelf      flexString `json:"shelf"`
	Location   rawJSON    `json:"location"`
}

func firstNonZero(vals ...flexInt) int64 {
	for _, v := range vals {
		if v != 0 {
			return int64(v)
		}
	}
	return 0
}

func (s *storeRecord) productExternalID() int64 {
	return firstNonZero(s.ProductID, s.ProductID2, s.ID)
}

func (s *storeRecord) storeID() int64 {
	return firstNonZero(s.StoreID, s.StoreID2, s.Store)
}

// model builds the inventory row for the internal product key. A location
// object takes precedence over the flat aisle/rack/shelf fields.
func (s *storeRecord) model(productID int64) *models.Inventory {
	aisle, rack, shelf := s.Aisle, s.Rack, s.Shelf
	if isObject(s.Location) {
		var loc storeLocation
		_ = decodeObject(s.Location, &loc)
		aisle, rack, shelf = loc.Aisle, loc.Rack, loc.Position
	}
	unit := 1
	if s.Unit != nil {
		unit = int(*s.Unit)
	}
	stock := float64(s.Stock)
	if stock < 0 {
		stock = 0
	}
	return &models.Inventory{
		ProductID:    productID,
		StoreID:      s.storeID(),
		Stock:        stock,
		Tax:          s.Tax.ptr(),
		MRP:          s.MRP.Decimal,
		Discount:     s.Discount.Decimal,
		Unit:         unit,
		Aisle:        aisle.ptr(),
		Rack:         rack.ptr(),
		Shelf:        shelf.ptr(),
		Status:       s.Status.or(models.StatusEnabled),
		LocationData: s.Location.model(),
	}
}

type orderDetails struct {
	OrderedQuantity flexFloat `json:"orderedQuantity"`
	MRP             flexMoney `json:"mrp"`
	Discount        flexMoney `json:"discount"`
}

// productRecord is an order line item, or a product webhook entry
type productRecord struct {
	ID                flexInt       `json:"id"`
	ProductID         flexInt       `json:"product_id"`
	ClientItemID      flexString    `json:"clientItemId"`
	ClientItemID2     flexString    `json:"client_item_id"`
	Name              flexString    `json:"name"`
	Slug              flexString    `json:"slug"`
	Images            rawJSON       `json:"images"`
	ImagesExtra       rawJSON       `json:"imagesExtra"`
	Status            flexString    `json:"status"`
	AverageRating     flexFloat     `json:"averageRating"`
	TotalReviews      flexInt       `json:"totalReviews"`
	SoldByWeight      flexBool      `json:"soldByWeight"`
	OrderDetails      orderDetails  `json:"orderDetails"`
	StoreSpecificData []storeRecord `json:"storeSpecificData"`
}

func decodeProductRecord(raw json.RawMessage) (*productRecord, error) {
	var rec productRecord
	if err := decodeObject(raw, &rec); err != nil {
		return nil, invalidPayload("product record is not an object")
	}
	return &rec, nil
}

func (p *productRecord) externalID() int64 {
	return firstNonZero(p.ID, p.ProductID)
}

// model validates and builds the product. A product needs a positive
// upstream id and a name; anything else is unresolvable.
func (p *productRecord) model() (*models.Product, error) {
	fields := map[string]string{}
	if p.externalID() <= 0 {
		fields["id"] = "required"
	}
	if p.Name == "" {
		fields["name"] = "required"
	}
	if len(fields) > 0 {
		return nil, &apperrors.ErrValidation{
			Code:    apperrors.CodeMissingField,
			Message: "product is missing required fields",
			Fields:  fields,
		}
	}

	clientItemID := p.ClientItemID
	if clientItemID == "" {
		clientItemID = p.ClientItemID2
	}
	images := p.Images
	if len(images) == 0 {
		images = p.ImagesExtra
	}
	return &models.Product{
		ProductID:     p.externalID(),
		ClientItemID:  clientItemID.ptr(),
		Name:          string(p.Name),
		Slug:          p.Slug.ptr(),
		Images:        images.model(),
		Status:        p.Status.or(models.StatusEnabled),
		AverageRating: float64(p.AverageRating),
		TotalReviews:  int(p.TotalReviews),
		SoldByWeight:  bool(p.SoldByWeight),
	}, nil
}

type contactEmail struct {
	Email flexString `json:"email"`
}

type contactPhone struct {
	Phone flexString `json:"phone"`
}

type contactAddress struct {
	Address flexString `json:"address"`
	City    flexString `json:"city"`
	Pincode flexString `json:"pincode"`
}

type customerRecord struct {
	ID             flexString     `json:"id"`
	CustomerID     flexString     `json:"customerId"`
	CustomerID2    flexString     `json:"customer_id"`
	Name           flexString     `json:"name"`
	Email          flexString     `json:"email"`
	Phone          flexString     `json:"phone"`
	DefaultEmail   contactEmail   `json:"defaultEmail"`
	DefaultPhone   contactPhone   `json:"defaultPhone"`
	DefaultAddress contactAddress `json:"defaultAddress"`
	MetaData       rawJSON        `json:"metaData"`
	MetaData2      rawJSON        `json:"meta_data"`
}

func (c *customerRecord) model() (*models.Customer, error) {
	id := c.ID
	if id == "" {
		id = c.CustomerID
	}
	if id == "" {
		id = c.CustomerID2
	}
	if id == "" {
		return nil, &apperrors.ErrValidation{
			Code:    apperrors.CodeMissingField,
			Message: "customer id is required",
			Fields:  map[string]string{"id": "required"},
		}
	}

	email := c.Email
	if email == "" {
		email = c.DefaultEmail.Email
	}
	phone := c.Phone
	if phone == "" {
		phone = c.DefaultPhone.Phone
	}
	meta := c.MetaData
	if len(meta) == 0 {
		meta = c.MetaData2
	}
	return &models.Customer{
		CustomerID: string(id),
		Name:       string(c.Name),
		Email:      email.ptr(),
		Phone:      phone.ptr(),
		Address:    c.DefaultAddress.Address.ptr(),
		City:       c.DefaultAddress.City.ptr(),
		Pincode:    c.DefaultAddress.Pincode.ptr(),
		Metadata:   meta.model(),
	}, nil
}

// catalogEntries resolves a catalog webhook body: a list, an object whose
// wrapper key holds an object or list, or a bare object.
func catalogEntries(body []byte, wrapper string) ([]json.RawMessage, error) {
	if isObject(body) {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, invalidPayload("webhook body is not valid JSON")
		}
		if v, ok := obj[wrapper]; ok && !isNull(v) {
			if entries, ok := splitRecords(v); ok {
				return entries, nil
			}
			return nil, invalidPayload("webhook " + wrapper + " is neither an object nor a list")
		}
	}
	entries, ok := splitRecords(body)
	if !ok {
		return nil, invalidPayload("webhook body is neither an object nor a list")
	}
	return entries, nil
}
