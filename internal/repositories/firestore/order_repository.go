package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/tastyhub/api/internal/domain"
	pfirestore "github.com/tastyhub/api/internal/platform/firestore"
	"github.com/tastyhub/api/internal/platform/pagination"
	"github.com/tastyhub/api/internal/repositories"
)

const (
	orderCollection      = "orders"
	orderLineItems       = "lineItems"
	paymentRefCollection = "orderPaymentRefs"
)

// OrderRepository persists order headers, their line item subcollection, and a
// payment reference index that backs the idempotent creation guarantee.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection)
	return &OrderRepository{base: base, provider: provider}, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// Insert writes the order header, every line item, and the payment reference
// index entry. Inside a unit of work all writes join the surrounding
// transaction; otherwise the method opens its own so the aggregate is atomic.
// A duplicate payment reference surfaces as a conflict.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	if strings.TrimSpace(order.PaymentRef) == "" {
		return errors.New("order payment reference is required")
	}

	if tx, ok := txFromContext(ctx); ok {
		return r.insertInTx(ctx, tx, order)
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return r.insertInTx(ctx, tx, order)
	})
}

func (r *OrderRepository) insertInTx(ctx context.Context, tx *firestore.Transaction, order domain.Order) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	orderRef := client.Collection(orderCollection).Doc(order.ID)
	refIndex := client.Collection(paymentRefCollection).Doc(paymentRefDocID(order.PaymentRef))

	if err := tx.Create(refIndex, paymentRefDocument{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		CreatedAt:   order.CreatedAt,
	}); err != nil {
		return pfirestore.WrapError("orders.insert.paymentRef", err)
	}
	if err := tx.Create(orderRef, fromDomainOrder(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	for _, item := range order.LineItems {
		itemRef := orderRef.Collection(orderLineItems).Doc(item.PortionID)
		if err := tx.Create(itemRef, fromDomainLineItem(item)); err != nil {
			return pfirestore.WrapError("orders.insert.lineItem", err)
		}
	}
	return nil
}

// FindByID loads the order aggregate by document id.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if err := r.ready(); err != nil {
		return domain.Order{}, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	ref := client.Collection(orderCollection).Doc(orderID)
	snap, err := r.getDoc(ctx, ref)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.findByID", err)
	}

	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.findByID", err)
	}
	order, err := toDomainOrder(snap.Ref.ID, doc)
	if err != nil {
		return domain.Order{}, err
	}
	items, err := r.loadLineItems(ctx, ref)
	if err != nil {
		return domain.Order{}, err
	}
	order.LineItems = items
	return order, nil
}

// FindByNumber loads the order aggregate by its public order number.
func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	if err := r.ready(); err != nil {
		return domain.Order{}, err
	}
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return domain.Order{}, errors.New("order number is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("number", "==", orderNumber).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.findByNumber", status.Error(codes.NotFound, "order number not found"))
	}
	return r.FindByID(ctx, docs[0].ID)
}

// FindByPaymentRef resolves the payment reference index and loads the order.
// Not finding the reference reports not-found; callers treat that as "create".
func (r *OrderRepository) FindByPaymentRef(ctx context.Context, paymentRef string) (domain.Order, error) {
	if err := r.ready(); err != nil {
		return domain.Order{}, err
	}
	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" {
		return domain.Order{}, errors.New("payment reference is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	snap, err := r.getDoc(ctx, client.Collection(paymentRefCollection).Doc(paymentRefDocID(paymentRef)))
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.findByPaymentRef", err)
	}
	var index paymentRefDocument
	if err := snap.DataTo(&index); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.findByPaymentRef", err)
	}
	return r.FindByID(ctx, index.OrderID)
}

// UpdateStatus sets the order status and returns the refreshed aggregate.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, orderStatus domain.OrderStatus, updatedAt time.Time) (domain.Order, error) {
	if err := r.ready(); err != nil {
		return domain.Order{}, err
	}

	updates := []firestore.Update{
		{Path: "status", Value: string(orderStatus)},
		{Path: "updatedAt", Value: updatedAt},
	}

	if tx, ok := txFromContext(ctx); ok {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return domain.Order{}, err
		}
		ref := client.Collection(orderCollection).Doc(orderID)
		if err := tx.Update(ref, updates); err != nil {
			return domain.Order{}, pfirestore.WrapError("orders.updateStatus", err)
		}
		// The refreshed aggregate is not readable after a transactional write;
		// callers inside a unit of work already hold the order they validated.
		return domain.Order{ID: orderID, Status: orderStatus, UpdatedAt: updatedAt}, nil
	}

	if _, err := r.base.Update(ctx, orderID, updates); err != nil {
		return domain.Order{}, err
	}
	return r.FindByID(ctx, orderID)
}

// MarkEmailSent records that the confirmation email was handed to the mailer.
func (r *OrderRepository) MarkEmailSent(ctx context.Context, orderID string, sentAt time.Time) error {
	if err := r.ready(); err != nil {
		return err
	}
	_, err := r.base.Update(ctx, orderID, []firestore.Update{
		{Path: "emailSent", Value: true},
		{Path: "emailSentAt", Value: sentAt},
	})
	return err
}

// Delete removes the order aggregate: line items, payment reference index, and
// header. Inside a unit of work the deletes join the surrounding transaction.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if err := r.ready(); err != nil {
		return err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return errors.New("order id is required")
	}

	if tx, ok := txFromContext(ctx); ok {
		return r.deleteInTx(ctx, tx, orderID)
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return r.deleteInTx(ctx, tx, orderID)
	})
}

func (r *OrderRepository) deleteInTx(ctx context.Context, tx *firestore.Transaction, orderID string) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	orderRef := client.Collection(orderCollection).Doc(orderID)

	snap, err := tx.Get(orderRef)
	if err != nil {
		return pfirestore.WrapError("orders.delete", err)
	}
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return pfirestore.WrapError("orders.delete", err)
	}

	itemSnaps, err := tx.Documents(orderRef.Collection(orderLineItems)).GetAll()
	if err != nil {
		return pfirestore.WrapError("orders.delete.lineItems", err)
	}
	for _, item := range itemSnaps {
		if err := tx.Delete(item.Ref); err != nil {
			return pfirestore.WrapError("orders.delete.lineItems", err)
		}
	}
	if doc.PaymentRef != "" {
		if err := tx.Delete(client.Collection(paymentRefCollection).Doc(paymentRefDocID(doc.PaymentRef))); err != nil {
			return pfirestore.WrapError("orders.delete.paymentRef", err)
		}
	}
	if err := tx.Delete(orderRef); err != nil {
		return pfirestore.WrapError("orders.delete", err)
	}
	return nil
}

// ListByProfile pages through a customer's order history, newest first.
func (r *OrderRepository) ListByProfile(ctx context.Context, profileID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return domain.CursorPage[domain.Order]{}, errors.New("profile id is required")
	}
	return r.listOrders(ctx, pager, func(q firestore.Query) firestore.Query {
		return q.Where("profileId", "==", profileID)
	})
}

// List pages through the staff order queue, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	return r.listOrders(ctx, filter.Pagination, func(q firestore.Query) firestore.Query {
		if filter.Status != nil {
			q = q.Where("status", "==", string(*filter.Status))
		}
		if filter.DeliveryType != nil {
			q = q.Where("deliveryType", "==", string(*filter.DeliveryType))
		}
		if filter.CreatedFrom != nil {
			q = q.Where("createdAt", ">=", *filter.CreatedFrom)
		}
		if filter.CreatedTo != nil {
			q = q.Where("createdAt", "<", *filter.CreatedTo)
		}
		return q
	})
}

func (r *OrderRepository) listOrders(ctx context.Context, pager domain.Pagination, narrow func(firestore.Query) firestore.Query) (domain.CursorPage[domain.Order], error) {
	if err := r.ready(); err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	pageSize := pagination.ClampPageSize(pager.PageSize)
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = narrow(q)
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{Items: make([]domain.Order, 0, len(docs))}
	for i, doc := range docs {
		if i == pageSize {
			token, err := pagination.EncodeToken(pagination.Cursor{
				StartAfter: []any{docs[i-1].Data.CreatedAt, docs[i-1].ID},
			})
			if err != nil {
				return domain.CursorPage[domain.Order]{}, err
			}
			page.NextPageToken = token
			break
		}
		order, err := toDomainOrder(doc.ID, doc.Data)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.Items = append(page.Items, order)
	}
	return page, nil
}

// CountByStatus aggregates order counts per status for the staff dashboard.
func (r *OrderRepository) CountByStatus(ctx context.Context) (map[domain.OrderStatus]int64, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	statuses := []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusPreparing,
		domain.OrderStatusOutForDelivery,
		domain.OrderStatusReadyForPickup,
		domain.OrderStatusCompleted,
	}
	counts := make(map[domain.OrderStatus]int64, len(statuses))
	for _, s := range statuses {
		query := client.Collection(orderCollection).Where("status", "==", string(s))
		result, err := query.NewAggregationQuery().WithCount("count").Get(ctx)
		if err != nil {
			return nil, pfirestore.WrapError("orders.countByStatus", err)
		}
		counts[s] = aggregationCount(result["count"])
	}
	return counts, nil
}

func (r *OrderRepository) getDoc(ctx context.Context, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	if tx, ok := txFromContext(ctx); ok {
		return tx.Get(ref)
	}
	return ref.Get(ctx)
}

func (r *OrderRepository) loadLineItems(ctx context.Context, orderRef *firestore.DocumentRef) ([]domain.OrderLineItem, error) {
	if orderRef == nil {
		return nil, nil
	}
	coll := orderRef.Collection(orderLineItems)

	var snaps []*firestore.DocumentSnapshot
	var err error
	if tx, ok := txFromContext(ctx); ok {
		snaps, err = tx.Documents(coll).GetAll()
	} else {
		snaps, err = coll.Documents(ctx).GetAll()
	}
	if err != nil {
		return nil, pfirestore.WrapError("orders.lineItems", err)
	}

	items := make([]domain.OrderLineItem, 0, len(snaps))
	for _, snap := range snaps {
		var doc lineItemDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, pfirestore.WrapError("orders.lineItems", err)
		}
		item, err := toDomainLineItem(orderRef.ID, snap.Ref.ID, doc)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *OrderRepository) ready() error {
	if r == nil || r.base == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	return nil
}

// paymentRefDocID keeps index ids within Firestore's document id constraints.
func paymentRefDocID(paymentRef string) string {
	ref := strings.TrimSpace(paymentRef)
	ref = strings.ReplaceAll(ref, "/", "_")
	if len(ref) > 254 {
		ref = ref[:254]
	}
	return ref
}

func aggregationCount(value any) int64 {
	type intValuer interface{ GetIntegerValue() int64 }
	if v, ok := value.(intValuer); ok {
		return v.GetIntegerValue()
	}
	return 0
}

type orderDocument struct {
	Number         string    `firestore:"number"`
	ProfileID      string    `firestore:"profileId,omitempty"`
	Status         string    `firestore:"status"`
	DeliveryType   string    `firestore:"deliveryType"`
	PickupTime     string    `firestore:"pickupTime,omitempty"`
	FullName       string    `firestore:"fullName"`
	Email          string    `firestore:"email"`
	PhoneNumber    string    `firestore:"phoneNumber"`
	StreetAddress1 string    `firestore:"streetAddress1,omitempty"`
	StreetAddress2 string    `firestore:"streetAddress2,omitempty"`
	TownOrCity     string    `firestore:"townOrCity,omitempty"`
	County         string    `firestore:"county,omitempty"`
	Postcode       string    `firestore:"postcode,omitempty"`
	Locality       string    `firestore:"locality,omitempty"`
	OrderTotal     string    `firestore:"orderTotal"`
	DeliveryFee    string    `firestore:"deliveryFee"`
	GrandTotal     string    `firestore:"grandTotal"`
	PaymentRef     string    `firestore:"paymentRef"`
	OriginalBag    string    `firestore:"originalBag,omitempty"`
	PublicTracking bool      `firestore:"publicTracking"`
	EmailSent      bool      `firestore:"emailSent"`
	CreatedAt      time.Time `firestore:"createdAt"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

type lineItemDocument struct {
	DishName  string `firestore:"dishName"`
	Size      string `firestore:"size"`
	Quantity  int64  `firestore:"quantity"`
	UnitPrice string `firestore:"unitPrice"`
	LineTotal string `firestore:"lineTotal"`
}

type paymentRefDocument struct {
	OrderID     string    `firestore:"orderId"`
	OrderNumber string    `firestore:"orderNumber"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

func fromDomainOrder(order domain.Order) orderDocument {
	return orderDocument{
		Number:         order.Number,
		ProfileID:      order.ProfileID,
		Status:         string(order.Status),
		DeliveryType:   string(order.DeliveryType),
		PickupTime:     order.PickupTime,
		FullName:       order.Address.FullName,
		Email:          order.Address.Email,
		PhoneNumber:    order.Address.PhoneNumber,
		StreetAddress1: order.Address.StreetAddress1,
		StreetAddress2: order.Address.StreetAddress2,
		TownOrCity:     order.Address.TownOrCity,
		County:         order.Address.County,
		Postcode:       order.Address.Postcode,
		Locality:       order.Address.Locality,
		OrderTotal:     order.OrderTotal.String(),
		DeliveryFee:    order.DeliveryFee.String(),
		GrandTotal:     order.GrandTotal.String(),
		PaymentRef:     order.PaymentRef,
		OriginalBag:    order.OriginalBag,
		PublicTracking: order.PublicTracking,
		EmailSent:      order.EmailSent,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
}

func toDomainOrder(id string, doc orderDocument) (domain.Order, error) {
	orderTotal, err := domain.ParseMoney(doc.OrderTotal)
	if err != nil {
		return domain.Order{}, err
	}
	deliveryFee, err := domain.ParseMoney(doc.DeliveryFee)
	if err != nil {
		return domain.Order{}, err
	}
	grandTotal, err := domain.ParseMoney(doc.GrandTotal)
	if err != nil {
		return domain.Order{}, err
	}
	return domain.Order{
		ID:           id,
		Number:       doc.Number,
		ProfileID:    doc.ProfileID,
		Status:       domain.OrderStatus(doc.Status),
		DeliveryType: domain.DeliveryType(doc.DeliveryType),
		PickupTime:   doc.PickupTime,
		Address: domain.Address{
			FullName:       doc.FullName,
			Email:          doc.Email,
			PhoneNumber:    doc.PhoneNumber,
			StreetAddress1: doc.StreetAddress1,
			StreetAddress2: doc.StreetAddress2,
			TownOrCity:     doc.TownOrCity,
			County:         doc.County,
			Postcode:       doc.Postcode,
			Locality:       doc.Locality,
		},
		OrderTotal:     orderTotal,
		DeliveryFee:    deliveryFee,
		GrandTotal:     grandTotal,
		PaymentRef:     doc.PaymentRef,
		OriginalBag:    doc.OriginalBag,
		PublicTracking: doc.PublicTracking,
		EmailSent:      doc.EmailSent,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}

func fromDomainLineItem(item domain.OrderLineItem) lineItemDocument {
	return lineItemDocument{
		DishName:  item.DishName,
		Size:      string(item.Size),
		Quantity:  int64(item.Quantity),
		UnitPrice: item.UnitPrice.String(),
		LineTotal: item.LineTotal.String(),
	}
}

func toDomainLineItem(orderID, portionID string, doc lineItemDocument) (domain.OrderLineItem, error) {
	unitPrice, err := domain.ParseMoney(doc.UnitPrice)
	if err != nil {
		return domain.OrderLineItem{}, err
	}
	lineTotal, err := domain.ParseMoney(doc.LineTotal)
	if err != nil {
		return domain.OrderLineItem{}, err
	}
	return domain.OrderLineItem{
		ID:        portionID,
		OrderID:   orderID,
		PortionID: portionID,
		DishName:  doc.DishName,
		Size:      domain.PortionSize(doc.Size),
		Quantity:  int(doc.Quantity),
		UnitPrice: unitPrice,
		LineTotal: lineTotal,
	}, nil
}
