package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"asha-medical/internal/domain"
	"asha-medical/internal/pricing"
	"asha-medical/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMaxPrescriptionBytes = 5 * 1024 * 1024

// mockOrderRepository mirrors the commit protocol of the real repository:
// stock decrements, product snapshots, order insert, and cart clear happen
// under one lock, all or nothing.
type mockOrderRepository struct {
	mu          sync.Mutex
	productRepo *mockProductRepository
	cartRepo    *mockCartRepository
	orders      map[uuid.UUID]*domain.Order
}

func newMockOrderRepository(productRepo *mockProductRepository, cartRepo *mockCartRepository) *mockOrderRepository {
	return &mockOrderRepository{
		productRepo: productRepo,
		cartRepo:    cartRepo,
		orders:      make(map[uuid.UUID]*domain.Order),
	}
}

func (m *mockOrderRepository) Place(ctx context.Context, order *domain.Order, items []domain.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.productRepo.mu.Lock()
	defer m.productRepo.mu.Unlock()

	// Validate every decrement before touching any stock so a failure
	// leaves everything unchanged, like a rolled-back transaction.
	for _, item := range items {
		product, exists := m.productRepo.products[item.ProductID]
		if !exists {
			return repository.ErrProductNotFound
		}
		if product.Stock < item.Quantity {
			return repository.ErrInsufficientStock
		}
	}

	lines := make([]domain.OrderLineItem, 0, len(items))
	for _, item := range items {
		product := m.productRepo.products[item.ProductID]
		product.Stock -= item.Quantity

		line := domain.OrderLineItem{
			ID:                   uuid.New(),
			OrderID:              order.ID,
			ProductID:            item.ProductID,
			Name:                 product.Name,
			UnitPrice:            product.Price,
			Quantity:             item.Quantity,
			RequiresPrescription: product.RequiresPrescription,
		}
		if line.RequiresPrescription {
			order.RequiresPrescription = true
		}
		lines = append(lines, line)
	}

	priceLines := make([]pricing.Line, len(lines))
	for i, line := range lines {
		priceLines[i] = pricing.Line{UnitPrice: line.UnitPrice, Quantity: line.Quantity}
	}
	order.TotalAmount = pricing.Total(priceLines)
	order.Items = lines

	stored := *order
	stored.Items = append([]domain.OrderLineItem{}, lines...)
	m.orders[order.ID] = &stored

	m.cartRepo.mu.Lock()
	defer m.cartRepo.mu.Unlock()
	for key := range m.cartRepo.items {
		if key.userID == order.UserID {
			delete(m.cartRepo.items, key)
		}
	}

	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, exists := m.orders[id]
	if !exists {
		return nil, repository.ErrOrderNotFound
	}
	copy := *order
	return &copy, nil
}

func (m *mockOrderRepository) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, exists := m.orders[id]
	if !exists || order.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	copy := *order
	return &copy, nil
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := []*domain.Order{}
	for _, order := range m.orders {
		if order.UserID == userID {
			copy := *order
			orders = append(orders, &copy)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, exists := m.orders[id]
	if !exists || order.Status != from {
		return repository.ErrStatusConflict
	}
	order.Status = to
	return nil
}

type orderServiceFixture struct {
	productRepo *mockProductRepository
	cartRepo    *mockCartRepository
	orderRepo   *mockOrderRepository
	cartSvc     CartService
	orderSvc    OrderService
}

func newOrderServiceFixture() *orderServiceFixture {
	productRepo := newMockProductRepository()
	cartRepo := newMockCartRepository()
	orderRepo := newMockOrderRepository(productRepo, cartRepo)
	return &orderServiceFixture{
		productRepo: productRepo,
		cartRepo:    cartRepo,
		orderRepo:   orderRepo,
		cartSvc:     NewCartService(cartRepo, productRepo),
		orderSvc:    NewOrderService(orderRepo, cartRepo, testMaxPrescriptionBytes),
	}
}

func codInput() PlaceOrderInput {
	return PlaceOrderInput{
		PaymentMethod:   "COD",
		DeliveryAddress: "12 MG Road, Bengaluru",
		Phone:           "+919876543210",
	}
}

func TestPlaceOrderCOD(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture()
	userID := uuid.New()

	p1 := seedProduct(t, f.productRepo, "Paracetamol 500mg", 100, 10)
	p2 := seedProduct(t, f.productRepo, "Cough Syrup", 50, 10)

	_, err := f.cartSvc.Add(ctx, userID, p1.ID, 2)
	require.NoError(t, err)
	_, err = f.cartSvc.Add(ctx, userID, p2.ID, 1)
	require.NoError(t, err)

	order, err := f.orderSvc.Place(ctx, userID, codInput())
	require.NoError(t, err)

	assert.Equal(t, 250.0, order.TotalAmount)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentMethodCOD, order.PaymentMethod)
	assert.Empty(t, order.UPIID)
	require.Len(t, order.Items, 2)

	// Stock committed
	got1, err := f.productRepo.FindByID(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got1.Stock)
	got2, err := f.productRepo.FindByID(ctx, p2.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, got2.Stock)

	// Cart cleared
	cart, err := f.cartSvc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestPlaceOrderUPI(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture()
	userID := uuid.New()

	product := seedProduct(t, f.productRepo, "Vitamin D3", 200, 5)
	_, err := f.cartSvc.Add(ctx, userID, product.ID, 1)
	require.NoError(t, err)

	input := codInput()
	input.PaymentMethod = "UPI"
	input.UPIID = "patient@upi"

	order, err := f.orderSvc.Place(ctx, userID, input)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodUPI, order.PaymentMethod)
	assert.Equal(t, "patient@upi", order.UPIID)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture()

	_, err := f.orderSvc.Place(ctx, uuid.New(), codInput())
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrderValidationLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture()
	userID := uuid.New()

	product := seedProduct(t, f.productRepo, "Antibiotic Ointment", 120, 6)
	_, err := f.cartSvc.Add(ctx, userID, product.ID, 2)
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(*PlaceOrderInput)
		wantErr error
	}{
		{"unknown payment method", func(in *PlaceOrderInput) { in.PaymentMethod = "CARD" }, ErrInvalidPaymentMethod},
		{"lowercase payment method", func(in *PlaceOrderInput) { in.PaymentMethod = "cod" }, ErrInvalidPaymentMethod},
		{"upi without upi id", func(in *PlaceOrderInput) { in.PaymentMethod = "UPI" }, ErrMissingUPIID},
		{"upi with blank upi id", func(in *PlaceOrderInput) { in.PaymentMethod = "UPI"; in.UPIID = "   " }, ErrMissingUPIID},
		{"missing address", func(in *PlaceOrderInput) { in.DeliveryAddress = "" }, ErrMissingDeliveryAddress},
		{"missing phone", func(in *PlaceOrderInput) { in.Phone = " " }, ErrMissingPhone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := codInput()
			tt.mutate(&input)

			_, err := f.orderSvc.Place(ctx, userID, input)
			assert.ErrorIs(t, err, tt.wantErr)

			// Cart and stock survive the failed placement
			cart, err := f.cartSvc.Get(ctx, userID)
			require.NoError(t, err)
			require.Len(t, cart.Items, 1)
			assert.Equal(t, 2, cart.Items[0].Quantity)

			got, err := f.productRepo.FindByID(ctx, product.ID)
			require.NoError(t, err)
			assert.Equal(t, 6, got.Stock)
		})
	}
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture()
	userID := uuid.New()

	product := seedProduct(t, f.productRepo, "Blood Pressure Monitor", 1500, 3)
	_, err := f.cartSvc.Add(ctx, userID, product.ID, 3)
	require.NoError(t, err)

	// Stock drops after the items were carted
	product.Stock = 2
	require.NoError(t, f.productRepo.Update(ctx, product))

	_, err = f.orderSvc.Place(ctx, userID, codInput())
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)

	// The failed commit leaves the cart intact
	cart, err := f.cartSvc.Get(ctx, userID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)

	got, err := f.productRepo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
}

func TestPlaceOrderConcurrentLastUnit(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture()

	product := seedProduct(t, f.productRepo, "Rare Serum", 999, 1)

	alice := uuid.New()
	bob := uuid.New()
	_, err := f.cartSvc.Add(ctx, alice, product.ID, 1)
	require.NoError(t, err)
	_, err = f.cartSvc.Add(ctx, bob, product.ID, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, userID := range []uuid.UUID{alice, bob} {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.orderSvc.Place(ctx, id, codInput())
			results <- err
		}(userID)
	}
	wg.Wait()
	close(results)

	var successes, stockFailures int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, repository.ErrInsufficientStock):
			stockFailures++
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, stockFailures)

	got, err := f.productRepo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestPlacedOrderTotalsAreFrozen(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture()
	userID := uuid.New()

	product := seedProduct(t, f.productRepo, "Calcium Tablets", 100, 10)
	_, err := f.cartSvc.Add(ctx, userID, product.ID, 2)
	require.NoError(t, err)

	order, err := f.orderSvc.Place(ctx, userID, codInput())
	require.NoError(t, err)
	require.Equal(t, 200.0, order.TotalAmount)

	// A later catalog price change must not reach the stored order
	product.Price = 500
	product.Name = "Calcium Tablets XL"
	require.NoError(t, f.productRepo.Update(ctx, product))

	stored, err := f.orderSvc.GetForUser(ctx, order.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, 200.0, stored.TotalAmount)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 100.0, stored.Items[0].UnitPrice)
	assert.Equal(t, "Calcium Tablets", stored.Items[0].Name)
}

func TestPlaceOrderFlagsPrescriptionLines(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture()
	userID := uuid.New()

	rx := &domain.Product{
		ID:                   uuid.New(),
		Name:                 "Amoxicillin 250mg",
		Price:                180,
		Category:             "Antibiotics",
		Stock:                10,
		RequiresPrescription: true,
	}
	require.NoError(t, f.productRepo.Create(ctx, rx))

	_, err := f.cartSvc.Add(ctx, userID, rx.ID, 1)
	require.NoError(t, err)

	// No attachment: the order still goes through, flagged for review
	order, err := f.orderSvc.Place(ctx, userID, codInput())
	require.NoError(t, err)
	assert.True(t, order.RequiresPrescription)
	assert.Empty(t, order.PrescriptionData)
}

func prescriptionDataURL(mediaType string, payloadLen int) string {
	payload := base64.StdEncoding.EncodeToString(make([]byte, payloadLen))
	return fmt.Sprintf("data:%s;base64,%s", mediaType, payload)
}

func TestPlaceOrderPrescriptionAttachment(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"valid pdf", prescriptionDataURL("application/pdf", 1024), nil},
		{"valid jpeg", prescriptionDataURL("image/jpeg", 1024), nil},
		{"valid png", prescriptionDataURL("image/png", 1024), nil},
		{"not a data url", "just a plain string", ErrPrescriptionBadFormat},
		{"missing base64 marker", "data:application/pdf,abcd", ErrPrescriptionBadFormat},
		{"disallowed media type", prescriptionDataURL("image/gif", 1024), ErrPrescriptionBadFormat},
		{"text media type", prescriptionDataURL("text/html", 64), ErrPrescriptionBadFormat},
		{"over the size cap", prescriptionDataURL("application/pdf", testMaxPrescriptionBytes+1), ErrPrescriptionTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newOrderServiceFixture()
			userID := uuid.New()

			product := seedProduct(t, f.productRepo, "Zinc Supplement", 90, 10)
			_, err := f.cartSvc.Add(ctx, userID, product.ID, 1)
			require.NoError(t, err)

			input := codInput()
			input.PrescriptionData = tt.data

			order, err := f.orderSvc.Place(ctx, userID, input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				// Rejected attachments must not consume the cart
				cart, cartErr := f.cartSvc.Get(ctx, userID)
				require.NoError(t, cartErr)
				assert.Len(t, cart.Items, 1)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.data, order.PrescriptionData)
		})
	}
}

func TestListOrdersMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture()
	userID := uuid.New()

	product := seedProduct(t, f.productRepo, "Glucose Powder", 40, 100)

	var placed []uuid.UUID
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		_, err := f.cartSvc.Add(ctx, userID, product.ID, 1)
		require.NoError(t, err)

		order, err := f.orderSvc.Place(ctx, userID, codInput())
		require.NoError(t, err)

		// Spread creation times so the ordering is deterministic
		f.orderRepo.orders[order.ID].CreatedAt = base.Add(time.Duration(i) * time.Minute)
		placed = append(placed, order.ID)
	}

	orders, err := f.orderSvc.ListForUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, placed[2], orders[0].ID)
	assert.Equal(t, placed[1], orders[1].ID)
	assert.Equal(t, placed[0], orders[2].ID)
}

func TestGetOrderScopedToOwner(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture()

	alice := uuid.New()
	bob := uuid.New()
	product := seedProduct(t, f.productRepo, "Nasal Spray", 110, 10)

	_, err := f.cartSvc.Add(ctx, alice, product.ID, 1)
	require.NoError(t, err)
	order, err := f.orderSvc.Place(ctx, alice, codInput())
	require.NoError(t, err)

	_, err = f.orderSvc.GetForUser(ctx, order.ID, alice)
	require.NoError(t, err)

	// Another user's lookup reads as not found, not forbidden
	_, err = f.orderSvc.GetForUser(ctx, order.ID, bob)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture()
	userID := uuid.New()

	product := seedProduct(t, f.productRepo, "Syringe Pack", 60, 10)
	_, err := f.cartSvc.Add(ctx, userID, product.ID, 1)
	require.NoError(t, err)
	order, err := f.orderSvc.Place(ctx, userID, codInput())
	require.NoError(t, err)

	updated, err := f.orderSvc.UpdateStatus(ctx, order.ID, domain.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, updated.Status)

	updated, err = f.orderSvc.UpdateStatus(ctx, order.ID, domain.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, updated.Status)

	// Delivered is terminal
	_, err = f.orderSvc.UpdateStatus(ctx, order.ID, domain.OrderStatusConfirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateOrderStatusRejectsSkipsAndUnknowns(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture()
	userID := uuid.New()

	product := seedProduct(t, f.productRepo, "Gauze Roll", 35, 10)
	_, err := f.cartSvc.Add(ctx, userID, product.ID, 1)
	require.NoError(t, err)
	order, err := f.orderSvc.Place(ctx, userID, codInput())
	require.NoError(t, err)

	_, err = f.orderSvc.UpdateStatus(ctx, order.ID, domain.OrderStatusDelivered)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.orderSvc.UpdateStatus(ctx, order.ID, domain.OrderStatus("Shipped"))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.orderSvc.UpdateStatus(ctx, uuid.New(), domain.OrderStatusConfirmed)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	stored, err := f.orderSvc.GetForUser(ctx, order.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)
}

func TestPlaceOrderDoesNotSpillBetweenUsers(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture()

	alice := uuid.New()
	bob := uuid.New()
	product := seedProduct(t, f.productRepo, "Hand Sanitizer", 85, 50)

	_, err := f.cartSvc.Add(ctx, alice, product.ID, 2)
	require.NoError(t, err)
	_, err = f.cartSvc.Add(ctx, bob, product.ID, 5)
	require.NoError(t, err)

	_, err = f.orderSvc.Place(ctx, alice, codInput())
	require.NoError(t, err)

	// Bob's cart survives Alice's checkout
	bobCart, err := f.cartSvc.Get(ctx, bob)
	require.NoError(t, err)
	require.Len(t, bobCart.Items, 1)
	assert.Equal(t, 5, bobCart.Items[0].Quantity)

	bobOrders, err := f.orderSvc.ListForUser(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, bobOrders)
}
