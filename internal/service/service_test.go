package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shop_checkout/internal/addressbook"
	"github.com/Skotchmaster/shop_checkout/internal/gateway"
	"github.com/Skotchmaster/shop_checkout/internal/models"
	"github.com/Skotchmaster/shop_checkout/internal/notify"
	"github.com/Skotchmaster/shop_checkout/internal/pricing"
	"github.com/Skotchmaster/shop_checkout/internal/repo"
	"github.com/Skotchmaster/shop_checkout/internal/testutil"
	"github.com/Skotchmaster/shop_checkout/pkg/tokens"
)

const (
	testKeySecret     = "key-secret"
	testWebhookSecret = "webhook-secret"
)

type fakeProvider struct {
	mu            sync.Mutex
	created       int
	fetches       int
	payments      map[string]gateway.Payment
	orderPayments map[string][]gateway.Payment
	createErr     error
	listErr       error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		payments:      map[string]gateway.Payment{},
		orderPayments: map[string][]gateway.Payment{},
	}
}

func (f *fakeProvider) CreateOrder(_ context.Context, params gateway.OrderParams) (*gateway.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	return &gateway.Order{
		ID:       fmt.Sprintf("order_%d", f.created),
		Amount:   params.AmountMinor,
		Currency: params.Currency,
		Receipt:  params.Receipt,
		Status:   "created",
		Notes:    params.Notes,
	}, nil
}

func (f *fakeProvider) FetchPayment(_ context.Context, paymentID string) (*gateway.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	p, ok := f.payments[paymentID]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProvider) FetchOrderPayments(_ context.Context, gatewayOrderID string) ([]gateway.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.orderPayments[gatewayOrderID], nil
}

func (f *fakeProvider) addPayment(p gateway.Payment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[p.ID] = p
	f.orderPayments[p.OrderID] = append(f.orderPayments[p.OrderID], p)
}

type countingNotifier struct {
	mu   sync.Mutex
	jobs []notify.Job
	err  error
}

func (n *countingNotifier) Enqueue(_ context.Context, job notify.Job) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return false, n.err
	}
	n.jobs = append(n.jobs, job)
	return true, nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.jobs)
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) PublishEvent(_ context.Context, _, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := event.(map[string]any); ok {
		p.types = append(p.types, fmt.Sprint(m["type"]))
	}
	return nil
}

func (p *recordingPublisher) count(typ string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.types {
		if t == typ {
			n++
		}
	}
	return n
}

type fixture struct {
	repo      *repo.GormRepo
	provider  *fakeProvider
	notifier  *countingNotifier
	events    *recordingPublisher
	cart      *CartService
	addresses *AddressService
	orders    *OrderService
	rec       *Reconciler
	payments  *PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := testutil.NewRepo(t)
	policy := pricing.Policy{
		TaxRate:         decimal.RequireFromString("0.05"),
		ShippingFee:     decimal.RequireFromString("50"),
		FreeShippingMin: decimal.RequireFromString("500"),
	}

	f := &fixture{
		repo:     r,
		provider: newFakeProvider(),
		notifier: &countingNotifier{},
		events:   &recordingPublisher{},
	}
	f.cart = &CartService{Repo: r, Policy: policy}
	f.addresses = &AddressService{Repo: r}
	f.orders = &OrderService{Repo: r, Addresses: f.addresses, Policy: policy, Currency: "INR", Events: f.events, Notifier: f.notifier}
	f.rec = &Reconciler{Repo: r, Events: f.events, Notifier: f.notifier}
	f.payments = &PaymentService{
		Repo:           r,
		Provider:       f.provider,
		Reconciler:     f.rec,
		KeyID:          "key_test",
		KeySecret:      testKeySecret,
		WebhookSecret:  testWebhookSecret,
		MerchantName:   "Shop",
		ConfirmTimeout: 10 * time.Minute,
	}
	return f
}

func customer() *tokens.Credential {
	return &tokens.Credential{UserID: uuid.New(), Role: "user", Email: "asha@example.com"}
}

func admin() *tokens.Credential {
	return &tokens.Credential{UserID: uuid.New(), Role: tokens.RoleAdmin}
}

func validAddress() *addressbook.Address {
	return &addressbook.Address{
		Name:       "Asha Rao",
		Phone:      "9876543210",
		Street:     "12 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
		Country:    "IN",
	}
}

func (f *fixture) fillCart(t *testing.T, cred *tokens.Credential) {
	t.Helper()
	tee := testutil.SeedProduct(t, f.repo.DB, "Tee", "400.00", "S,M,L")
	mug := testutil.SeedProduct(t, f.repo.DB, "Mug", "250.00", "")
	testutil.SeedCartItem(t, f.repo.DB, cred.UserID, tee, "M", 2)
	testutil.SeedCartItem(t, f.repo.DB, cred.UserID, mug, "", 1)
}

func (f *fixture) placeOnline(t *testing.T, cred *tokens.Credential) *models.Order {
	t.Helper()
	f.fillCart(t, cred)
	order, err := f.orders.PlaceOrder(context.Background(), cred, placeRequest("ONLINE"))
	require.NoError(t, err)
	return order
}

// placeReserved places an ONLINE order and opens its provider order.
func (f *fixture) placeReserved(t *testing.T, cred *tokens.Credential) *models.Order {
	t.Helper()
	order := f.placeOnline(t, cred)
	_, err := f.payments.CreateIntent(context.Background(), cred, order.ID)
	require.NoError(t, err)
	order, err = f.repo.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	return order
}

// capturedPayment reserves a provider order and registers a captured
// payment of amount against it.
func (f *fixture) capturedPayment(t *testing.T, cred *tokens.Credential, order *models.Order, id string, amount decimal.Decimal) gateway.Payment {
	t.Helper()
	intent, err := f.payments.CreateIntent(context.Background(), cred, order.ID)
	require.NoError(t, err)
	p := gateway.Payment{
		ID:        id,
		OrderID:   intent.GatewayOrderID,
		Amount:    pricing.ToMinor(amount),
		Currency:  "INR",
		Status:    gateway.PaymentCaptured,
		CreatedAt: time.Now().Unix(),
		Notes:     map[string]string{"order_id": order.ID.String()},
	}
	f.provider.addPayment(p)
	return p
}

func (f *fixture) cartLen(t *testing.T, userID uuid.UUID) int {
	t.Helper()
	items, err := f.repo.GetCart(context.Background(), userID)
	require.NoError(t, err)
	return len(items)
}

func (f *fixture) status(t *testing.T, id uuid.UUID) models.OrderStatus {
	t.Helper()
	o, err := f.repo.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o.Status
}

func receiptFor(o *models.Order, paymentID string, amount decimal.Decimal) Receipt {
	return Receipt{
		OrderID:          o.ID,
		GatewayPaymentID: paymentID,
		GatewayOrderID:   o.GatewayOrderID,
		Amount:           amount,
		Currency:         o.Currency,
		PaidAt:           time.Now(),
		Source:           SourceClient,
	}
}
