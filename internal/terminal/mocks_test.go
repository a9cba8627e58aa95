package terminal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"
)

// MockPublisher is a mock implementation of events.Publisher for testing
type MockPublisher struct {
	mu          sync.Mutex
	published   []PublishedMessage
	PublishFunc func(ctx context.Context, topic string, msg []byte) error
}

type PublishedMessage struct {
	Topic string
	Data  []byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, PublishedMessage{Topic: topic, Data: msg})
	return nil
}

func (m *MockPublisher) Published() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedMessage, len(m.published))
	copy(out, m.published)
	return out
}

// MockStreamConsumer implements events.StreamConsumer for testing
type MockStreamConsumer struct {
	FetchFunc           func(ctx context.Context, maxMessages int) ([]events.StreamMessage, error)
	SubscribeStreamFunc func(ctx context.Context, handler events.HandlerFunc) error
}

func (m *MockStreamConsumer) Fetch(ctx context.Context, maxMessages int) ([]events.StreamMessage, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, maxMessages)
	}
	return nil, nil
}

func (m *MockStreamConsumer) SubscribeStream(ctx context.Context, handler events.HandlerFunc) error {
	if m.SubscribeStreamFunc != nil {
		return m.SubscribeStreamFunc(ctx, handler)
	}
	return nil
}

// MockOrderStore is a mock implementation of OrderStore for testing
type MockOrderStore struct {
	mu     sync.RWMutex
	orders map[OrderID]*PersistedOrder
	nextNo int

	CreateOrderFunc    func(ctx context.Context, input CreateOrderInput) (*PersistedOrder, error)
	AppendItemsFunc    func(ctx context.Context, orderID OrderID, items []NewOrderItem) ([]PersistedItem, error)
	PatchOrderFunc     func(ctx context.Context, orderID OrderID, patch OrderPatch) error
	GetOrderFunc       func(ctx context.Context, orderID OrderID) (*PersistedOrder, error)
	SendToKitchenFunc  func(ctx context.Context, orderID OrderID, employeeID string) error
	ListOpenOrdersFunc func(ctx context.Context) ([]PersistedOrder, error)
}

func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{
		orders: make(map[OrderID]*PersistedOrder),
		nextNo: 100,
	}
}

func (m *MockOrderStore) CreateOrder(ctx context.Context, input CreateOrderInput) (*PersistedOrder, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, input)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextNo++
	order := &PersistedOrder{
		ID:         uuid.New(),
		Number:     fmt.Sprintf("T-%d", m.nextNo),
		OrderType:  input.OrderType,
		TableID:    input.TableID,
		TabName:    input.TabName,
		GuestCount: input.GuestCount,
		Status:     StatusDraft,
	}
	for _, in := range input.Items {
		order.Items = append(order.Items, PersistedItem{
			ID:         uuid.New(),
			ClientRef:  in.ClientRef,
			MenuItemID: in.MenuItemID,
			Name:       in.Name,
			Price:      in.Price,
			Quantity:   in.Quantity,
			Modifiers:  in.Modifiers,
			SeatNumber: in.SeatNumber,
			Status:     in.Status,
		})
		order.Subtotal += in.Price * float64(in.Quantity)
	}
	order.Total = order.Subtotal
	m.orders[order.ID] = order
	return order, nil
}

func (m *MockOrderStore) AppendItems(ctx context.Context, orderID OrderID, items []NewOrderItem) ([]PersistedItem, error) {
	if m.AppendItemsFunc != nil {
		return m.AppendItemsFunc(ctx, orderID, items)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order not found")
	}
	var appended []PersistedItem
	for _, in := range items {
		item := PersistedItem{
			ID:         uuid.New(),
			ClientRef:  in.ClientRef,
			MenuItemID: in.MenuItemID,
			Name:       in.Name,
			Price:      in.Price,
			Quantity:   in.Quantity,
			Modifiers:  in.Modifiers,
			SeatNumber: in.SeatNumber,
			Status:     in.Status,
		}
		order.Items = append(order.Items, item)
		appended = append(appended, item)
	}
	return appended, nil
}

func (m *MockOrderStore) PatchOrder(ctx context.Context, orderID OrderID, patch OrderPatch) error {
	if m.PatchOrderFunc != nil {
		return m.PatchOrderFunc(ctx, orderID, patch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found")
	}
	if patch.TabName != nil {
		order.TabName = *patch.TabName
	}
	if patch.TableID != nil {
		order.TableID = *patch.TableID
	}
	if patch.GuestCount != nil {
		order.GuestCount = *patch.GuestCount
	}
	if patch.Status != nil {
		order.Status = *patch.Status
	}
	return nil
}

func (m *MockOrderStore) GetOrder(ctx context.Context, orderID OrderID) (*PersistedOrder, error) {
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, orderID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order not found")
	}
	return order, nil
}

func (m *MockOrderStore) SendToKitchen(ctx context.Context, orderID OrderID, employeeID string) error {
	if m.SendToKitchenFunc != nil {
		return m.SendToKitchenFunc(ctx, orderID, employeeID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found")
	}
	order.Status = StatusSent
	for i := range order.Items {
		order.Items[i].SentToKitchen = true
	}
	return nil
}

func (m *MockOrderStore) ListOpenOrders(ctx context.Context) ([]PersistedOrder, error) {
	if m.ListOpenOrdersFunc != nil {
		return m.ListOpenOrdersFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []PersistedOrder
	for _, o := range m.orders {
		if o.Status != StatusPaid {
			result = append(result, *o)
		}
	}
	return result, nil
}

func (m *MockOrderStore) Stored(orderID OrderID) *PersistedOrder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orders[orderID]
}

// MockSplitService is a mock implementation of SplitService for testing
type MockSplitService struct {
	mu     sync.Mutex
	splits map[OrderID][]SplitTicket

	ListSplitsFunc   func(ctx context.Context, parentID OrderID) ([]SplitTicket, error)
	CreateSplitFunc  func(ctx context.Context, parentID OrderID) (SplitTicket, error)
	PayAllSplitsFunc func(ctx context.Context, parentID OrderID, method string, card *CardDetails) (*PayAllResult, error)
}

func NewMockSplitService() *MockSplitService {
	return &MockSplitService{
		splits: make(map[OrderID][]SplitTicket),
	}
}

func (m *MockSplitService) ListSplits(ctx context.Context, parentID OrderID) ([]SplitTicket, error) {
	if m.ListSplitsFunc != nil {
		return m.ListSplitsFunc(ctx, parentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SplitTicket, len(m.splits[parentID]))
	copy(out, m.splits[parentID])
	return out, nil
}

func (m *MockSplitService) CreateSplit(ctx context.Context, parentID OrderID) (SplitTicket, error) {
	if m.CreateSplitFunc != nil {
		return m.CreateSplitFunc(ctx, parentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	split := SplitTicket{
		ID:            uuid.New(),
		ParentOrderID: parentID,
		DisplayNumber: len(m.splits[parentID]) + 1,
	}
	m.splits[parentID] = append(m.splits[parentID], split)
	return split, nil
}

func (m *MockSplitService) PayAllSplits(ctx context.Context, parentID OrderID, method string, card *CardDetails) (*PayAllResult, error) {
	if m.PayAllSplitsFunc != nil {
		return m.PayAllSplitsFunc(ctx, parentID, method, card)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := &PayAllResult{}
	for i := range m.splits[parentID] {
		if !m.splits[parentID][i].IsPaid {
			m.splits[parentID][i].IsPaid = true
			result.SplitsPaid++
			result.TotalAmount += m.splits[parentID][i].Total
		}
	}
	return result, nil
}

func (m *MockSplitService) SetSplits(parentID OrderID, splits []SplitTicket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.splits[parentID] = splits
}

// MockPaymentGateway is a mock implementation of PaymentGateway for testing
type MockPaymentGateway struct {
	AuthorizeCardFunc          func(ctx context.Context, orderID OrderID, amount float64) (*CardAuthorization, error)
	IncrementAuthorizationFunc func(ctx context.Context, orderID OrderID) (*AuthIncrement, error)
	PayFunc                    func(ctx context.Context, orderID OrderID, method string) (*ReceiptData, error)
}

func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{}
}

func (m *MockPaymentGateway) AuthorizeCard(ctx context.Context, orderID OrderID, amount float64) (*CardAuthorization, error) {
	if m.AuthorizeCardFunc != nil {
		return m.AuthorizeCardFunc(ctx, orderID, amount)
	}
	return &CardAuthorization{
		Approved:         true,
		CardLast4:        "4242",
		CardholderName:   "Jordan Avery",
		CardType:         "visa",
		AuthorizedAmount: amount,
	}, nil
}

func (m *MockPaymentGateway) IncrementAuthorization(ctx context.Context, orderID OrderID) (*AuthIncrement, error) {
	if m.IncrementAuthorizationFunc != nil {
		return m.IncrementAuthorizationFunc(ctx, orderID)
	}
	return &AuthIncrement{Action: AuthActionIncremented}, nil
}

func (m *MockPaymentGateway) Pay(ctx context.Context, orderID OrderID, method string) (*ReceiptData, error) {
	if m.PayFunc != nil {
		return m.PayFunc(ctx, orderID, method)
	}
	return &ReceiptData{
		OrderID: orderID,
		Method:  method,
		PaidAt:  time.Now(),
	}, nil
}

// MockKitchenDispatcher is a mock implementation of KitchenDispatcher for testing
type MockKitchenDispatcher struct {
	mu         sync.Mutex
	dispatched []KitchenDispatch

	DispatchFunc func(ctx context.Context, ticket KitchenDispatch) error
}

func NewMockKitchenDispatcher() *MockKitchenDispatcher {
	return &MockKitchenDispatcher{}
}

func (m *MockKitchenDispatcher) Dispatch(ctx context.Context, ticket KitchenDispatch) error {
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, ticket)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatched = append(m.dispatched, ticket)
	return nil
}

func (m *MockKitchenDispatcher) Dispatched() []KitchenDispatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]KitchenDispatch, len(m.dispatched))
	copy(out, m.dispatched)
	return out
}
