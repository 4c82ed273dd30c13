package broker

import (
	"fmt"
	"sync"
	"time"

	"IndexPilot/internal/model"
)

// MockAdapter returns controllable fixed data for development and
// testing. All fields may be set freely before use.
type MockAdapter struct {
	mu sync.Mutex

	Price      float64
	TickErr    error
	Candles    map[model.Timeframe][]model.Candle
	DayRefs    model.DayReferences
	RefPrices  map[string]float64
	Positions  []Position
	OrderAck   string // ticket returned by SendOrder; "" simulates no ack
	OrderErr   error
	SentOrders []Order
	ClosedIDs  []string
}

func NewMockAdapter(price float64) *MockAdapter {
	return &MockAdapter{
		Price:     price,
		OrderAck:  "MOCK-1",
		RefPrices: map[string]float64{},
	}
}

func (m *MockAdapter) Name() string { return "mock" }

func (m *MockAdapter) GetTick(_ string) (model.Tick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TickErr != nil {
		return model.Tick{}, m.TickErr
	}
	return model.Tick{Bid: m.Price - 2.5, Ask: m.Price + 2.5, Last: m.Price, Time: time.Now()}, nil
}

func (m *MockAdapter) GetCandles(_ string, tf model.Timeframe, count int) ([]model.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bars, ok := m.Candles[tf]; ok {
		if len(bars) > count {
			return bars[len(bars)-count:], nil
		}
		return bars, nil
	}
	return GenerateBars(m.Price, count), nil
}

func (m *MockAdapter) GetDayReferences(_ string) (model.DayReferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.DayRefs, nil
}

func (m *MockAdapter) GetReferencePrice(symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.RefPrices[symbol]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("no reference price for %s", symbol)
}

func (m *MockAdapter) SendOrder(o Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OrderErr != nil {
		return "", m.OrderErr
	}
	m.SentOrders = append(m.SentOrders, o)
	if m.OrderAck != "" {
		m.Positions = append(m.Positions, Position{
			BrokerID: m.OrderAck, Symbol: o.Symbol, Direction: o.Direction,
			Quantity: o.Quantity, Entry: o.Price, Stop: o.Stop, Target: o.Target,
		})
	}
	return m.OrderAck, nil
}

func (m *MockAdapter) ClosePositionByTicket(brokerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClosedIDs = append(m.ClosedIDs, brokerID)
	for i, p := range m.Positions {
		if p.BrokerID == brokerID {
			m.Positions = append(m.Positions[:i], m.Positions[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MockAdapter) GetPositions(_ string) ([]Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Position, len(m.Positions))
	copy(out, m.Positions)
	return out, nil
}

func (m *MockAdapter) ResolveOpenPositionTicket(_ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Positions) == 0 {
		return "", nil
	}
	return m.Positions[0].BrokerID, nil
}

// GenerateBars builds a gently trending synthetic series around a base
// price, for development and tests.
func GenerateBars(basePrice float64, count int) []model.Candle {
	bars := make([]model.Candle, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.0005)
		bars[i] = model.Candle{
			Time:   time.Now().Add(-time.Duration(count-i) * 5 * time.Minute),
			Open:   p * 0.9995,
			High:   p * 1.0015,
			Low:    p * 0.9985,
			Close:  p,
			Volume: 1000,
		}
	}
	return bars
}
