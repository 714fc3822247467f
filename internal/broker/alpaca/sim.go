package alpaca

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"agent-trader/internal/brokererr"
	"agent-trader/internal/logger"
	"agent-trader/internal/types"
)

// Sim is the DRY_RUN brokerage: orders are tracked in memory and market
// orders fill instantly at the simulated quote. It reproduces the
// provider's wash-trade rejection so conflict handling can be exercised
// offline, including the same numeric code the live API returns.
type Sim struct {
	mu          sync.Mutex
	rng         *rand.Rand
	orders      map[string]*types.Order
	bases       map[string]float64
	totalValue  float64
	buyingPower float64
	dayChange   float64
}

// NewSim creates a simulator with a seeded random source so dry runs are
// reproducible.
func NewSim(seed int64) *Sim {
	return &Sim{
		rng:         rand.New(rand.NewSource(seed)),
		orders:      map[string]*types.Order{},
		bases:       map[string]float64{},
		totalValue:  100000,
		buyingPower: 100000,
	}
}

func (s *Sim) CreateOrder(ctx context.Context, req types.OrderReq) (types.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Mirror the provider's wash-trade protection: an active opposite-side
	// order for the same symbol rejects the submission.
	for _, o := range s.orders {
		if o.Symbol == req.Symbol && o.Side != req.Side && types.IsActiveOrderStatus(o.Status) {
			return types.Order{}, brokererr.FromProviderCode(brokererr.CodeWashTrade,
				fmt.Sprintf("potential wash trade detected: open %s order %s", o.Side, o.ID))
		}
	}

	price := s.quoteLocked(req.Symbol)
	if req.Side == types.SideBuy && float64(req.Qty)*price > s.buyingPower {
		return types.Order{}, brokererr.FromProviderCode(brokererr.CodeInsufficientFunds,
			"insufficient buying power")
	}

	order := &types.Order{
		ID:        "SIM-" + uuid.NewString(),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Qty:       req.Qty,
		Type:      req.Type,
		CreatedAt: time.Now(),
	}
	if req.Type == "limit" {
		// Limit orders rest on the book until cancelled.
		order.Status = "new"
		if req.LimitPrice != nil {
			order.FilledAvgPrice = 0
		}
	} else {
		order.Status = "filled"
		order.FilledAvgPrice = price
		if req.Side == types.SideBuy {
			s.buyingPower -= float64(req.Qty) * price
		} else {
			s.buyingPower += float64(req.Qty) * price
		}
	}
	s.orders[order.ID] = order

	logger.Info(ctx, "Simulated order placed", "symbol", req.Symbol, "side", req.Side,
		"qty", req.Qty, "order_id", order.ID, "status", order.Status)
	return *order, nil
}

func (s *Sim) ListOpenOrders(ctx context.Context, symbol string) ([]types.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var open []types.Order
	for _, o := range s.orders {
		if o.Symbol == symbol && types.IsActiveOrderStatus(o.Status) {
			open = append(open, *o)
		}
	}
	return open, nil
}

func (s *Sim) CancelOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return brokererr.FromProviderCode(brokererr.CodeInvalidOrder, "order not found: "+orderID)
	}
	if !types.IsActiveOrderStatus(o.Status) {
		return brokererr.FromProviderCode(brokererr.CodeInvalidOrder, "order not cancelable: "+orderID)
	}
	o.Status = "canceled"
	return nil
}

func (s *Sim) Account(ctx context.Context) (types.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Small random day drift keeps the daily-risk check exercised.
	s.dayChange += (s.rng.Float64() - 0.5) * 50
	return types.Account{
		TotalValue:  s.totalValue,
		BuyingPower: s.buyingPower,
		DayChange:   s.dayChange,
	}, nil
}

func (s *Sim) LatestQuote(ctx context.Context, symbol string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quoteLocked(symbol), nil
}

// quoteLocked random-walks a per-symbol price. Caller holds s.mu.
func (s *Sim) quoteLocked(symbol string) float64 {
	base, ok := s.bases[symbol]
	if !ok {
		base = 50 + s.rng.Float64()*400
	}
	base += (s.rng.Float64() - 0.5) * base * 0.01
	if base < 1 {
		base = 1
	}
	s.bases[symbol] = base
	return base
}
