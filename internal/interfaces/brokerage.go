package interfaces

import (
	"context"

	"agent-trader/internal/types"
)

// Brokerage is the execution endpoint collaborator. Implementations map
// provider error codes into the brokererr taxonomy before returning.
type Brokerage interface {
	CreateOrder(ctx context.Context, req types.OrderReq) (types.Order, error)
	ListOpenOrders(ctx context.Context, symbol string) ([]types.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	Account(ctx context.Context) (types.Account, error)
	LatestQuote(ctx context.Context, symbol string) (float64, error)
}
