package simulator

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/model"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/obs"
)

// Purchase quantities and their relative weights.
var (
	Quantities      = []int{1, 2, 3, 4, 5}
	QuantityWeights = []int{60, 20, 10, 5, 5}
)

// Restock parameters.
const (
	RestockCutoff       = 20
	RestockSampleSize   = 5
	RestockMinAmount    = 20
	RestockMaxAmount    = 50
	ManualRestockAmount = 50
)

// Tick generates one order: it samples an in-stock product, draws a quantity clamped
// to the available stock, persists the order with its stock decrement and may
// restock a low product afterwards.
func (e *Engine) Tick(ctx context.Context) (model.Order, error) {
	candidates, err := e.inv.FindInStock(ctx, e.opts.SampleCandidates)
	if err != nil {
		return model.Order{}, errors.Wrap(err, "sample product")
	}
	if len(candidates) == 0 {
		return model.Order{}, ErrNoStockAvailable
	}
	p := Pick(e.rnd, candidates)

	qty := Quantities[e.rnd.Weighted(QuantityWeights)]
	if qty > p.Stock {
		qty = p.Stock
	}

	now := e.opts.Now().UTC()
	o := model.Order{
		ID:          uuid.NewString(),
		ProductID:   p.ID,
		ProductName: p.Name,
		Category:    p.Category,
		Quantity:    qty,
		TotalPrice:  LineTotal(p.Price, qty),
		Timestamp:   now,
		Region:      Pick(e.rnd, model.Regions),
	}

	if err := e.persist(ctx, o); err != nil {
		return model.Order{}, err
	}
	obs.OrdersGenerated.Add(1)
	obs.Logger.Info("order_generated",
		"order_id", o.ID,
		"product", o.ProductName,
		"quantity", o.Quantity,
		"total_price", o.TotalPrice,
		"region", o.Region,
	)
	if e.opts.Publisher != nil {
		e.opts.Publisher.Publish(o)
	}

	if e.opts.RestockProbability > 0 && e.rnd.Float64() < e.opts.RestockProbability {
		if _, _, err := e.RestockLow(ctx); err != nil {
			return o, errors.Wrap(err, "restock")
		}
	}
	return o, nil
}

func (e *Engine) persist(ctx context.Context, o model.Order) error {
	if e.placer != nil {
		return errors.Wrap(e.placer.PlaceOrder(ctx, o), "place order")
	}
	if err := e.orders.AppendOrder(ctx, o); err != nil {
		return errors.Wrap(err, "append order")
	}
	if _, err := e.inv.AdjustStock(ctx, o.ProductID, -o.Quantity, o.Timestamp); err != nil {
		return errors.Wrapf(err, "order %s stored without stock decrement", o.ID)
	}
	return nil
}

// RestockLow picks one of up to RestockSampleSize products below RestockCutoff and
// adds a random amount in [RestockMinAmount, RestockMaxAmount]. It reports false when
// no product is low.
func (e *Engine) RestockLow(ctx context.Context) (model.Product, bool, error) {
	low, err := e.inv.FindLowStock(ctx, RestockCutoff, RestockSampleSize)
	if err != nil {
		return model.Product{}, false, errors.Wrap(err, "find low stock")
	}
	if len(low) == 0 {
		return model.Product{}, false, nil
	}
	target := Pick(e.rnd, low)
	amount := e.rnd.IntBetween(RestockMinAmount, RestockMaxAmount)
	p, err := e.inv.AdjustStock(ctx, target.ID, amount, e.opts.Now())
	if err != nil {
		return model.Product{}, false, errors.Wrapf(err, "restock %s", target.ID)
	}
	obs.RestocksApplied.Add(1)
	obs.Logger.Info("restock_applied", "product", p.Name, "amount", amount, "stock", p.Stock)
	return p, true, nil
}

// RestockByID adds ManualRestockAmount to the product. Unknown ids yield
// store.ErrNotFound.
func (e *Engine) RestockByID(ctx context.Context, id string) (model.Product, error) {
	p, err := e.inv.AdjustStock(ctx, id, ManualRestockAmount, e.opts.Now())
	if err != nil {
		return model.Product{}, errors.Wrapf(err, "restock %s", id)
	}
	obs.RestocksApplied.Add(1)
	obs.Logger.Info("manual_restock_applied", "product", p.Name, "amount", ManualRestockAmount, "stock", p.Stock)
	return p, nil
}

// LineTotal is price × quantity rounded half away from zero to cents.
func LineTotal(price float64, qty int) float64 {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty))).Round(2).InexactFloat64()
}
