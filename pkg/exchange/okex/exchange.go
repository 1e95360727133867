// Package okex adapts the raw OKX v5 REST client to the engine-facing
// Exchange interface. No business logic lives here; the adapter checks venue
// success codes and converts decimals, nothing more.
package okex

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/signalops/revbot/pkg/exchange/okex/okexapi"
	"github.com/signalops/revbot/pkg/types"
)

var log = logrus.WithField("exchange", "okex")

type Exchange struct {
	client *okexapi.RestClient
}

func New(key, secret, passphrase string, simulated bool) *Exchange {
	client := okexapi.NewClient()
	client.Auth(key, secret, passphrase)
	client.Simulated = simulated
	return &Exchange{client: client}
}

// NewWithClient is used by tests to point the adapter at a fake venue.
func NewWithClient(client *okexapi.RestClient) *Exchange {
	return &Exchange{client: client}
}

func (e *Exchange) SubmitMarketOrder(ctx context.Context, order types.SubmitOrder) (*types.OrderReceipt, error) {
	clientOrderID := strings.ReplaceAll(uuid.NewString(), "-", "")

	resp, err := e.client.NewPlaceOrderRequest().
		InstrumentID(order.Market).
		TradeMode(okexapi.TradeModeCross).
		Side(okexapi.SideType(order.Side)).
		PosSide(okexapi.PosSideType(order.PosSide)).
		OrderType(okexapi.OrderTypeMarket).
		Quantity(order.Quantity.String()).
		ClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "market order failed: %s %s %s", order.Market, order.Side, order.Quantity)
	}

	if !resp.Successful() {
		return nil, errors.Errorf("order rejected by venue: code=%s msg=%s", resp.Code, resp.Message)
	}

	log.Debugf("order accepted: %s %s %s ordId=%s", order.Market, order.Side, order.Quantity, resp.OrderID)

	return &types.OrderReceipt{
		OrderID:       resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
	}, nil
}

func (e *Exchange) QueryAverageFillPrice(ctx context.Context, market, orderID string) (decimal.Decimal, error) {
	detail, err := e.client.NewGetOrderDetailsRequest().
		InstrumentID(market).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	if detail.AveragePrice == "" {
		return decimal.Zero, errors.Errorf("order %s has no average fill price yet", orderID)
	}

	price, err := decimal.NewFromString(detail.AveragePrice)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "invalid average price %q", detail.AveragePrice)
	}

	return price, nil
}

func (e *Exchange) QueryMarkPrice(ctx context.Context, market string) (decimal.Decimal, error) {
	markPrice, err := e.client.NewGetMarkPriceRequest().
		InstrumentID(market).
		Do(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	price, err := decimal.NewFromString(markPrice.MarkPrice)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "invalid mark price %q", markPrice.MarkPrice)
	}

	return price, nil
}
