package okexapi

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
)

type SideType string

const (
	SideTypeBuy  SideType = "buy"
	SideTypeSell SideType = "sell"
)

type PosSideType string

const (
	PosSideLong  PosSideType = "long"
	PosSideShort PosSideType = "short"
)

type OrderResponse struct {
	OrderID       string `json:"ordId"`
	ClientOrderID string `json:"clOrdId"`
	Tag           string `json:"tag"`
	Code          string `json:"sCode"`
	Message       string `json:"sMsg"`
}

// Successful reports whether the venue accepted this particular order. The
// HTTP layer can succeed while the order itself is rejected, so callers must
// check this before trusting the order id.
func (r *OrderResponse) Successful() bool {
	return r.Code == "0"
}

type PlaceOrderRequest struct {
	client *RestClient

	instId string

	// tdMode: "cross", "isolated", or "cash" for non-margin
	tdMode TradeMode

	clientOrderID *string

	side SideType

	// posSide is the hedge-mode position side the order acts on.
	posSide PosSideType

	ordType OrderType

	// sz is the order quantity
	sz string
}

func (r *PlaceOrderRequest) InstrumentID(instID string) *PlaceOrderRequest {
	r.instId = instID
	return r
}

func (r *PlaceOrderRequest) TradeMode(mode TradeMode) *PlaceOrderRequest {
	r.tdMode = mode
	return r
}

func (r *PlaceOrderRequest) ClientOrderID(clientOrderID string) *PlaceOrderRequest {
	r.clientOrderID = &clientOrderID
	return r
}

func (r *PlaceOrderRequest) Side(side SideType) *PlaceOrderRequest {
	r.side = side
	return r
}

func (r *PlaceOrderRequest) PosSide(posSide PosSideType) *PlaceOrderRequest {
	r.posSide = posSide
	return r
}

func (r *PlaceOrderRequest) OrderType(orderType OrderType) *PlaceOrderRequest {
	r.ordType = orderType
	return r
}

func (r *PlaceOrderRequest) Quantity(quantity string) *PlaceOrderRequest {
	r.sz = quantity
	return r
}

func (r *PlaceOrderRequest) Parameters() map[string]interface{} {
	payload := map[string]interface{}{}

	payload["instId"] = r.instId

	if r.tdMode == "" {
		payload["tdMode"] = TradeModeCash
	} else {
		payload["tdMode"] = r.tdMode
	}

	if r.clientOrderID != nil {
		payload["clOrdId"] = r.clientOrderID
	}

	payload["side"] = r.side

	if r.posSide != "" {
		payload["posSide"] = r.posSide
	}

	payload["ordType"] = r.ordType
	payload["sz"] = r.sz

	return payload
}

func (r *PlaceOrderRequest) Do(ctx context.Context) (*OrderResponse, error) {
	payload := r.Parameters()
	req, err := r.client.newAuthenticatedRequest("POST", "/api/v5/trade/order", nil, payload)
	if err != nil {
		return nil, err
	}

	response, err := r.client.sendRequest(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	var orderResponse struct {
		Code    string          `json:"code"`
		Message string          `json:"msg"`
		Data    []OrderResponse `json:"data"`
	}
	if err := response.DecodeJSON(&orderResponse); err != nil {
		return nil, err
	}

	if len(orderResponse.Data) == 0 {
		return nil, errors.New("order create error")
	}

	return &orderResponse.Data[0], nil
}

func (c *RestClient) NewPlaceOrderRequest() *PlaceOrderRequest {
	return &PlaceOrderRequest{
		client: c,
	}
}

type OrderDetail struct {
	InstrumentID  string `json:"instId"`
	OrderID       string `json:"ordId"`
	ClientOrderID string `json:"clOrdId"`
	State         string `json:"state"`

	// AveragePrice is empty until the venue has recorded a fill.
	AveragePrice string `json:"avgPx"`
	FilledSize   string `json:"accFillSz"`
}

type GetOrderDetailsRequest struct {
	client *RestClient

	instId string
	ordId  string
}

func (r *GetOrderDetailsRequest) InstrumentID(instId string) *GetOrderDetailsRequest {
	r.instId = instId
	return r
}

func (r *GetOrderDetailsRequest) OrderID(orderID string) *GetOrderDetailsRequest {
	r.ordId = orderID
	return r
}

func (r *GetOrderDetailsRequest) Do(ctx context.Context) (*OrderDetail, error) {
	var params = url.Values{}
	params.Add("instId", r.instId)
	params.Add("ordId", r.ordId)

	req, err := r.client.newAuthenticatedRequest("GET", "/api/v5/trade/order", params, nil)
	if err != nil {
		return nil, err
	}

	response, err := r.client.sendRequest(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	var detailResponse struct {
		Code    string        `json:"code"`
		Message string        `json:"msg"`
		Data    []OrderDetail `json:"data"`
	}
	if err := response.DecodeJSON(&detailResponse); err != nil {
		return nil, err
	}

	if len(detailResponse.Data) == 0 {
		return nil, errors.Errorf("order %s not found", r.ordId)
	}

	return &detailResponse.Data[0], nil
}

func (c *RestClient) NewGetOrderDetailsRequest() *GetOrderDetailsRequest {
	return &GetOrderDetailsRequest{
		client: c,
	}
}
