package okexapi

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
)

type MarkPrice struct {
	InstrumentType string `json:"instType"`
	InstrumentID   string `json:"instId"`
	MarkPrice      string `json:"markPx"`
	Timestamp      string `json:"ts"`
}

type GetMarkPriceRequest struct {
	client *RestClient

	instId string
}

func (r *GetMarkPriceRequest) InstrumentID(instId string) *GetMarkPriceRequest {
	r.instId = instId
	return r
}

func (r *GetMarkPriceRequest) Do(ctx context.Context) (*MarkPrice, error) {
	var params = url.Values{}
	params.Add("instId", r.instId)

	req, err := r.client.newAuthenticatedRequest("GET", "/api/v5/public/mark-price", params, nil)
	if err != nil {
		return nil, err
	}

	response, err := r.client.sendRequest(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	var markPriceResponse struct {
		Code    string      `json:"code"`
		Message string      `json:"msg"`
		Data    []MarkPrice `json:"data"`
	}
	if err := response.DecodeJSON(&markPriceResponse); err != nil {
		return nil, err
	}

	if len(markPriceResponse.Data) == 0 {
		return nil, errors.Errorf("mark price of %s not found", r.instId)
	}

	return &markPriceResponse.Data[0], nil
}

func (c *RestClient) NewGetMarkPriceRequest() *GetMarkPriceRequest {
	return &GetMarkPriceRequest{
		client: c,
	}
}
