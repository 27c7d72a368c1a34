package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
)

type stkCallbackEnvelope struct {
	Body struct {
		StkCallback *struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseSTKCallback decodes a Daraja STK callback body into the checkout
// request id it answers and a provider-neutral result.
func ParseSTKCallback(body []byte) (string, model.CallbackResult, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var env stkCallbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return "", model.CallbackResult{}, fmt.Errorf("%w: callback body: %v", domain.ErrInvalidArgument, err)
	}
	cb := env.Body.StkCallback
	if cb == nil || cb.CheckoutRequestID == "" {
		return "", model.CallbackResult{}, fmt.Errorf("%w: callback without checkout request id", domain.ErrInvalidArgument)
	}

	res := model.CallbackResult{
		Outcome:    model.PaymentStatusFailed,
		ResultCode: cb.ResultCode,
		ResultDesc: cb.ResultDesc,
	}
	if cb.ResultCode == 0 {
		res.Outcome = model.PaymentStatusCompleted
	}
	for _, it := range cb.CallbackMetadata.Item {
		switch it.Name {
		case "Amount":
			if v, err := numberValue(it.Value); err == nil {
				res.Amount = int64(v)
			}
		case "MpesaReceiptNumber":
			res.Receipt = stringValue(it.Value)
		case "PhoneNumber":
			res.Phone = stringValue(it.Value)
		case "TransactionDate":
			if t, err := time.ParseInLocation("20060102150405", stringValue(it.Value), eat); err == nil {
				utc := t.UTC()
				res.PaidAt = &utc
			}
		}
	}
	return cb.CheckoutRequestID, res, nil
}

func numberValue(v any) (float64, error) {
	switch x := v.(type) {
	case json.Number:
		return x.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, errors.New("not a number")
	}
}

func stringValue(v any) string {
	switch x := v.(type) {
	case json.Number:
		return x.String()
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// CallbackAck is the body Daraja expects in reply to a callback.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func AcceptedAck() CallbackAck { return CallbackAck{ResultCode: 0, ResultDesc: "Accepted"} }
