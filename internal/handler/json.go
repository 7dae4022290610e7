package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/freshcart/internal/domain/pricing"
	"github.com/xenking/freshcart/internal/domain/shipping"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

func badRequest(err error) error {
	return errors.Wrap(errBadRequest, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

// decodeBody reads a JSON object from the request body, calling field for
// every key.
func decodeBody(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return badRequest(errors.Wrap(err, "read body"))
	}
	if len(body) == 0 {
		return badRequest(errors.New("empty body"))
	}
	err = jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		return field(d, string(key))
	})
	if err != nil {
		return badRequest(err)
	}
	return nil
}

// money writes v rounded to cents.
func money(e *jx.Encoder, v decimal.Decimal) {
	e.Float64(v.Round(2).InexactFloat64())
}

func moneyField(e *jx.Encoder, name string, v decimal.Decimal) {
	e.FieldStart(name)
	money(e, v)
}

func strField(e *jx.Encoder, name, v string) {
	e.FieldStart(name)
	e.Str(v)
}

// optStrField omits empty strings.
func optStrField(e *jx.Encoder, name, v string) {
	if v != "" {
		strField(e, name, v)
	}
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	f, err := d.Float64()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(f), nil
}

// optStr reads a string that may be null.
func optStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// cartBody is the common body of the cart endpoints.
type cartBody struct {
	Revision    int64
	Items       []pricing.Item
	CouponCode  string
	Fulfillment shipping.Fulfillment
	CampaignID  string
}

func decodeCartBody(r *http.Request) (cartBody, error) {
	var (
		b           cartBody
		fulfillment string
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "revision":
			b.Revision, err = d.Int64()
		case "items":
			b.Items, err = decodeItems(d)
		case "couponCode":
			b.CouponCode, err = optStr(d)
		case "fulfillment":
			fulfillment, err = optStr(d)
		case "campaignId":
			b.CampaignID, err = optStr(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return b, err
	}
	if b.Fulfillment, err = shipping.ParseFulfillment(fulfillment); err != nil {
		return b, badRequest(err)
	}
	return b, nil
}

func decodeItems(d *jx.Decoder) ([]pricing.Item, error) {
	var items []pricing.Item
	err := d.Arr(func(d *jx.Decoder) error {
		var item pricing.Item
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			var err error
			switch string(key) {
			case "productId":
				item.ProductID, err = d.Str()
			case "variantId":
				item.VariantID, err = optStr(d)
			case "quantity":
				item.Quantity, err = d.Int()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		items = append(items, item)
		return nil
	})
	return items, err
}

func (b cartBody) request(r *http.Request) pricing.Request {
	return pricing.Request{
		SessionID:   r.Header.Get(SessionHeader),
		Revision:    b.Revision,
		Items:       b.Items,
		CouponCode:  b.CouponCode,
		Fulfillment: b.Fulfillment,
	}
}
