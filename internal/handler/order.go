package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/freshcart/internal/domain/order"
	"github.com/xenking/freshcart/internal/domain/shipping"
)

// PlaceOrder re-prices the cart on the server and persists the order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	req, err := decodeOrderRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeOrder(e, res.Order)
	})
}

func decodeOrderRequest(r *http.Request) (order.PlaceOrderRequest, error) {
	var (
		req         order.PlaceOrderRequest
		fulfillment string
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "items":
			req.Items, err = decodeOrderLines(d)
		case "couponCode":
			req.CouponCode, err = optStr(d)
		case "campaignId":
			req.CampaignID, err = optStr(d)
		case "fulfillment":
			fulfillment, err = optStr(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return req, err
	}
	if req.Fulfillment, err = shipping.ParseFulfillment(fulfillment); err != nil {
		return req, badRequest(err)
	}
	return req, nil
}

func decodeOrderLines(d *jx.Decoder) ([]order.LineRequest, error) {
	var lines []order.LineRequest
	err := d.Arr(func(d *jx.Decoder) error {
		var l order.LineRequest
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			var err error
			switch string(key) {
			case "productId":
				l.ProductID, err = d.Str()
			case "variantId":
				l.VariantID, err = optStr(d)
			case "quantity":
				l.Quantity, err = d.Int()
			case "discountedUnitPrice":
				if d.Next() == jx.Null {
					return d.Null()
				}
				var v decimal.Decimal
				v, err = decodeDecimal(d)
				l.DiscountedUnitPrice = decimal.NewNullDecimal(v)
			case "campaignId":
				l.CampaignID, err = optStr(d)
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		lines = append(lines, l)
		return nil
	})
	return lines, err
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	strField(e, "id", o.ID)

	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		strField(e, "productId", item.ProductID)
		optStrField(e, "variantId", item.VariantID)
		strField(e, "name", item.Name)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		moneyField(e, "unitPrice", item.UnitPrice)
		moneyField(e, "discountedUnitPrice", item.DiscountedUnitPrice)
		optStrField(e, "campaignId", item.CampaignID)
		e.ObjEnd()
	}
	e.ArrEnd()

	moneyField(e, "subtotal", o.Subtotal)
	moneyField(e, "campaignDiscount", o.CampaignDiscount)
	moneyField(e, "couponDiscount", o.CouponDiscount)
	moneyField(e, "shippingFee", o.ShippingFee)
	moneyField(e, "total", o.Total)
	optStrField(e, "couponCode", o.CouponCode)
	optStrField(e, "campaignId", o.CampaignID)
	optStrField(e, "campaignName", o.CampaignName)
	strField(e, "fulfillment", string(o.Fulfillment))
	strField(e, "createdAt", o.CreatedAt.Format(time.RFC3339))
	e.ObjEnd()
}
