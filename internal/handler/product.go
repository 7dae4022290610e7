package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/freshcart/internal/domain/pricing"
	"github.com/xenking/freshcart/internal/domain/product"
)

// ListProducts returns every product in the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "list products"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range products {
			h.encodeProduct(e, p)
		}
		e.ArrEnd()
	})
}

// GetProduct returns a single product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.fail(w, r, errors.Wrap(err, "get product"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeProduct(e, *p)
	})
}

// PriceProduct previews the price of a quantity of one product with the best
// campaign for it.
func (h *Handler) PriceProduct(w http.ResponseWriter, r *http.Request) {
	quantity := 1
	if q := r.URL.Query().Get("quantity"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "quantity must be an integer")
			return
		}
		quantity = n
	}

	pp, err := h.pricer.PreviewProduct(r.Context(),
		chi.URLParam(r, "productId"), r.URL.Query().Get("variantId"), quantity)
	if err != nil {
		var notFound *pricing.ProductNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		strField(e, "productId", pp.Product.ID)
		optStrField(e, "variantId", pp.VariantID)
		e.FieldStart("quantity")
		e.Int(pp.Quantity)
		moneyField(e, "unitPrice", pp.UnitPrice)
		moneyField(e, "total", pp.Total)
		moneyField(e, "discount", pp.Discount)
		moneyField(e, "discountedUnitPrice", pp.DiscountedUnitPrice)
		moneyField(e, "discountedTotal", pp.DiscountedTotal)
		optStrField(e, "campaignId", pp.CampaignID)
		optStrField(e, "campaignName", pp.CampaignName)
		e.ObjEnd()
	})
}

// encodeProduct writes p. Image paths are prefixed with the configured
// image base URL.
func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	base := h.imageBaseURL

	e.ObjStart()
	strField(e, "id", p.ID)
	strField(e, "name", p.Name)
	moneyField(e, "price", p.Price)
	strField(e, "categoryId", p.CategoryID)
	e.FieldStart("stock")
	e.Int(p.Stock)

	if len(p.Variants) > 0 {
		e.FieldStart("variants")
		e.ArrStart()
		for _, v := range p.Variants {
			e.ObjStart()
			strField(e, "id", v.ID)
			strField(e, "name", v.Name)
			moneyField(e, "price", v.Price)
			e.FieldStart("stock")
			e.Int(v.Stock)
			e.ObjEnd()
		}
		e.ArrEnd()
	}

	e.FieldStart("image")
	e.ObjStart()
	strField(e, "thumbnail", base+p.Image.Thumbnail)
	strField(e, "mobile", base+p.Image.Mobile)
	strField(e, "tablet", base+p.Image.Tablet)
	strField(e, "desktop", base+p.Image.Desktop)
	e.ObjEnd()
	e.ObjEnd()
}
