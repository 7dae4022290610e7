package pricing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/freshcart/internal/domain/campaign"
	"github.com/xenking/freshcart/internal/domain/cart"
	"github.com/xenking/freshcart/internal/domain/coupon"
	"github.com/xenking/freshcart/internal/domain/product"
	"github.com/xenking/freshcart/internal/domain/shipping"
)

const instrumentationName = "github.com/xenking/freshcart/internal/domain/pricing"

// Deps are the collaborators of Service.
type Deps struct {
	Products   product.Repository
	Campaigns  campaign.Repository
	Shipping   shipping.Repository
	Coupons    coupon.Validator
	Selections SelectionStore
}

// Options configures the pricing surfaces.
type Options struct {
	// CartFixed is the FIXED_AMOUNT convention for cart pricing.
	CartFixed campaign.FixedMode
	// ProductFixed is the FIXED_AMOUNT convention for single product views.
	ProductFixed     campaign.FixedMode
	PromptOnMultiple bool
	CurrencySymbol   string
}

// Request is a cart pricing request.
type Request struct {
	SessionID string
	// Revision is echoed back so the client can drop stale responses.
	Revision    int64
	Items       []Item
	CouponCode  string
	Fulfillment shipping.Fulfillment
}

// Result is a priced cart together with the request metadata.
type Result struct {
	PricedCart
	Revision   int64
	CouponCode string
	// CouponErr is set when the coupon was rejected. Pricing continues
	// without it.
	CouponErr error
}

// ProductPrice is the price preview of a single product line.
type ProductPrice struct {
	Product             *product.Product
	VariantID           string
	Quantity            int
	UnitPrice           decimal.Decimal
	Total               decimal.Decimal
	Discount            decimal.Decimal
	DiscountedUnitPrice decimal.Decimal
	DiscountedTotal     decimal.Decimal
	CampaignID          string
	CampaignName        string
}

// Service loads pricing inputs, runs the engine and persists the campaign
// selection.
type Service struct {
	deps    Deps
	cart    Engine
	preview Engine
	now     func() time.Time

	tracer          trace.Tracer
	recomputations  metric.Int64Counter
	disambiguations metric.Int64Counter
	couponRejects   metric.Int64Counter
}

// NewService creates a pricing Service.
func NewService(deps Deps, opts Options, mp metric.MeterProvider, tp trace.TracerProvider) (*Service, error) {
	resolver := shipping.Resolver{CurrencySymbol: opts.CurrencySymbol}
	selector := campaign.Selector{PromptOnMultiple: opts.PromptOnMultiple}

	s := &Service{
		deps: deps,
		cart: Engine{
			Calculator: campaign.Calculator{Fixed: opts.CartFixed},
			Selector:   selector,
			Shipping:   resolver,
		},
		preview: Engine{
			Calculator: campaign.Calculator{Fixed: opts.ProductFixed},
			Selector:   selector,
			Shipping:   resolver,
		},
		now:    time.Now,
		tracer: tp.Tracer(instrumentationName),
	}

	meter := mp.Meter(instrumentationName)
	var err error
	if s.recomputations, err = meter.Int64Counter("pricing.recomputations",
		metric.WithDescription("Cart pricing passes"),
	); err != nil {
		return nil, errors.Wrap(err, "recomputations counter")
	}
	if s.disambiguations, err = meter.Int64Counter("pricing.disambiguations",
		metric.WithDescription("Pricing passes that asked the shopper to pick a campaign"),
	); err != nil {
		return nil, errors.Wrap(err, "disambiguations counter")
	}
	if s.couponRejects, err = meter.Int64Counter("pricing.coupon_rejections",
		metric.WithDescription("Coupons rejected during pricing"),
	); err != nil {
		return nil, errors.Wrap(err, "coupon rejections counter")
	}
	return s, nil
}

// Price prices the cart using the stored selection of the session.
func (s *Service) Price(ctx context.Context, req Request) (*Result, error) {
	return s.run(ctx, req, IntentNone, "", true)
}

// Choose applies and persists an explicit campaign choice. It returns
// campaign.ErrNotCandidate when the campaign does not apply.
func (s *Service) Choose(ctx context.Context, req Request, campaignID string) (*Result, error) {
	return s.run(ctx, req, IntentChoose, campaignID, true)
}

// Dismiss closes the campaign chooser, applying the top-ranked campaign.
func (s *Service) Dismiss(ctx context.Context, req Request) (*Result, error) {
	return s.run(ctx, req, IntentDismiss, "", true)
}

// Reprice recomputes a cart without touching stored selections. A non-empty
// campaignID must name an applicable campaign.
func (s *Service) Reprice(ctx context.Context, req Request, campaignID string) (*Result, error) {
	if campaignID != "" {
		return s.run(ctx, req, IntentChoose, campaignID, false)
	}
	return s.run(ctx, req, IntentNone, "", false)
}

func (s *Service) run(ctx context.Context, req Request, intent Intent, chosen string, persist bool) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "pricing.Price", trace.WithAttributes(
		attribute.Int("pricing.items", len(req.Items)),
		attribute.Int64("pricing.revision", req.Revision),
	))
	defer span.End()

	lg := zctx.From(ctx)
	persist = persist && req.SessionID != ""

	var (
		lines     []cart.Line
		campaigns []campaign.Campaign
		cfg       shipping.Config
		stored    string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		lines, err = ResolveLines(gctx, s.deps.Products, req.Items)
		return err
	})
	g.Go(func() (err error) {
		campaigns, err = s.deps.Campaigns.ListActive(gctx, s.now())
		return errors.Wrap(err, "load campaigns")
	})
	g.Go(func() (err error) {
		cfg, err = s.deps.Shipping.Load(gctx)
		return errors.Wrap(err, "load shipping config")
	})
	if persist && intent == IntentNone {
		g.Go(func() error {
			id, err := s.deps.Selections.Get(gctx, req.SessionID)
			if err != nil {
				lg.Warn("Read campaign selection", zap.String("session", req.SessionID), zap.Error(err))
				return nil
			}
			stored = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load pricing inputs")
		return nil, err
	}

	in := Input{
		Lines:       lines,
		Campaigns:   campaigns,
		Intent:      intent,
		Fulfillment: req.Fulfillment,
		Shipping:    cfg,
	}
	switch intent {
	case IntentChoose:
		in.SelectedCampaignID = chosen
	case IntentNone:
		in.SelectedCampaignID = stored
	}

	res := &Result{Revision: req.Revision}
	if code := coupon.NormalizeCode(req.CouponCode); code != "" {
		res.CouponCode = code
		d, err := s.deps.Coupons.Validate(ctx, code, CouponItems(lines), cart.Subtotal(lines))
		if err != nil {
			res.CouponErr = s.rejectCoupon(ctx, code, err)
		} else {
			in.Coupon = &AppliedCoupon{Code: code, Description: d.Description, Amount: d.Amount}
		}
	}

	priced, err := s.cart.Price(in)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	res.PricedCart = priced

	if persist {
		s.persist(ctx, req.SessionID, priced.Selection)
	}
	if priced.Selection.Pending {
		s.disambiguations.Add(ctx, 1)
	}
	s.recomputations.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("pricing.campaign_applied", priced.Selection.AppliedID != ""),
	))
	span.SetAttributes(attribute.String("pricing.campaign", priced.Selection.AppliedID))

	if priced.Selection.Store != campaign.StoreKeep {
		lg.Debug("Campaign selection changed",
			zap.String("session", req.SessionID),
			zap.Stringer("action", priced.Selection.Store),
			zap.String("campaign", priced.Selection.AppliedID),
		)
	}
	return res, nil
}

// rejectCoupon maps any validation failure to a coupon rejection.
func (s *Service) rejectCoupon(ctx context.Context, code string, err error) error {
	s.couponRejects.Add(ctx, 1)
	if errors.Is(err, coupon.ErrInvalidCoupon) {
		zctx.From(ctx).Debug("Coupon rejected", zap.String("code", code), zap.Error(err))
		return err
	}
	zctx.From(ctx).Warn("Coupon validation failed", zap.String("code", code), zap.Error(err))
	return coupon.ErrInvalidCoupon
}

func (s *Service) persist(ctx context.Context, sessionID string, sel Selection) {
	var err error
	switch sel.Store {
	case campaign.StoreSet:
		err = s.deps.Selections.Set(ctx, sessionID, sel.AppliedID)
	case campaign.StoreClear:
		err = s.deps.Selections.Clear(ctx, sessionID)
	default:
		return
	}
	if err != nil {
		zctx.From(ctx).Warn("Persist campaign selection",
			zap.String("session", sessionID),
			zap.Stringer("action", sel.Store),
			zap.Error(err),
		)
	}
}

// PreviewProduct prices quantity units of a single product with the best
// applicable campaign.
func (s *Service) PreviewProduct(ctx context.Context, productID, variantID string, quantity int) (*ProductPrice, error) {
	ctx, span := s.tracer.Start(ctx, "pricing.PreviewProduct")
	defer span.End()

	if quantity <= 0 {
		return nil, &InvalidQuantityError{ProductID: productID}
	}

	var (
		p         *product.Product
		campaigns []campaign.Campaign
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p, err = s.deps.Products.GetByID(gctx, productID)
		if errors.Is(err, product.ErrNotFound) {
			return &ProductNotFoundError{ProductID: productID}
		}
		return errors.Wrap(err, "get product")
	})
	g.Go(func() (err error) {
		campaigns, err = s.deps.Campaigns.ListActive(gctx, s.now())
		return errors.Wrap(err, "load campaigns")
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	l, err := lineFor(p, Item{ProductID: productID, VariantID: variantID, Quantity: quantity})
	if err != nil {
		return nil, err
	}

	priced, err := s.preview.Price(Input{
		Lines:       []cart.Line{l},
		Campaigns:   campaigns,
		Intent:      IntentDismiss,
		Fulfillment: shipping.Pickup,
	})
	if err != nil {
		return nil, err
	}

	pl := priced.Lines[0]
	return &ProductPrice{
		Product:             p,
		VariantID:           l.VariantID,
		Quantity:            quantity,
		UnitPrice:           l.UnitPrice,
		Total:               l.Total(),
		Discount:            pl.Discount,
		DiscountedUnitPrice: pl.DiscountedUnitPrice,
		DiscountedTotal:     l.Total().Sub(pl.Discount),
		CampaignID:          pl.CampaignID,
		CampaignName:        pl.CampaignName,
	}, nil
}
