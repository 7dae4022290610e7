package main

import (
	"context"
	"encoding/csv"
	"io"
	"math/bits"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/freshcart/internal/domain/coupon"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	maxFiles      = bits.UintSize
	parallelFiles = 4
)

var hundred = decimal.NewFromInt(100)

type couponWriter interface {
	UpsertBatch(ctx context.Context, rules []coupon.Rule) error
}

type discard struct{}

func (discard) UpsertBatch(context.Context, []coupon.Rule) error { return nil }

type stats struct {
	written atomic.Int64
	skipped atomic.Int64
	invalid atomic.Int64
}

// ingester loads coupon batches. A code that shows up in more than one batch
// file is ambiguous and is dropped everywhere.
type ingester struct {
	lg        *zap.Logger
	writer    couponWriter
	batchSize int
	// capacity sizes the bloom filters; zero means bloomCapacity.
	capacity uint
}

// duplicates returns the codes present in two or more files. Bloom filters
// narrow the candidates; the per-file bitmasks confirm them exactly.
func (i *ingester) duplicates(ctx context.Context, files []string) (map[string]struct{}, error) {
	if len(files) > maxFiles {
		return nil, errors.Errorf("too many batch files: %d > %d", len(files), maxFiles)
	}

	capacity := i.capacity
	if capacity == 0 {
		capacity = bloomCapacity
	}

	filters := make([]*bloom.BloomFilter, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelFiles)
	for idx, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(capacity, bloomFPR)
			n, err := streamCodes(gctx, path, func(code string) {
				filter.AddString(code)
			})
			if err != nil {
				return errors.Wrapf(err, "index %s", path)
			}
			i.lg.Info("Indexed batch", zap.String("file", path), zap.Int64("codes", n))
			filters[idx] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	masks := make([]map[string]uint, len(files))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(parallelFiles)
	for idx, path := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			bit := uint(1) << uint(idx)
			_, err := streamCodes(gctx, path, func(code string) {
				for j, f := range filters {
					if j != idx && f.TestString(code) {
						candidates[code] |= bit
						return
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			masks[idx] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, m := range masks {
		for code, mask := range m {
			merged[code] |= mask
		}
	}
	dupes := make(map[string]struct{})
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			dupes[code] = struct{}{}
		}
	}
	return dupes, nil
}

// load parses every file and writes the rules that are not in skip.
func (i *ingester) load(ctx context.Context, files []string, skip map[string]struct{}) (*stats, error) {
	st := &stats{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelFiles)
	for _, path := range files {
		g.Go(func() error {
			return i.loadFile(gctx, path, skip, st)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return st, nil
}

func (i *ingester) loadFile(ctx context.Context, path string, skip map[string]struct{}, st *stats) error {
	batch := make([]coupon.Rule, 0, i.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := i.writer.UpsertBatch(ctx, batch); err != nil {
			return err
		}
		st.written.Add(int64(len(batch)))
		batch = make([]coupon.Rule, 0, i.batchSize)
		return nil
	}

	err := streamRecords(ctx, path, func(line int64, rec []string) error {
		rule, err := parseRule(rec)
		if err != nil {
			st.invalid.Add(1)
			i.lg.Debug("Invalid coupon row", zap.String("file", path), zap.Int64("line", line), zap.Error(err))
			return nil
		}
		if _, ok := skip[rule.Code]; ok {
			st.skipped.Add(1)
			return nil
		}
		batch = append(batch, rule)
		if len(batch) >= i.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	return flush()
}

// parseRule reads a code,type,value,min_purchase,max_uses row.
func parseRule(rec []string) (coupon.Rule, error) {
	if len(rec) < 3 {
		return coupon.Rule{}, errors.Errorf("want at least 3 fields, got %d", len(rec))
	}
	field := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	rule := coupon.Rule{
		Code:         coupon.NormalizeCode(rec[0]),
		DiscountType: coupon.DiscountType(strings.ToLower(field(1))),
	}
	if rule.Code == "" {
		return rule, errors.New("empty code")
	}

	value, err := decimal.NewFromString(field(2))
	if err != nil {
		return rule, errors.Wrap(err, "value")
	}
	if !value.IsPositive() {
		return rule, errors.New("value must be positive")
	}
	rule.Value = value

	switch rule.DiscountType {
	case coupon.DiscountPercentage:
		if value.GreaterThan(hundred) {
			return rule, errors.New("percentage above 100")
		}
		rule.Description = value.String() + "% off"
	case coupon.DiscountFixed:
		rule.Description = value.StringFixed(2) + " off"
	default:
		return rule, errors.Errorf("unknown discount type %q", rule.DiscountType)
	}

	if s := field(3); s != "" {
		minPurchase, err := decimal.NewFromString(s)
		if err != nil {
			return rule, errors.Wrap(err, "min_purchase")
		}
		rule.MinPurchase = decimal.NewNullDecimal(minPurchase)
	}
	if s := field(4); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return rule, errors.Errorf("bad max_uses %q", s)
		}
		rule.MaxUses = n
	}
	return rule, nil
}

// streamCodes calls fn with the normalized code of every data row.
func streamCodes(ctx context.Context, path string, fn func(code string)) (int64, error) {
	var n int64
	err := streamRecords(ctx, path, func(_ int64, rec []string) error {
		if code := coupon.NormalizeCode(rec[0]); code != "" {
			fn(code)
			n++
		}
		return nil
	})
	return n, err
}

// streamRecords decompresses a CSV batch and calls fn for every data row.
// A leading header row is skipped.
func streamRecords(ctx context.Context, path string, fn func(line int64, rec []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "gzip reader")
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	for line := int64(1); ; line++ {
		if line%progressEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "code") {
			continue
		}
		if err := fn(line, rec); err != nil {
			return err
		}
	}
}
