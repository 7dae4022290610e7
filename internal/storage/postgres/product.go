package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/freshcart/internal/domain/product"
)

const (
	productColumns = `id, name, price, category_id, stock,
		image_thumbnail, image_mobile, image_tablet, image_desktop`

	listProductsSQL      = `SELECT ` + productColumns + ` FROM products ORDER BY id`
	getProductByIDSQL    = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	getProductsByIDsSQL  = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`
	listVariantsByIDsSQL = `SELECT product_id, id, name, price, stock
		FROM product_variants WHERE product_id = ANY($1) ORDER BY product_id, position, id`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price, category_id = EXCLUDED.category_id,
			stock = EXCLUDED.stock, image_thumbnail = EXCLUDED.image_thumbnail,
			image_mobile = EXCLUDED.image_mobile, image_tablet = EXCLUDED.image_tablet,
			image_desktop = EXCLUDED.image_desktop`
	deleteVariantsSQL = `DELETE FROM product_variants WHERE product_id = $1`
	insertVariantSQL  = `INSERT INTO product_variants (product_id, id, name, price, stock, position)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return r.withVariants(ctx, products)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	products, err := r.withVariants(ctx, []product.Product{p})
	if err != nil {
		return nil, err
	}
	return &products[0], nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	return r.withVariants(ctx, products)
}

// Upsert writes p and replaces its variants.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Price, p.CategoryID, p.Stock,
			p.Image.Thumbnail, p.Image.Mobile, p.Image.Tablet, p.Image.Desktop,
		); err != nil {
			return errors.Wrapf(err, "upsert product %q", p.ID)
		}
		if _, err := tx.Exec(ctx, deleteVariantsSQL, p.ID); err != nil {
			return errors.Wrapf(err, "delete variants of %q", p.ID)
		}
		for i, v := range p.Variants {
			if _, err := tx.Exec(ctx, insertVariantSQL, p.ID, v.ID, v.Name, v.Price, v.Stock, i); err != nil {
				return errors.Wrapf(err, "insert variant %q of %q", v.ID, p.ID)
			}
		}
		return nil
	})
}

func (r *ProductRepository) withVariants(ctx context.Context, products []product.Product) ([]product.Product, error) {
	if len(products) == 0 {
		return products, nil
	}

	ids := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := r.pool.Query(ctx, listVariantsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "list variants")
	}
	var (
		productID string
		v         product.Variant
	)
	_, err = pgx.ForEachRow(rows, []any{&productID, &v.ID, &v.Name, &v.Price, &v.Stock}, func() error {
		i := index[productID]
		products[i].Variants = append(products[i].Variants, v)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list variants")
	}
	return products, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Price, &p.CategoryID, &p.Stock,
		&p.Image.Thumbnail, &p.Image.Mobile, &p.Image.Tablet, &p.Image.Desktop,
	)
	return p, err
}
