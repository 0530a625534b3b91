package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mejiacortes/bakery-orders/internal/stock/domain"
)

type IngredientRepository struct {
	pool *pgxpool.Pool
}

func NewIngredientRepository(pool *pgxpool.Pool) *IngredientRepository {
	return &IngredientRepository{pool: pool}
}

func (r *IngredientRepository) Save(ctx context.Context, ing domain.Ingredient) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO ingredients
			(id, name, description, quantity, unit, price, supplier, minimum_stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			name=$2, description=$3, quantity=$4, unit=$5, price=$6, supplier=$7, minimum_stock=$8, updated_at=$10`,
		ing.ID, ing.Name, ing.Description, ing.Quantity.String(), ing.Unit,
		ing.Price.String(), ing.Supplier, ing.MinimumStock.String(), ing.CreatedAt, ing.UpdatedAt)
	return err
}

func (r *IngredientRepository) Get(ctx context.Context, id uuid.UUID) (domain.Ingredient, error) {
	return scanIngredient(r.pool.QueryRow(ctx, ingredientColumns+` WHERE id=$1`, id))
}

func (r *IngredientRepository) List(ctx context.Context) ([]domain.Ingredient, error) {
	return r.list(ctx, ingredientColumns+` ORDER BY name`)
}

func (r *IngredientRepository) ListLowStock(ctx context.Context) ([]domain.Ingredient, error) {
	return r.list(ctx, ingredientColumns+` WHERE quantity <= minimum_stock ORDER BY name`)
}

func (r *IngredientRepository) list(ctx context.Context, query string) ([]domain.Ingredient, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Ingredient
	for rows.Next() {
		ing, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

const ingredientColumns = `SELECT id, name, description, quantity::text, unit, price::text, supplier, minimum_stock::text, created_at, updated_at FROM ingredients`

func scanIngredient(row pgx.Row) (domain.Ingredient, error) {
	var (
		ing                  domain.Ingredient
		quantity, price, min string
	)
	err := row.Scan(&ing.ID, &ing.Name, &ing.Description, &quantity, &ing.Unit, &price,
		&ing.Supplier, &min, &ing.CreatedAt, &ing.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ingredient{}, domain.ErrIngredientNotFound
	}
	if err != nil {
		return domain.Ingredient{}, err
	}
	if ing.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return domain.Ingredient{}, err
	}
	if ing.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Ingredient{}, err
	}
	if ing.MinimumStock, err = decimal.NewFromString(min); err != nil {
		return domain.Ingredient{}, err
	}
	return ing, nil
}

type RecipeRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRecipeRepository(log *slog.Logger, pool *pgxpool.Pool) *RecipeRepository {
	return &RecipeRepository{log: log, pool: pool}
}

func (r *RecipeRepository) Save(ctx context.Context, rec domain.Recipe) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO recipes (id, product_id, name, description, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET product_id=$2, name=$3, description=$4, updated_at=$6`,
		rec.ID, rec.ProductID, rec.Name, rec.Description, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `DELETE FROM recipe_ingredients WHERE recipe_id=$1`, rec.ID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, ri := range rec.Ingredients {
		batch.Queue(`INSERT INTO recipe_ingredients (recipe_id, ingredient_id, quantity, unit) VALUES ($1,$2,$3,$4)`,
			rec.ID, ri.IngredientID, ri.Quantity.String(), ri.Unit)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *RecipeRepository) Get(ctx context.Context, id uuid.UUID) (domain.Recipe, error) {
	return r.one(ctx, `WHERE id=$1`, id)
}

func (r *RecipeRepository) FindByProductID(ctx context.Context, productID uuid.UUID) (domain.Recipe, error) {
	return r.one(ctx, `WHERE product_id=$1`, productID)
}

func (r *RecipeRepository) one(ctx context.Context, where string, arg any) (domain.Recipe, error) {
	var rec domain.Recipe
	err := r.pool.QueryRow(ctx, `SELECT id, product_id, name, description, created_at, updated_at FROM recipes `+where, arg).
		Scan(&rec.ID, &rec.ProductID, &rec.Name, &rec.Description, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Recipe{}, domain.ErrRecipeNotFound
	}
	if err != nil {
		return domain.Recipe{}, err
	}
	if rec.Ingredients, err = r.ingredientsOf(ctx, rec.ID); err != nil {
		return domain.Recipe{}, err
	}
	return rec, nil
}

func (r *RecipeRepository) List(ctx context.Context) ([]domain.Recipe, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, name, description, created_at, updated_at FROM recipes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Recipe
	for rows.Next() {
		var rec domain.Recipe
		if err := rows.Scan(&rec.ID, &rec.ProductID, &rec.Name, &rec.Description, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Ingredients, err = r.ingredientsOf(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *RecipeRepository) ingredientsOf(ctx context.Context, recipeID uuid.UUID) ([]domain.RecipeIngredient, error) {
	rows, err := r.pool.Query(ctx, `SELECT ingredient_id, quantity::text, unit FROM recipe_ingredients WHERE recipe_id=$1`, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RecipeIngredient
	for rows.Next() {
		var (
			ri       domain.RecipeIngredient
			quantity string
		)
		if err := rows.Scan(&ri.IngredientID, &quantity, &ri.Unit); err != nil {
			return nil, err
		}
		if ri.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, err
		}
		out = append(out, ri)
	}
	return out, rows.Err()
}
