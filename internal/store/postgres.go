package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/edanos/mealscan/internal/meal"
	"github.com/edanos/mealscan/internal/nutrition"
	"github.com/edanos/mealscan/internal/progress"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hottest store operations.
var preparedStatements = map[string]string{
	"get_meal":    `SELECT id, name, logged_at, image_url, classification, confidence, notes, evaluation, processed, ingredients FROM meals WHERE id = $1`,
	"update_meal": `UPDATE meals SET ingredients = $1, totals = $2, updated_at = $3 WHERE id = $4`,
	"get_cycle":   `SELECT doc FROM progress WHERE user_id = $1`,
	"save_cycle":  `INSERT INTO progress (user_id, doc, updated_at) VALUES ($1, $2, $3) ON CONFLICT (user_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS meals (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	logged_at      TIMESTAMPTZ NOT NULL,
	image_url      TEXT NOT NULL DEFAULT '',
	classification TEXT NOT NULL DEFAULT 'food',
	confidence     DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	notes          TEXT NOT NULL DEFAULT '',
	evaluation     TEXT NOT NULL DEFAULT '',
	processed      BOOLEAN NOT NULL DEFAULT FALSE,
	ingredients    JSONB NOT NULL,
	totals         JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS progress (
	user_id    TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS evaluations (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	cycle_start TEXT NOT NULL,
	body        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_meals_logged_at ON meals(logged_at);
CREATE INDEX IF NOT EXISTS idx_evaluations_user ON evaluations(user_id, created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveMeal(ctx context.Context, m *meal.Meal) error {
	ingredientsJSON, totalsJSON, err := encodeMeal(m)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO meals (id, name, logged_at, image_url, classification, confidence, notes, evaluation, processed, ingredients, totals, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			logged_at = EXCLUDED.logged_at,
			image_url = EXCLUDED.image_url,
			classification = EXCLUDED.classification,
			confidence = EXCLUDED.confidence,
			notes = EXCLUDED.notes,
			processed = EXCLUDED.processed,
			evaluation = EXCLUDED.evaluation,
			ingredients = EXCLUDED.ingredients,
			totals = EXCLUDED.totals,
			updated_at = EXCLUDED.updated_at`,
		m.ID, m.Name, m.LoggedAt.UTC(), m.ImageURL, string(m.Classification), m.Confidence,
		m.Notes, m.Evaluation, m.Processed, ingredientsJSON, totalsJSON, now, now,
	)
	return eris.Wrapf(err, "postgres: save meal %s", m.ID)
}

func (s *PostgresStore) GetMeal(ctx context.Context, mealID string) (*meal.Meal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, logged_at, image_url, classification, confidence, notes, evaluation, processed, ingredients FROM meals WHERE id = $1`,
		mealID,
	)
	m, err := scanMealPG(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get meal %s", mealID)
	}
	return m, nil
}

func (s *PostgresStore) ListMeals(ctx context.Context, filter MealFilter) ([]*meal.Meal, error) {
	query := `SELECT id, name, logged_at, image_url, classification, confidence, notes, evaluation, processed, ingredients FROM meals WHERE true`
	var args []any

	if !filter.From.IsZero() {
		args = append(args, filter.From.UTC())
		query += ` AND logged_at >= $` + strconv.Itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.UTC())
		query += ` AND logged_at < $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY logged_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list meals")
	}
	defer rows.Close()

	var meals []*meal.Meal
	for rows.Next() {
		m, err := scanMealPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan meal")
		}
		meals = append(meals, m)
	}
	return meals, eris.Wrap(rows.Err(), "postgres: list meals iterate")
}

func (s *PostgresStore) DeleteMeal(ctx context.Context, mealID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM meals WHERE id = $1`, mealID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete meal %s", mealID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("meal not found: %s", mealID)
	}
	return nil
}

func (s *PostgresStore) UpdateMealIngredients(ctx context.Context, m *meal.Meal) error {
	ingredientsJSON, totalsJSON, err := encodeMeal(m)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE meals SET ingredients = $1, totals = $2, updated_at = $3 WHERE id = $4`,
		ingredientsJSON, totalsJSON, time.Now().UTC(), m.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update meal ingredients %s", m.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("meal not found: %s", m.ID)
	}
	return nil
}

func (s *PostgresStore) GetCycle(ctx context.Context, userID string) (*progress.Cycle, error) {
	row := s.pool.QueryRow(ctx, `SELECT doc FROM progress WHERE user_id = $1`, userID)

	var doc []byte
	err := row.Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return &progress.Cycle{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cycle")
	}

	var c progress.Cycle
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cycle")
	}
	return &c, nil
}

func (s *PostgresStore) SaveCycle(ctx context.Context, userID string, c *progress.Cycle) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal cycle")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO progress (user_id, doc, updated_at) VALUES ($1, $2, $3) ON CONFLICT (user_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		userID, doc, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: save cycle")
}

func (s *PostgresStore) AppendEvaluation(ctx context.Context, userID string, ev *progress.Evaluation) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO evaluations (id, user_id, cycle_start, body, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), userID, ev.CycleStart, ev.Text, ev.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: append evaluation")
}

func scanMealPG(row pgx.Row) (*meal.Meal, error) {
	var m meal.Meal
	var classification string
	var ingredientsJSON []byte

	err := row.Scan(&m.ID, &m.Name, &m.LoggedAt, &m.ImageURL, &classification,
		&m.Confidence, &m.Notes, &m.Evaluation, &m.Processed, &ingredientsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("meal not found")
	}
	if err != nil {
		return nil, err
	}

	m.Classification = nutrition.Classification(classification)
	if err := json.Unmarshal(ingredientsJSON, &m.Ingredients); err != nil {
		return nil, eris.Wrap(err, "unmarshal ingredients")
	}
	return &m, nil
}

