package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/edanos/mealscan/internal/meal"
	"github.com/edanos/mealscan/internal/nutrition"
	"github.com/edanos/mealscan/internal/progress"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS meals (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	logged_at      DATETIME NOT NULL,
	image_url      TEXT NOT NULL DEFAULT '',
	classification TEXT NOT NULL DEFAULT 'food',
	confidence     REAL NOT NULL DEFAULT 1.0,
	notes          TEXT NOT NULL DEFAULT '',
	evaluation     TEXT NOT NULL DEFAULT '',
	processed      INTEGER NOT NULL DEFAULT 0,
	ingredients    TEXT NOT NULL,
	totals         TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS progress (
	user_id    TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS evaluations (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	cycle_start TEXT NOT NULL,
	body        TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_meals_logged_at ON meals(logged_at);
CREATE INDEX IF NOT EXISTS idx_evaluations_user ON evaluations(user_id, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveMeal(ctx context.Context, m *meal.Meal) error {
	ingredientsJSON, totalsJSON, err := encodeMeal(m)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO meals (id, name, logged_at, image_url, classification, confidence, notes, evaluation, processed, ingredients, totals, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			logged_at = excluded.logged_at,
			image_url = excluded.image_url,
			classification = excluded.classification,
			confidence = excluded.confidence,
			notes = excluded.notes,
			processed = excluded.processed,
			evaluation = excluded.evaluation,
			ingredients = excluded.ingredients,
			totals = excluded.totals,
			updated_at = excluded.updated_at`,
		m.ID, m.Name, m.LoggedAt.UTC(), m.ImageURL, string(m.Classification), m.Confidence,
		m.Notes, m.Evaluation, boolToInt(m.Processed), ingredientsJSON, totalsJSON, now, now,
	)
	return eris.Wrapf(err, "sqlite: save meal %s", m.ID)
}

func (s *SQLiteStore) GetMeal(ctx context.Context, mealID string) (*meal.Meal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, logged_at, image_url, classification, confidence, notes, evaluation, processed, ingredients
		 FROM meals WHERE id = ?`,
		mealID,
	)
	return scanMeal(row)
}

func (s *SQLiteStore) ListMeals(ctx context.Context, filter MealFilter) ([]*meal.Meal, error) {
	query := `SELECT id, name, logged_at, image_url, classification, confidence, notes, evaluation, processed, ingredients
	          FROM meals WHERE 1=1`
	var args []any

	if !filter.From.IsZero() {
		query += ` AND logged_at >= ?`
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		query += ` AND logged_at < ?`
		args = append(args, filter.To.UTC())
	}
	query += ` ORDER BY logged_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list meals")
	}
	defer rows.Close()

	var meals []*meal.Meal
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, err
		}
		meals = append(meals, m)
	}
	return meals, eris.Wrap(rows.Err(), "sqlite: list meals iterate")
}

func (s *SQLiteStore) DeleteMeal(ctx context.Context, mealID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM meals WHERE id = ?`, mealID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete meal %s", mealID)
	}
	return checkRowsAffected(res, "meal", mealID)
}

func (s *SQLiteStore) UpdateMealIngredients(ctx context.Context, m *meal.Meal) error {
	ingredientsJSON, totalsJSON, err := encodeMeal(m)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE meals SET ingredients = ?, totals = ?, updated_at = ? WHERE id = ?`,
		ingredientsJSON, totalsJSON, time.Now().UTC(), m.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update meal ingredients %s", m.ID)
	}
	return checkRowsAffected(res, "meal", m.ID)
}

func (s *SQLiteStore) GetCycle(ctx context.Context, userID string) (*progress.Cycle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT doc FROM progress WHERE user_id = ?`, userID)

	var doc string
	err := row.Scan(&doc)
	if err == sql.ErrNoRows {
		return &progress.Cycle{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cycle")
	}

	var c progress.Cycle
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cycle")
	}
	return &c, nil
}

func (s *SQLiteStore) SaveCycle(ctx context.Context, userID string, c *progress.Cycle) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal cycle")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO progress (user_id, doc, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		userID, string(doc), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save cycle")
}

func (s *SQLiteStore) AppendEvaluation(ctx context.Context, userID string, ev *progress.Evaluation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (id, user_id, cycle_start, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), userID, ev.CycleStart, ev.Text, ev.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: append evaluation")
}

// helpers

func encodeMeal(m *meal.Meal) (ingredients string, totals string, err error) {
	ingredientsJSON, err := json.Marshal(m.Ingredients)
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal ingredients")
	}
	// Cached totals are advisory: written for query convenience only,
	// recomputed from ingredients on read.
	totalsJSON, err := json.Marshal(m.Totals())
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal totals")
	}
	return string(ingredientsJSON), string(totalsJSON), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanMeal(row scannable) (*meal.Meal, error) {
	var m meal.Meal
	var classification string
	var processed int
	var ingredientsJSON string

	err := row.Scan(&m.ID, &m.Name, &m.LoggedAt, &m.ImageURL, &classification,
		&m.Confidence, &m.Notes, &m.Evaluation, &processed, &ingredientsJSON)
	if err == sql.ErrNoRows {
		return nil, eris.New("meal not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan meal")
	}

	m.Classification = nutrition.Classification(classification)
	m.Processed = processed != 0
	if err := json.Unmarshal([]byte(ingredientsJSON), &m.Ingredients); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal ingredients")
	}
	return &m, nil
}
