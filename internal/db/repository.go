package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gatego-backend/internal/logging"
	"gatego-backend/internal/model"
)

var (
	ErrNotFound = errors.New("запись не найдена")
	ErrConflict = errors.New("запись уже существует")
)

// uniqueViolation - SQLSTATE нарушения уникальности
const uniqueViolation = "23505"

// Config - параметры подключения
type Config struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Name     string `yaml:"name"`
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", c.User, c.Password, c.Host, c.Port, c.Name)
}

type Repository struct {
	pool *pgxpool.Pool
}

// Connect - пул соединений к PostgreSQL
func Connect(ctx context.Context, cfg Config) (*Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к БД: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("БД недоступна: %w", err)
	}

	logging.Info("подключение к PostgreSQL успешно", zap.String("host", cfg.Host), zap.String("db", cfg.Name))
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() { r.pool.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS hs_codes (
	code        TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	duty_rate   NUMERIC(7,4) NOT NULL
);

CREATE TABLE IF NOT EXISTS calculations (
	id          BIGSERIAL PRIMARY KEY,
	channel     TEXT NOT NULL,
	hs_code     TEXT NOT NULL DEFAULT '',
	request     JSONB NOT NULL,
	result      JSONB NOT NULL,
	total_tax   NUMERIC NOT NULL,
	landed_cost NUMERIC NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS pib_declarations (
	id            UUID PRIMARY KEY,
	sjc_number    TEXT NOT NULL UNIQUE,
	submission    JSONB NOT NULL,
	stages        JSONB NOT NULL,
	current_stage TEXT NOT NULL,
	status        TEXT NOT NULL,
	notifications JSONB NOT NULL DEFAULT '[]',
	total_tax     NUMERIC NOT NULL DEFAULT 0,
	landed_cost   NUMERIC NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS pib_declarations_status_idx ON pib_declarations (status);
`

// Migrate - создание таблиц и начальный справочник HS Code
func (r *Repository) Migrate(ctx context.Context, seed []model.Classification) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("миграция схемы: %w", err)
	}
	for _, c := range seed {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO hs_codes (code, description, category, duty_rate)
			VALUES ($1, $2, $3, $4::text::numeric)
			ON CONFLICT (code) DO NOTHING
		`, c.Code, c.Description, c.Category, c.DutyRate.String())
		if err != nil {
			return fmt.Errorf("справочник HS Code %s: %w", c.Code, err)
		}
	}
	return nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("некорректное число %q: %w", s, err)
	}
	return d, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// conflict - нарушение уникального ключа в ErrConflict
func conflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

// HS Code

func scanClassification(row pgx.Row) (model.Classification, error) {
	var c model.Classification
	var rate string
	if err := row.Scan(&c.Code, &c.Description, &c.Category, &rate); err != nil {
		return model.Classification{}, err
	}
	d, err := parseDecimal(rate)
	if err != nil {
		return model.Classification{}, err
	}
	c.DutyRate = d
	return c, nil
}

// ListClassifications - справочник HS Code; q ищет по коду и описанию
func (r *Repository) ListClassifications(ctx context.Context, q string) ([]model.Classification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT code, description, category, duty_rate::text
		FROM hs_codes
		WHERE $1 = '' OR code LIKE $1 || '%' OR description ILIKE '%' || $1 || '%'
		ORDER BY code
	`, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Classification
	for rows.Next() {
		c, err := scanClassification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// GetClassification - одна позиция по коду
func (r *Repository) GetClassification(ctx context.Context, code string) (model.Classification, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT code, description, category, duty_rate::text
		FROM hs_codes
		WHERE code = $1
	`, code)
	c, err := scanClassification(row)
	if err != nil {
		return model.Classification{}, fmt.Errorf("hs code %s: %w", code, notFound(err))
	}
	return c, nil
}

// CreateClassification - добавление позиции
func (r *Repository) CreateClassification(ctx context.Context, c model.Classification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO hs_codes (code, description, category, duty_rate)
		VALUES ($1, $2, $3, $4::text::numeric)
	`, c.Code, c.Description, c.Category, c.DutyRate.String())
	return conflict(err)
}

// UpdateClassification - изменение позиции
func (r *Repository) UpdateClassification(ctx context.Context, code string, c model.Classification) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE hs_codes
		SET description = $1,
		    category = $2,
		    duty_rate = $3::text::numeric
		WHERE code = $4
	`, c.Description, c.Category, c.DutyRate.String(), code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteClassification - удаление позиции
func (r *Repository) DeleteClassification(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM hs_codes WHERE code = $1`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Журнал расчетов

// SaveCalculation - сохранение выполненного расчета
func (r *Repository) SaveCalculation(ctx context.Context, channel string, req model.CalcRequest, resp model.CalcResponse) error {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return err
	}
	resJSON, err := json.Marshal(resp.Result)
	if err != nil {
		return err
	}

	hsCode := req.HSCode
	if resp.Classification != nil {
		hsCode = resp.Classification.Code
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO calculations (channel, hs_code, request, result, total_tax, landed_cost)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6::text::numeric)
	`, channel, hsCode, reqJSON, resJSON, resp.Result.TotalTax.String(), resp.Result.LandedCost.String())
	return err
}

// ListCalculations - последние расчеты
func (r *Repository) ListCalculations(ctx context.Context, limit int) ([]model.CalculationRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, channel, hs_code, total_tax::text, landed_cost::text, created_at
		FROM calculations
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.CalculationRecord
	for rows.Next() {
		var rec model.CalculationRecord
		var tax, landed string
		if err := rows.Scan(&rec.ID, &rec.Channel, &rec.HSCode, &tax, &landed, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if rec.TotalTax, err = parseDecimal(tax); err != nil {
			return nil, err
		}
		if rec.LandedCost, err = parseDecimal(landed); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PIB

const declarationColumns = `
	id::text, submission, stages, current_stage, status, notifications,
	total_tax::text, landed_cost::text, created_at, updated_at
`

func scanDeclaration(row pgx.Row) (model.Declaration, error) {
	var d model.Declaration
	var submission, stages, notes []byte
	var tax, landed string
	err := row.Scan(&d.ID, &submission, &stages, &d.CurrentStage, &d.Status, &notes,
		&tax, &landed, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return model.Declaration{}, err
	}
	if err := json.Unmarshal(submission, &d.Submission); err != nil {
		return model.Declaration{}, fmt.Errorf("submission: %w", err)
	}
	if err := json.Unmarshal(stages, &d.Stages); err != nil {
		return model.Declaration{}, fmt.Errorf("stages: %w", err)
	}
	if err := json.Unmarshal(notes, &d.Notifications); err != nil {
		return model.Declaration{}, fmt.Errorf("notifications: %w", err)
	}
	if d.TotalTax, err = parseDecimal(tax); err != nil {
		return model.Declaration{}, err
	}
	if d.LandedCost, err = parseDecimal(landed); err != nil {
		return model.Declaration{}, err
	}
	return d, nil
}

type declarationJSON struct {
	submission, stages, notes []byte
}

func marshalDeclaration(d model.Declaration) (declarationJSON, error) {
	var out declarationJSON
	var err error
	if out.submission, err = json.Marshal(d.Submission); err != nil {
		return out, err
	}
	if out.stages, err = json.Marshal(d.Stages); err != nil {
		return out, err
	}
	notes := d.Notifications
	if notes == nil {
		notes = []string{}
	}
	out.notes, err = json.Marshal(notes)
	return out, err
}

// CreateDeclaration - сохранение поданной PIB
func (r *Repository) CreateDeclaration(ctx context.Context, d model.Declaration) error {
	j, err := marshalDeclaration(d)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO pib_declarations
		(id, sjc_number, submission, stages, current_stage, status, notifications,
		 total_tax, landed_cost, created_at, updated_at)
		VALUES ($1::text::uuid, $2, $3, $4, $5, $6, $7, $8::text::numeric, $9::text::numeric, $10, $11)
	`,
		d.ID,
		d.Submission.SJCNumber,
		j.submission,
		j.stages,
		string(d.CurrentStage),
		string(d.Status),
		j.notes,
		d.TotalTax.String(),
		d.LandedCost.String(),
		d.CreatedAt,
		d.UpdatedAt,
	)
	return conflict(err)
}

// GetDeclaration - PIB по идентификатору
func (r *Repository) GetDeclaration(ctx context.Context, id string) (model.Declaration, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+declarationColumns+` FROM pib_declarations WHERE id::text = $1`, id)
	d, err := scanDeclaration(row)
	if err != nil {
		return model.Declaration{}, fmt.Errorf("pib %s: %w", id, notFound(err))
	}
	return d, nil
}

// ListDeclarations - список PIB, при status != "" только с этим статусом
func (r *Repository) ListDeclarations(ctx context.Context, status model.Status) ([]model.Declaration, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+declarationColumns+`
		FROM pib_declarations
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC
	`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Declaration
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// UpdateDeclaration - сохранение нового состояния этапов.
// Обновление выполняется в транзакции с блокировкой строки: fn получает текущее состояние.
func (r *Repository) UpdateDeclaration(ctx context.Context, id string, fn func(model.Declaration) (model.Declaration, error)) (model.Declaration, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Declaration{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+declarationColumns+` FROM pib_declarations WHERE id::text = $1 FOR UPDATE`, id)
	current, err := scanDeclaration(row)
	if err != nil {
		return model.Declaration{}, fmt.Errorf("pib %s: %w", id, notFound(err))
	}

	next, err := fn(current)
	if err != nil {
		return model.Declaration{}, err
	}

	j, err := marshalDeclaration(next)
	if err != nil {
		return model.Declaration{}, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE pib_declarations
		SET stages = $1,
		    current_stage = $2,
		    status = $3,
		    notifications = $4,
		    updated_at = $5
		WHERE id::text = $6
	`, j.stages, string(next.CurrentStage), string(next.Status), j.notes, next.UpdatedAt, id)
	if err != nil {
		return model.Declaration{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Declaration{}, err
	}
	return next, nil
}
