// Package repository содержит хранилища бронирований и финансовых документов.
package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/artist-booking/internal/booking"
	"github.com/mmeshcher/artist-booking/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var bookingColumns = []string{
	"id", "organizer_id", "artist_id", "status", "version",
	"event_date", "duration_hours", "minimum_hours", "hourly_rate",
	"quoted_price", "final_price", "deposit_amount", "deposit_percentage", "currency",
	"created_at", "quoted_at", "confirmed_at", "paid_at", "completed_at", "cancelled_at",
	"cancellation_reason",
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

var retryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// withRetry повторяет fn при конфликте сериализации, взаимной блокировке и обрыве соединения.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i <= len(retryDelays); i++ {
		err = fn()
		if err == nil || !retryable(err) || i == len(retryDelays) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelays[i]):
		}
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateBooking сохраняет новое бронирование.
func (r *PostgresRepository) CreateBooking(ctx context.Context, b *model.Booking) error {
	query, args, err := psql.Insert("bookings").
		Columns(bookingColumns...).
		Values(bookingValues(b)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert booking query: %w", err)
	}

	err = withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx, query, args...)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrBookingExists, b.ID)
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// GetBooking возвращает бронирование по идентификатору.
func (r *PostgresRepository) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	query, args, err := psql.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query: %w", err)
	}

	b, err := scanBooking(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", booking.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// CompareAndSwapBooking записывает next, только если статус и версия в БД совпадают с ожидаемыми.
func (r *PostgresRepository) CompareAndSwapBooking(ctx context.Context, expected model.BookingStatus, expectedVersion int64, next *model.Booking) (bool, error) {
	values := bookingValues(next)
	upd := psql.Update("bookings")
	// id не меняется.
	for i, col := range bookingColumns[1:] {
		upd = upd.Set(col, values[i+1])
	}
	query, args, err := upd.
		Where(squirrel.Eq{"id": next.ID, "status": string(expected), "version": expectedVersion}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build update booking query: %w", err)
	}

	var affected int64
	err = withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("update booking: %w", err)
	}
	return affected == 1, nil
}

// ListBookings возвращает страницу бронирований по фильтру и общее число подходящих записей.
func (r *PostgresRepository) ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, int, error) {
	offset := normalizePage(&f)

	cols := append(append([]string{}, bookingColumns...), "count(*) OVER() AS total_count")
	q := psql.Select(cols...).From("bookings")

	if f.Status != "" {
		q = q.Where(squirrel.Eq{"status": string(f.Status)})
	}
	if f.OrganizerID != "" {
		q = q.Where(squirrel.Eq{"organizer_id": f.OrganizerID})
	}
	if f.ArtistID != "" {
		q = q.Where(squirrel.Eq{"artist_id": f.ArtistID})
	}
	if f.EventFrom != nil {
		q = q.Where(squirrel.GtOrEq{"event_date": *f.EventFrom})
	}
	if f.EventTo != nil {
		q = q.Where(squirrel.LtOrEq{"event_date": *f.EventTo})
	}

	query, args, err := q.OrderBy("event_date", "id").
		Limit(uint64(f.PageSize)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select bookings: %w", err)
	}
	defer rows.Close()

	var (
		res   []model.Booking
		total int
	)
	for rows.Next() {
		b, err := scanBooking(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking: %w", err)
		}
		res = append(res, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return res, total, nil
}

// NextDocumentSequence выдаёт следующий порядковый номер документа данного вида.
func (r *PostgresRepository) NextDocumentSequence(ctx context.Context, kind model.DocumentKind) (int64, error) {
	var seq int64
	err := withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO document_sequences (kind, last_seq) VALUES ($1, 1)
			 ON CONFLICT (kind) DO UPDATE SET last_seq = document_sequences.last_seq + 1
			 RETURNING last_seq`,
			string(kind),
		).Scan(&seq)
	})
	if err != nil {
		return 0, fmt.Errorf("next document sequence: %w", err)
	}
	return seq, nil
}

// SaveDocument сохраняет выпущенный документ. Существующие документы не перезаписываются.
func (r *PostgresRepository) SaveDocument(ctx context.Context, doc *model.FinancialDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	var amends *string
	if doc.AmendsNumber != "" {
		amends = &doc.AmendsNumber
	}

	query, args, err := psql.Insert("financial_documents").
		Columns("number", "kind", "booking_id", "amends_number", "issued_at", "body").
		Values(doc.Number, string(doc.Kind), doc.BookingID, amends, doc.IssuedAt, body).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert document query: %w", err)
	}

	err = withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx, query, args...)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDocumentExists, doc.Number)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetDocument возвращает документ по номеру.
func (r *PostgresRepository) GetDocument(ctx context.Context, number string) (*model.FinancialDocument, error) {
	var body []byte
	err := r.pool.QueryRow(ctx,
		`SELECT body FROM financial_documents WHERE number = $1`,
		number,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, number)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	var doc model.FinancialDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document %s: %w", number, err)
	}
	return &doc, nil
}

// DocumentsByBooking возвращает документы бронирования в порядке выпуска.
func (r *PostgresRepository) DocumentsByBooking(ctx context.Context, bookingID string) ([]model.FinancialDocument, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT body FROM financial_documents WHERE booking_id = $1 ORDER BY issued_at, number`,
		bookingID,
	)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer rows.Close()

	var res []model.FinancialDocument
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var doc model.FinancialDocument
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal document: %w", err)
		}
		res = append(res, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func bookingValues(b *model.Booking) []any {
	return []any{
		b.ID, b.OrganizerID, b.ArtistID, string(b.Status), b.Version,
		b.EventDate, b.DurationHours.String(), b.MinimumHours, numericArg(b.HourlyRate),
		numericArg(b.QuotedPrice), numericArg(b.FinalPrice), numericArg(b.DepositAmount), numericArg(b.DepositPercentage), b.Currency,
		b.CreatedAt, b.QuotedAt, b.ConfirmedAt, b.PaidAt, b.CompletedAt, b.CancelledAt,
		b.CancellationReason,
	}
}

func numericArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func scanBooking(row pgx.Row, extra ...any) (*model.Booking, error) {
	var (
		b                                         model.Booking
		status                                    string
		duration, rate, quoted, final, dep, depPc pgtype.Numeric
	)

	dest := []any{
		&b.ID, &b.OrganizerID, &b.ArtistID, &status, &b.Version,
		&b.EventDate, &duration, &b.MinimumHours, &rate,
		&quoted, &final, &dep, &depPc, &b.Currency,
		&b.CreatedAt, &b.QuotedAt, &b.ConfirmedAt, &b.PaidAt, &b.CompletedAt, &b.CancelledAt,
		&b.CancellationReason,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	b.Status = model.BookingStatus(status)
	if d := fromNumeric(duration); d != nil {
		b.DurationHours = *d
	}
	b.HourlyRate = fromNumeric(rate)
	b.QuotedPrice = fromNumeric(quoted)
	b.FinalPrice = fromNumeric(final)
	b.DepositAmount = fromNumeric(dep)
	b.DepositPercentage = fromNumeric(depPc)
	return &b, nil
}

func fromNumeric(n pgtype.Numeric) *decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return nil
	}
	d := decimal.NewFromBigInt(n.Int, n.Exp)
	return &d
}
