package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbliss/medbliss/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type pgRepo struct{ pool *pgxpool.Pool }

func NewPGRepo(pool *pgxpool.Pool) Repository { return &pgRepo{pool: pool} }

// conn joins the confirm transaction when there is one.
func (r *pgRepo) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const bookingCols = `id, reference, session_id, patient_name, email, phone, address,
	selected_tests, selected_packages, patient_assignments,
	appointment_date::text, appointment_time, total_amount, savings, discount, promo_code,
	status, payment_status, home_collection, special_instructions, created_at, updated_at`

func (r *pgRepo) scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var address, tests, packages, assignments []byte
	err := row.Scan(&rec.ID, &rec.Reference, &rec.SessionID, &rec.PatientName, &rec.Email, &rec.Phone, &address,
		&tests, &packages, &assignments,
		&rec.AppointmentDate, &rec.AppointmentTime, &rec.TotalAmount, &rec.Savings, &rec.Discount, &rec.PromoCode,
		&rec.Status, &rec.PaymentStatus, &rec.HomeCollection, &rec.SpecialInstructions, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		raw []byte
		dst interface{}
	}{
		{address, &rec.Address},
		{tests, &rec.SelectedTests},
		{packages, &rec.SelectedPackages},
		{assignments, &rec.PatientAssignments},
	} {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode booking %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func (r *pgRepo) Create(ctx context.Context, rec *Record) error {
	address, err := json.Marshal(rec.Address)
	if err != nil {
		return err
	}
	tests, _ := json.Marshal(rec.SelectedTests)
	packages, _ := json.Marshal(rec.SelectedPackages)
	assignments, err := json.Marshal(rec.PatientAssignments)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO bookings (id, reference, session_id, patient_name, email, phone, address,
			selected_tests, selected_packages, patient_assignments,
			appointment_date, appointment_time, total_amount, savings, discount, promo_code,
			status, payment_status, home_collection, special_instructions, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		rec.ID, rec.Reference, rec.SessionID, rec.PatientName, rec.Email, rec.Phone, string(address),
		string(tests), string(packages), string(assignments),
		rec.AppointmentDate, rec.AppointmentTime, rec.TotalAmount, rec.Savings, rec.Discount, rec.PromoCode,
		string(rec.Status), string(rec.PaymentStatus), rec.HomeCollection, rec.SpecialInstructions, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (r *pgRepo) Get(ctx context.Context, sessionID string, id uuid.UUID) (*Record, error) {
	rec, err := r.scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+bookingCols+` FROM bookings WHERE id = $1 AND session_id = $2`, id, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return rec, err
}

func (r *pgRepo) List(ctx context.Context, f Filter) ([]*Record, int, error) {
	where := ` WHERE session_id = $1`
	args := []interface{}{f.SessionID}
	if f.Status != "" {
		where += ` AND status = $2`
		args = append(args, string(f.Status))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM bookings`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + bookingCols + ` FROM bookings` + where + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, f.Limit, f.Offset)
	}
	items, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *pgRepo) CountByStatus(ctx context.Context, sessionID string) (map[Status]int, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT status, COUNT(*) FROM bookings WHERE session_id = $1 GROUP BY status`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[Status]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[Status(status)] = n
	}
	return out, rows.Err()
}

func (r *pgRepo) ListByAppointmentDate(ctx context.Context, date string) ([]*Record, error) {
	return r.query(ctx, `SELECT `+bookingCols+` FROM bookings WHERE appointment_date = $1 ORDER BY appointment_time`, date)
}

func (r *pgRepo) query(ctx context.Context, sql string, args ...interface{}) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}
