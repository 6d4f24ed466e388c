package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, email, full_name, phone, password_hash, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		user.ID, user.Email, user.FullName, user.Phone, user.PasswordHash, user.IsAdmin,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", classify(err))
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", classify(err))
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", classify(err))
	}
	return &user, nil
}

// Upsert keys on email. COALESCE keeps existing profile fields when the
// incoming value is null, so a re-provisioned patient never loses data.
// The second return reports whether a new row was created.
func (r *userRepository) Upsert(ctx context.Context, user *model.User) (uuid.UUID, bool, error) {
	query := `
		INSERT INTO users (id, email, full_name, phone, password_hash, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET
			full_name = COALESCE(EXCLUDED.full_name, users.full_name),
			phone = COALESCE(EXCLUDED.phone, users.phone),
			updated_at = NOW()
		RETURNING id, (xmax = 0) AS inserted`

	var (
		id       uuid.UUID
		inserted bool
	)
	err := r.db.QueryRowxContext(ctx, query,
		user.ID, user.Email, user.FullName, user.Phone, user.PasswordHash, user.IsAdmin,
	).Scan(&id, &inserted)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to upsert user: %w", classify(err))
	}
	return id, inserted, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id uuid.UUID, fullName, phone *string) error {
	query := `
		UPDATE users
		SET full_name = COALESCE($1, full_name),
		    phone = COALESCE($2, phone),
		    updated_at = NOW()
		WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, fullName, phone, id)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", classify(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return classify(sql.ErrNoRows)
	}
	return nil
}

func (r *userRepository) ListPatients(ctx context.Context, search string) ([]model.PatientSummary, error) {
	query := `
		SELECT u.id, u.email, u.full_name, u.phone,
		       COUNT(a.id) AS appointment_count
		FROM users u
		LEFT JOIN appointments a ON a.user_id = u.id
		WHERE u.is_admin = FALSE
		  AND ($1 = '' OR u.email ILIKE '%' || $1 || '%' OR u.full_name ILIKE '%' || $1 || '%')
		GROUP BY u.id
		ORDER BY u.created_at DESC`

	patients := []model.PatientSummary{}
	if err := r.db.SelectContext(ctx, &patients, query, search); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", classify(err))
	}
	return patients, nil
}

func (r *userRepository) CountPatients(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE is_admin = FALSE`)
	if err != nil {
		return 0, fmt.Errorf("failed to count patients: %w", classify(err))
	}
	return count, nil
}
