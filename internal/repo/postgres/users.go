package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	usersEmailKey    = "users_email_key"
	usersUserNameKey = "users_user_name_key"

	userColumns = `id, first_name, last_name, user_name, email, password_hash, image, is_admin, is_banned, created_at, updated_at`
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

// mapWriteErr turns unique violations into the domain errors by constraint name.
func mapWriteErr(err error) error {
	if !IsUniqueViolation(err) {
		return err
	}

	var pgErr *pgconn.PgError
	errors.As(err, &pgErr)

	switch pgErr.ConstraintName {
	case usersEmailKey:
		return user.ErrEmailTaken
	case usersUserNameKey:
		return user.ErrUserNameTaken
	default:
		return err
	}
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.UserName,
		&u.Email,
		&u.PasswordHash,
		&u.Image,
		&u.IsAdmin,
		&u.IsBanned,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) getOne(ctx context.Context, op, query string, args ...any) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, query, args...))
		return err
	})

	return u, err
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email",
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UsersRepo) GetByUserName(ctx context.Context, userName string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_user_name",
		`SELECT `+userColumns+` FROM users WHERE user_name = $1`, userName)
}

func (r *UsersRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool

	err := r.observe("users.exists_by_email", func() error {
		return r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	})

	return exists, err
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (`+userColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			u.ID, u.FirstName, u.LastName, u.UserName, u.Email, u.PasswordHash,
			u.Image, u.IsAdmin, u.IsBanned, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return user.User{}, mapWriteErr(err)
	}

	return u, nil
}

// Update sets only the non-nil profile fields.
func (r *UsersRepo) Update(ctx context.Context, userName string, upd user.ProfileUpdate) (user.User, error) {
	return r.getOne(ctx, "users.update",
		`UPDATE users
			SET first_name = COALESCE($2, first_name),
					last_name = COALESCE($3, last_name),
					image = COALESCE($4, image),
					updated_at = NOW()
		WHERE user_name = $1
		RETURNING `+userColumns,
		userName, upd.FirstName, upd.LastName, upd.Image,
	)
}

func (r *UsersRepo) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error {
	return r.observe("users.update_password", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE email = $1`,
			email, passwordHash,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}
		return nil
	})
}

// ToggleBan flips is_banned in one statement so concurrent toggles never
// lose an update.
func (r *UsersRepo) ToggleBan(ctx context.Context, userName string) (user.User, error) {
	return r.getOne(ctx, "users.toggle_ban",
		`UPDATE users
			SET is_banned = NOT is_banned,
					updated_at = NOW()
		WHERE user_name = $1
		RETURNING `+userColumns,
		userName,
	)
}

func (r *UsersRepo) Delete(ctx context.Context, userName string) (user.User, error) {
	return r.getOne(ctx, "users.delete",
		`DELETE FROM users WHERE user_name = $1 RETURNING `+userColumns,
		userName,
	)
}

func (r *UsersRepo) List(ctx context.Context, f user.ListFilter) ([]user.User, int, error) {
	query := `SELECT ` + userColumns + `, COUNT(*) OVER() AS total FROM users`

	var conds []string
	var args []any
	argsPosition := 1

	// search skips admins and matches any name column or the email
	if f.Search != "" {
		conds = append(conds, "is_admin = FALSE")
		conds = append(conds, fmt.Sprintf(
			"(first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d OR user_name ILIKE $%[1]d OR email ILIKE $%[1]d)",
			argsPosition,
		))
		args = append(args, "%"+escapeLike(f.Search)+"%")
		argsPosition++
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, user_name ASC LIMIT $%d OFFSET $%d", argsPosition, argsPosition+1)
	args = append(args, f.Limit, f.Offset)

	output := make([]user.User, 0, f.Limit)
	total := 0

	err := r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var u user.User
			var t int

			err = rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.UserName, &u.Email, &u.PasswordHash,
				&u.Image, &u.IsAdmin, &u.IsBanned, &u.CreatedAt, &u.UpdatedAt, &t)
			if err != nil {
				return err
			}

			total = t
			output = append(output, u)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}

	// window count is absent when the page is past the end
	if len(output) == 0 && f.Offset > 0 {
		total, err = r.count(ctx, f)
		if err != nil {
			return nil, 0, err
		}
	}

	return output, total, nil
}

func (r *UsersRepo) count(ctx context.Context, f user.ListFilter) (int, error) {
	query := `SELECT COUNT(*) FROM users`
	var args []any

	if f.Search != "" {
		query += ` WHERE is_admin = FALSE AND (first_name ILIKE $1 OR last_name ILIKE $1 OR user_name ILIKE $1 OR email ILIKE $1)`
		args = append(args, "%"+escapeLike(f.Search)+"%")
	}

	var total int
	err := r.observe("users.count", func() error {
		return r.pool.QueryRow(ctx, query, args...).Scan(&total)
	})

	return total, err
}

// Ping is used by readiness probes.
func (r *UsersRepo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return r.pool.Ping(ctx)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
