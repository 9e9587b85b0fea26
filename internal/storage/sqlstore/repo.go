// Package sqlstore implements domain.Store on database/sql. The same SQL runs
// on MySQL in production and on SQLite for local runs and unit tests.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"mealsfly_review/internal/domain"
)

type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

type Repo struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, d Dialect) *Repo { return &Repo{db: db, dialect: d} }

var _ domain.Store = (*Repo)(nil)

func (r *Repo) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) (err error) {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
			return
		}
		err = sqlTx.Commit()
	}()
	return fn(&txRepo{q: sqlTx})
}

/********** restaurants **********/

func (r *Repo) CreateRestaurant(ctx context.Context, n domain.NewRestaurant, now time.Time) (domain.Restaurant, error) {
	id, err := insertRestaurant(ctx, r.db, n, now)
	if err != nil {
		return domain.Restaurant{}, err
	}
	return getRestaurant(ctx, r.db, id)
}

func insertRestaurant(ctx context.Context, q querier, n domain.NewRestaurant, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, insertRestaurantSQL,
		valStr(n.ExternalID),
		n.Name,
		n.Phone,
		n.Address,
		n.Location.Lat,
		n.Location.Lng,
		now.UTC(),
		now.UTC(),
	)
	if err != nil {
		if isDuplicate(err) {
			return 0, fmt.Errorf("%w: external id %q already imported", domain.ErrConflict, *n.ExternalID)
		}
		return 0, err
	}
	return res.LastInsertId()
}

// UpsertRestaurantByExternalID refreshes directory fields of an imported
// restaurant and leaves its review state alone.
func (r *Repo) UpsertRestaurantByExternalID(ctx context.Context, n domain.NewRestaurant, now time.Time) (out domain.Restaurant, created bool, err error) {
	if n.ExternalID == nil || *n.ExternalID == "" {
		return domain.Restaurant{}, false, fmt.Errorf("%w: external id is required for upsert", domain.ErrInvalid)
	}
	err = r.WithinTx(ctx, func(dtx domain.Tx) error {
		q := dtx.(*txRepo).q
		cur, gerr := scanRestaurant(q.QueryRowContext(ctx, getRestaurantByExternalSQL, *n.ExternalID))
		switch {
		case errors.Is(gerr, domain.ErrNotFound):
			id, ierr := insertRestaurant(ctx, q, n, now)
			if ierr != nil {
				return ierr
			}
			created = true
			out, gerr = getRestaurant(ctx, q, id)
			return gerr
		case gerr != nil:
			return gerr
		}
		if _, uerr := q.ExecContext(ctx, refreshRestaurantSQL,
			n.Name, n.Phone, n.Address, n.Location.Lat, n.Location.Lng, now.UTC(), cur.ID); uerr != nil {
			return uerr
		}
		out, gerr = getRestaurant(ctx, q, cur.ID)
		return gerr
	})
	return out, created, err
}

func (r *Repo) GetRestaurant(ctx context.Context, id int64) (domain.Restaurant, error) {
	return getRestaurant(ctx, r.db, id)
}

func getRestaurant(ctx context.Context, q querier, id int64) (domain.Restaurant, error) {
	out, err := scanRestaurant(q.QueryRowContext(ctx, getRestaurantSQL, id))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Restaurant{}, fmt.Errorf("%w: restaurant %d", domain.ErrNotFound, id)
	}
	return out, err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanRestaurant(row rowScanner) (domain.Restaurant, error) {
	var (
		out                  domain.Restaurant
		ext                  sql.NullString
		status               string
		reviewedBy           sql.NullInt64
		fssai, menu, banner  sql.NullString
		createdAt, updatedAt sql.NullTime
	)
	if err := row.Scan(
		&out.ID,
		&ext,
		&out.Name,
		&out.Phone,
		&out.Address,
		&out.Location.Lat, &out.Location.Lng,
		&status,
		&reviewedBy,
		&fssai, &menu, &banner,
		&createdAt, &updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Restaurant{}, domain.ErrNotFound
		}
		return domain.Restaurant{}, err
	}
	if ext.Valid {
		s := ext.String
		out.ExternalID = &s
	}
	out.ReviewStatus = domain.ReviewStatus(status)
	if reviewedBy.Valid {
		v := reviewedBy.Int64
		out.ReviewedBy = &v
	}
	if fssai.Valid || menu.Valid || banner.Valid {
		out.Images = &domain.ReviewImages{FSSAI: fssai.String, Menu: menu.String, Banner: banner.String}
	}
	out.CreatedAt = createdAt.Time
	out.UpdatedAt = updatedAt.Time
	return out, nil
}

func (r *Repo) ListRestaurants(ctx context.Context, f domain.RestaurantFilter) ([]domain.Restaurant, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if f.Status != nil {
		rows, err = r.db.QueryContext(ctx, listRestaurantsByStatusSQL, string(*f.Status))
	} else {
		rows, err = r.db.QueryContext(ctx, listRestaurantsSQL)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Restaurant
	for rows.Next() {
		rs, err := scanRestaurant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

func (r *Repo) ListAdminActions(ctx context.Context, restaurantID int64) ([]domain.AdminAction, error) {
	rows, err := r.db.QueryContext(ctx, listAdminActionsSQL, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AdminAction
	for rows.Next() {
		var (
			a        domain.AdminAction
			from, to string
			at       sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.AdminID, &a.Action, &a.RestaurantID, &from, &to, &at); err != nil {
			return nil, err
		}
		a.FromStatus, a.ToStatus, a.At = domain.ReviewStatus(from), domain.ReviewStatus(to), at.Time
		out = append(out, a)
	}
	return out, rows.Err()
}

/********** tasks **********/

func (r *Repo) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	return getTask(ctx, r.db, id)
}

func getTask(ctx context.Context, q querier, id int64) (domain.Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, getTaskSQL, id))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Task{}, fmt.Errorf("%w: task %d", domain.ErrNotFound, id)
	}
	return t, err
}

func scanTask(row rowScanner, extra ...any) (domain.Task, error) {
	var (
		t          domain.Task
		status     string
		assignedAt sql.NullTime
		reviewDate sql.NullTime
	)
	dest := append([]any{&t.ID, &t.RestaurantID, &t.UserID, &status, &assignedAt, &reviewDate}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, domain.ErrNotFound
		}
		return domain.Task{}, err
	}
	t.Status = domain.TaskStatus(status)
	t.AssignedAt = assignedAt.Time
	if reviewDate.Valid {
		d := reviewDate.Time
		t.ReviewDate = &d
	}
	return t, nil
}

func (r *Repo) ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
	q := listTasksJoinSQL
	args := []any{f.UserID}
	if f.Status != nil {
		q += " AND t.status = ?"
		args = append(args, string(*f.Status))
	}
	rows, err := r.db.QueryContext(ctx, q+listTasksOrder, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		var (
			sum    domain.RestaurantSummary
			status string
		)
		t, err := scanTask(rows, &sum.Name, &sum.Phone, &sum.Address, &sum.Location.Lat, &sum.Location.Lng, &status)
		if err != nil {
			return nil, err
		}
		sum.ID = t.RestaurantID
		sum.ReviewStatus = domain.ReviewStatus(status)
		t.Restaurant = &sum
		out = append(out, t)
	}
	return out, rows.Err()
}

/********** users **********/

func (r *Repo) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	res, err := r.db.ExecContext(ctx, insertUserSQL,
		u.Name, u.Username, u.PasswordHash, string(u.Role), u.Approved, u.CreatedAt.UTC())
	if err != nil {
		if isDuplicate(err) {
			return domain.User{}, fmt.Errorf("%w: username %q is taken", domain.ErrConflict, u.Username)
		}
		return domain.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, err
	}
	return getUser(ctx, r.db, id)
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u         domain.User
		role      string
		createdAt sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Username, &u.PasswordHash, &role, &u.Approved, &createdAt, &u.TasksCompleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	u.CreatedAt = createdAt.Time
	return u, nil
}

func (r *Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return getUser(ctx, r.db, id)
}

func getUser(ctx context.Context, q querier, id int64) (domain.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, getUserSQL, id))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
	}
	return u, err
}

func (r *Repo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, getUserByUsernameSQL, username))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("%w: user %q", domain.ErrNotFound, username)
	}
	return u, err
}

func (r *Repo) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	q := listUsersSQL
	var args []any
	if role != "" {
		q += " WHERE u.role = ?"
		args = append(args, string(role))
	}
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY u.id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// MySQL reports zero affected rows for no-op updates, so existence is
// checked with a read instead of RowsAffected.
func (r *Repo) ApproveUser(ctx context.Context, id int64) (domain.User, error) {
	if _, err := getUser(ctx, r.db, id); err != nil {
		return domain.User{}, err
	}
	if _, err := r.db.ExecContext(ctx, approveUserSQL, id); err != nil {
		return domain.User{}, err
	}
	return getUser(ctx, r.db, id)
}

func (r *Repo) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	if _, err := getUser(ctx, r.db, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, updatePasswordSQL, hash, id)
	return err
}

/********** transactional primitives **********/

type txRepo struct{ q querier }

func (t *txRepo) GetRestaurant(ctx context.Context, id int64) (domain.Restaurant, error) {
	return getRestaurant(ctx, t.q, id)
}

func (t *txRepo) SwapRestaurantState(ctx context.Context, id int64, expected domain.ReviewStatus, next domain.RestaurantState) (bool, error) {
	var fssai, menu, banner any
	if next.Images != nil {
		fssai, menu, banner = next.Images.FSSAI, next.Images.Menu, next.Images.Banner
	}
	res, err := t.q.ExecContext(ctx, swapRestaurantSQL,
		string(next.Status),
		valInt64(next.ReviewedBy),
		fssai, menu, banner,
		next.UpdatedAt.UTC(),
		id,
		string(expected),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (t *txRepo) DeleteRestaurant(ctx context.Context, id int64) error {
	if _, err := t.q.ExecContext(ctx, deleteRestaurantTasksSQL, id); err != nil {
		return err
	}
	res, err := t.q.ExecContext(ctx, deleteRestaurantSQL, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: restaurant %d", domain.ErrNotFound, id)
	}
	return nil
}

func (t *txRepo) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	return getTask(ctx, t.q, id)
}

func (t *txRepo) InsertTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	res, err := t.q.ExecContext(ctx, insertTaskSQL,
		task.RestaurantID, task.UserID, string(task.Status), task.AssignedAt.UTC(), valTime(task.ReviewDate))
	if err != nil {
		if isDuplicate(err) {
			return domain.Task{}, fmt.Errorf("%w: restaurant %d already has a pending task", domain.ErrConflict, task.RestaurantID)
		}
		return domain.Task{}, err
	}
	if task.ID, err = res.LastInsertId(); err != nil {
		return domain.Task{}, err
	}
	task.Restaurant = nil
	return task, nil
}

func (t *txRepo) LatestTask(ctx context.Context, restaurantID int64, status domain.TaskStatus) (domain.Task, error) {
	task, err := scanTask(t.q.QueryRowContext(ctx, latestTaskSQL, restaurantID, string(status)))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Task{}, fmt.Errorf("%w: no %s task for restaurant %d", domain.ErrNotFound, status, restaurantID)
	}
	return task, err
}

func (t *txRepo) SwapTaskState(ctx context.Context, id, ownerID int64, expected domain.TaskStatus, next domain.TaskState) (bool, error) {
	res, err := t.q.ExecContext(ctx, swapTaskSQL,
		string(next.Status), valTime(next.ReviewDate), id, ownerID, string(expected))
	if err != nil {
		if isDuplicate(err) {
			return false, nil
		}
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (t *txRepo) ListUserTasks(ctx context.Context, userID int64, status domain.TaskStatus) ([]domain.Task, error) {
	rows, err := t.q.QueryContext(ctx, listUserTasksSQL, userID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (t *txRepo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return getUser(ctx, t.q, id)
}

func (t *txRepo) DeleteUser(ctx context.Context, id int64) error {
	if _, err := t.q.ExecContext(ctx, deleteUserTasksSQL, id); err != nil {
		return err
	}
	res, err := t.q.ExecContext(ctx, deleteUserSQL, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
	}
	return nil
}

func (t *txRepo) InsertAdminAction(ctx context.Context, a domain.AdminAction) error {
	_, err := t.q.ExecContext(ctx, insertAdminActionSQL,
		a.AdminID, a.Action, a.RestaurantID, string(a.FromStatus), string(a.ToStatus), a.At.UTC())
	return err
}
