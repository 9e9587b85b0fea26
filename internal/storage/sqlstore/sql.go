package sqlstore

// -----------------------------------------------------------------------------
// RESTAURANTS
// -----------------------------------------------------------------------------

const restaurantCols = `id, external_id, name, phone, address, lat, lng, review_status,
  reviewed_by, fssai_image, menu_image, banner_image, created_at, updated_at`

const insertRestaurantSQL = `
INSERT INTO restaurants
  (external_id, name, phone, address, lat, lng, review_status, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, 'not_started', ?, ?)
`

// Directory refresh never touches review columns.
const refreshRestaurantSQL = `
UPDATE restaurants
SET name = ?, phone = ?, address = ?, lat = ?, lng = ?, updated_at = ?
WHERE id = ?
`

const getRestaurantSQL = `SELECT ` + restaurantCols + ` FROM restaurants WHERE id = ?`

const getRestaurantByExternalSQL = `SELECT ` + restaurantCols + ` FROM restaurants WHERE external_id = ?`

const listRestaurantsSQL = `SELECT ` + restaurantCols + ` FROM restaurants ORDER BY id`

const listRestaurantsByStatusSQL = `SELECT ` + restaurantCols + ` FROM restaurants WHERE review_status = ? ORDER BY id`

// Guarded on the current status; zero rows affected means the guard lost.
const swapRestaurantSQL = `
UPDATE restaurants
SET review_status = ?, reviewed_by = ?, fssai_image = ?, menu_image = ?, banner_image = ?, updated_at = ?
WHERE id = ? AND review_status = ?
`

const deleteRestaurantSQL = `DELETE FROM restaurants WHERE id = ?`

const deleteRestaurantTasksSQL = `DELETE FROM tasks WHERE restaurant_id = ?`

// -----------------------------------------------------------------------------
// TASKS
// -----------------------------------------------------------------------------

const taskCols = `id, restaurant_id, user_id, status, assigned_at, review_date`

const insertTaskSQL = `
INSERT INTO tasks (restaurant_id, user_id, status, assigned_at, review_date)
VALUES (?, ?, ?, ?, ?)
`

const getTaskSQL = `SELECT ` + taskCols + ` FROM tasks WHERE id = ?`

const latestTaskSQL = `
SELECT ` + taskCols + `
FROM tasks
WHERE restaurant_id = ? AND status = ?
ORDER BY id DESC
LIMIT 1
`

const swapTaskSQL = `
UPDATE tasks
SET status = ?, review_date = ?
WHERE id = ? AND user_id = ? AND status = ?
`

const listUserTasksSQL = `
SELECT ` + taskCols + `
FROM tasks
WHERE user_id = ? AND status = ?
ORDER BY assigned_at DESC, id DESC
`

// Task listings carry a snapshot of their restaurant.
const listTasksJoinSQL = `
SELECT t.id, t.restaurant_id, t.user_id, t.status, t.assigned_at, t.review_date,
       r.name, r.phone, r.address, r.lat, r.lng, r.review_status
FROM tasks t
JOIN restaurants r ON r.id = t.restaurant_id
WHERE t.user_id = ?`

const listTasksOrder = `
ORDER BY t.assigned_at DESC, t.id DESC`

const deleteUserTasksSQL = `DELETE FROM tasks WHERE user_id = ?`

// -----------------------------------------------------------------------------
// USERS
// -----------------------------------------------------------------------------

const userCols = `id, name, username, password_hash, role, approved, created_at`

const insertUserSQL = `
INSERT INTO users (name, username, password_hash, role, approved, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

const getUserSQL = `SELECT ` + userCols + `, 0 FROM users WHERE id = ?`

const getUserByUsernameSQL = `SELECT ` + userCols + `, 0 FROM users WHERE LOWER(username) = LOWER(?)`

const listUsersSQL = `
SELECT u.id, u.name, u.username, u.password_hash, u.role, u.approved, u.created_at,
       (SELECT COUNT(*) FROM tasks t WHERE t.user_id = u.id AND t.status = 'completed')
FROM users u`

const approveUserSQL = `UPDATE users SET approved = TRUE WHERE id = ?`

const updatePasswordSQL = `UPDATE users SET password_hash = ? WHERE id = ?`

const deleteUserSQL = `DELETE FROM users WHERE id = ?`

// -----------------------------------------------------------------------------
// AUDIT
// -----------------------------------------------------------------------------

const insertAdminActionSQL = `
INSERT INTO admin_actions (admin_id, action, restaurant_id, from_status, to_status, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

const listAdminActionsSQL = `
SELECT id, admin_id, action, restaurant_id, from_status, to_status, created_at
FROM admin_actions
WHERE restaurant_id = ?
ORDER BY id
`
