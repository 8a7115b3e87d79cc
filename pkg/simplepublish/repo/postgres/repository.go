package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplepublish.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) simplepublish.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) simplepublish.Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "login") {
				return simplepublish.ErrDuplicateLogin
			}
			if strings.Contains(pgErr.ConstraintName, "email") {
				return simplepublish.ErrDuplicateEmail
			}
			if strings.Contains(pgErr.ConstraintName, "term") {
				return simplepublish.ErrDuplicateTerm
			}
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Post operations

const postColumns = `
	id, post_type, status, title, content, excerpt, slug, password,
	parent_id, menu_order, page_template, author_id, sticky,
	comment_policy, ping_policy, to_ping,
	post_date, post_date_gmt, modified, modified_gmt`

func scanPost(row pgx.Row) (*simplepublish.Post, error) {
	var post simplepublish.Post
	err := row.Scan(
		&post.ID, &post.Type, &post.Status, &post.Title, &post.Content,
		&post.Excerpt, &post.Slug, &post.Password, &post.ParentID,
		&post.MenuOrder, &post.PageTemplate, &post.AuthorID, &post.Sticky,
		&post.CommentPolicy, &post.PingPolicy, &post.ToPing,
		&post.Date, &post.DateGMT, &post.Modified, &post.ModifiedGMT)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *Repository) CreatePost(ctx context.Context, post *simplepublish.Post) (int64, error) {
	query := `
		INSERT INTO posts (
			post_type, status, title, content, excerpt, slug, password,
			parent_id, menu_order, page_template, author_id, sticky,
			comment_policy, ping_policy, to_ping,
			post_date, post_date_gmt, modified, modified_gmt
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id`

	var id int64
	err := r.db.QueryRow(ctx, query,
		post.Type, post.Status, post.Title, post.Content, post.Excerpt,
		post.Slug, post.Password, post.ParentID, post.MenuOrder,
		post.PageTemplate, post.AuthorID, post.Sticky,
		post.CommentPolicy, post.PingPolicy, post.ToPing,
		post.Date, post.DateGMT, post.Modified, post.ModifiedGMT).Scan(&id)
	if err != nil {
		return 0, r.handlePostgresError("create post", err)
	}
	return id, nil
}

func (r *Repository) UpdatePost(ctx context.Context, post *simplepublish.Post) (int64, error) {
	query := `
		UPDATE posts SET
			status = $2, title = $3, content = $4, excerpt = $5, slug = $6,
			password = $7, parent_id = $8, menu_order = $9, page_template = $10,
			author_id = $11, sticky = $12, comment_policy = $13,
			ping_policy = $14, to_ping = $15,
			post_date = $16, post_date_gmt = $17, modified = $18, modified_gmt = $19
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		post.ID, post.Status, post.Title, post.Content, post.Excerpt,
		post.Slug, post.Password, post.ParentID, post.MenuOrder,
		post.PageTemplate, post.AuthorID, post.Sticky,
		post.CommentPolicy, post.PingPolicy, post.ToPing,
		post.Date, post.DateGMT, post.Modified, post.ModifiedGMT)
	if err != nil {
		return 0, r.handlePostgresError("update post", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, simplepublish.ErrPostNotFound
	}
	return post.ID, nil
}

func (r *Repository) DeletePost(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return false, r.handlePostgresError("delete post", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) GetPost(ctx context.Context, id int64) (*simplepublish.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplepublish.ErrPostNotFound
		}
		return nil, r.handlePostgresError("get post", err)
	}
	return post, nil
}

func (r *Repository) ListPosts(ctx context.Context, filter simplepublish.PostFilter) ([]*simplepublish.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE 1=1`
	args := []interface{}{}
	arg := 0

	if filter.Type != "" {
		arg++
		query += fmt.Sprintf(" AND post_type = $%d", arg)
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		arg++
		query += fmt.Sprintf(" AND status = $%d", arg)
		args = append(args, filter.Status)
	}
	if filter.ParentID != nil {
		arg++
		query += fmt.Sprintf(" AND parent_id = $%d", arg)
		args = append(args, *filter.ParentID)
	}

	query += " ORDER BY " + postOrderClause(filter.OrderBy, filter.Order)

	if filter.Number > 0 {
		arg++
		query += fmt.Sprintf(" LIMIT $%d", arg)
		args = append(args, filter.Number)
	}
	if filter.Offset > 0 {
		arg++
		query += fmt.Sprintf(" OFFSET $%d", arg)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list posts", err)
	}
	defer rows.Close()

	var posts []*simplepublish.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan post", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// postOrderClause whitelists sort columns; everything else orders by date.
func postOrderClause(orderBy, order string) string {
	column := "post_date"
	switch orderBy {
	case "title":
		column = "title"
	case "modified":
		column = "modified"
	}
	direction := "DESC"
	if strings.EqualFold(order, "ASC") {
		direction = "ASC"
	}
	return column + " " + direction + ", id " + direction
}

// Custom field operations

func (r *Repository) GetCustomFields(ctx context.Context, postID int64) (map[string][]string, error) {
	query := `SELECT key, value FROM post_meta WHERE post_id = $1 ORDER BY id`
	rows, err := r.db.Query(ctx, query, postID)
	if err != nil {
		return nil, r.handlePostgresError("get custom fields", err)
	}
	defer rows.Close()

	fields := make(map[string][]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, r.handlePostgresError("scan custom field", err)
		}
		fields[key] = append(fields[key], value)
	}
	return fields, rows.Err()
}

func (r *Repository) SetCustomFields(ctx context.Context, postID int64, fields map[string][]string) error {
	for key, values := range fields {
		if _, err := r.db.Exec(ctx, `DELETE FROM post_meta WHERE post_id = $1 AND key = $2`, postID, key); err != nil {
			return r.handlePostgresError("set custom fields", err)
		}
		for _, value := range values {
			if _, err := r.db.Exec(ctx,
				`INSERT INTO post_meta (post_id, key, value) VALUES ($1, $2, $3)`,
				postID, key, value); err != nil {
				return r.handlePostgresError("set custom fields", err)
			}
		}
	}
	return nil
}

func (r *Repository) AddCustomField(ctx context.Context, postID int64, key, value string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO post_meta (post_id, key, value) VALUES ($1, $2, $3)`,
		postID, key, value)
	if err != nil {
		return r.handlePostgresError("add custom field", err)
	}
	return nil
}

// Term operations

const termColumns = `id, taxonomy, name, slug, parent_id, description, count`

func scanTerm(row pgx.Row) (*simplepublish.Term, error) {
	var term simplepublish.Term
	err := row.Scan(&term.ID, &term.Taxonomy, &term.Name, &term.Slug,
		&term.ParentID, &term.Description, &term.Count)
	if err != nil {
		return nil, err
	}
	return &term, nil
}

func (r *Repository) CreateTerm(ctx context.Context, term *simplepublish.Term) (*simplepublish.Term, error) {
	query := `
		INSERT INTO terms (taxonomy, name, slug, parent_id, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + termColumns

	created, err := scanTerm(r.db.QueryRow(ctx, query,
		term.Taxonomy, term.Name, term.Slug, term.ParentID, term.Description))
	if err != nil {
		return nil, r.handlePostgresError("create term", err)
	}
	return created, nil
}

func (r *Repository) UpdateTerm(ctx context.Context, term *simplepublish.Term) (*simplepublish.Term, error) {
	query := `
		UPDATE terms SET name = $3, slug = $4, parent_id = $5, description = $6
		WHERE id = $1 AND taxonomy = $2
		RETURNING ` + termColumns

	updated, err := scanTerm(r.db.QueryRow(ctx, query,
		term.ID, term.Taxonomy, term.Name, term.Slug, term.ParentID, term.Description))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplepublish.ErrTermNotFound
		}
		return nil, r.handlePostgresError("update term", err)
	}
	return updated, nil
}

func (r *Repository) DeleteTerm(ctx context.Context, id int64, taxonomy string) (bool, error) {
	if _, err := r.db.Exec(ctx, `DELETE FROM term_assignments WHERE term_id = $1`, id); err != nil {
		return false, r.handlePostgresError("delete term assignments", err)
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM terms WHERE id = $1 AND taxonomy = $2`, id, taxonomy)
	if err != nil {
		return false, r.handlePostgresError("delete term", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) GetTerm(ctx context.Context, id int64, taxonomy string) (*simplepublish.Term, error) {
	query := `SELECT ` + termColumns + ` FROM terms WHERE id = $1 AND taxonomy = $2`
	term, err := scanTerm(r.db.QueryRow(ctx, query, id, taxonomy))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplepublish.ErrTermNotFound
		}
		return nil, r.handlePostgresError("get term", err)
	}
	return term, nil
}

func (r *Repository) GetTermByName(ctx context.Context, name, taxonomy string) (*simplepublish.Term, error) {
	query := `SELECT ` + termColumns + ` FROM terms WHERE lower(name) = lower($1) AND taxonomy = $2`
	term, err := scanTerm(r.db.QueryRow(ctx, query, name, taxonomy))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplepublish.ErrTermNotFound
		}
		return nil, r.handlePostgresError("get term by name", err)
	}
	return term, nil
}

func (r *Repository) ListTerms(ctx context.Context, taxonomy string, filter simplepublish.TermFilter) ([]*simplepublish.Term, error) {
	query := `SELECT ` + termColumns + ` FROM terms WHERE taxonomy = $1`
	args := []interface{}{taxonomy}
	arg := 1

	if filter.Search != "" {
		arg++
		query += fmt.Sprintf(" AND name ILIKE $%d", arg)
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.HideEmpty {
		query += " AND count > 0"
	}
	query += " ORDER BY name"
	if filter.Number > 0 {
		arg++
		query += fmt.Sprintf(" LIMIT $%d", arg)
		args = append(args, filter.Number)
	}
	if filter.Offset > 0 {
		arg++
		query += fmt.Sprintf(" OFFSET $%d", arg)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list terms", err)
	}
	defer rows.Close()

	var terms []*simplepublish.Term
	for rows.Next() {
		term, err := scanTerm(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan term", err)
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

func (r *Repository) EnsureTerm(ctx context.Context, name, taxonomy string) (*simplepublish.Term, error) {
	term, err := r.GetTermByName(ctx, name, taxonomy)
	if err == nil {
		return term, nil
	}
	if !errors.Is(err, simplepublish.ErrTermNotFound) {
		return nil, err
	}
	created, err := r.CreateTerm(ctx, &simplepublish.Term{
		Taxonomy: taxonomy,
		Name:     name,
		Slug:     slugify(name),
	})
	if errors.Is(err, simplepublish.ErrDuplicateTerm) {
		// Lost a race with a concurrent insert; the row exists now.
		return r.GetTermByName(ctx, name, taxonomy)
	}
	return created, err
}

func (r *Repository) SetPostTerms(ctx context.Context, postID int64, taxonomy string, termIDs []int64, appendTerms bool) error {
	if !appendTerms {
		_, err := r.db.Exec(ctx, `
			DELETE FROM term_assignments
			WHERE post_id = $1
			  AND term_id IN (SELECT id FROM terms WHERE taxonomy = $2)`,
			postID, taxonomy)
		if err != nil {
			return r.handlePostgresError("clear post terms", err)
		}
	}
	for _, termID := range termIDs {
		_, err := r.db.Exec(ctx, `
			INSERT INTO term_assignments (post_id, term_id)
			VALUES ($1, $2)
			ON CONFLICT (post_id, term_id) DO NOTHING`,
			postID, termID)
		if err != nil {
			return r.handlePostgresError("set post terms", err)
		}
	}
	// Recompute usage counts for the touched taxonomy.
	_, err := r.db.Exec(ctx, `
		UPDATE terms SET count = (
			SELECT count(*) FROM term_assignments WHERE term_id = terms.id
		) WHERE taxonomy = $1`, taxonomy)
	if err != nil {
		return r.handlePostgresError("update term counts", err)
	}
	return nil
}

func (r *Repository) ListPostTerms(ctx context.Context, postID int64, taxonomies []string) ([]*simplepublish.Term, error) {
	if len(taxonomies) == 0 {
		return nil, nil
	}
	query := `
		SELECT t.id, t.taxonomy, t.name, t.slug, t.parent_id, t.description, t.count
		FROM terms t
		JOIN term_assignments ta ON ta.term_id = t.id
		WHERE ta.post_id = $1 AND t.taxonomy = ANY($2)
		ORDER BY t.taxonomy, t.name`

	rows, err := r.db.Query(ctx, query, postID, taxonomies)
	if err != nil {
		return nil, r.handlePostgresError("list post terms", err)
	}
	defer rows.Close()

	var terms []*simplepublish.Term
	for rows.Next() {
		term, err := scanTerm(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan post term", err)
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

// User operations

const userColumns = `
	id, login, password, email, role, display_name, first_name, last_name,
	nickname, nicename, bio, url, registered, contact_methods`

func scanUser(row pgx.Row) (*simplepublish.User, error) {
	var user simplepublish.User
	err := row.Scan(&user.ID, &user.Login, &user.Password, &user.Email,
		&user.Role, &user.DisplayName, &user.FirstName, &user.LastName,
		&user.Nickname, &user.NiceName, &user.Bio, &user.URL,
		&user.Registered, &user.ContactMethods)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *simplepublish.User) (int64, error) {
	query := `
		INSERT INTO users (
			login, password, email, role, display_name, first_name, last_name,
			nickname, nicename, bio, url, registered, contact_methods
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	var id int64
	err := r.db.QueryRow(ctx, query,
		user.Login, user.Password, user.Email, user.Role, user.DisplayName,
		user.FirstName, user.LastName, user.Nickname, user.NiceName,
		user.Bio, user.URL, user.Registered, user.ContactMethods).Scan(&id)
	if err != nil {
		return 0, r.handlePostgresError("create user", err)
	}
	return id, nil
}

func (r *Repository) UpdateUser(ctx context.Context, user *simplepublish.User) (int64, error) {
	query := `
		UPDATE users SET
			password = $2, email = $3, role = $4, display_name = $5,
			first_name = $6, last_name = $7, nickname = $8, nicename = $9,
			bio = $10, url = $11, contact_methods = $12
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		user.ID, user.Password, user.Email, user.Role, user.DisplayName,
		user.FirstName, user.LastName, user.Nickname, user.NiceName,
		user.Bio, user.URL, user.ContactMethods)
	if err != nil {
		return 0, r.handlePostgresError("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, simplepublish.ErrUserNotFound
	}
	return user.ID, nil
}

func (r *Repository) DeleteUser(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, r.handlePostgresError("delete user", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (*simplepublish.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplepublish.ErrUserNotFound
		}
		return nil, r.handlePostgresError("get user", err)
	}
	return user, nil
}

func (r *Repository) GetUserByLogin(ctx context.Context, login string) (*simplepublish.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(login) = lower($1)`
	user, err := scanUser(r.db.QueryRow(ctx, query, login))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplepublish.ErrUserNotFound
		}
		return nil, r.handlePostgresError("get user by login", err)
	}
	return user, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*simplepublish.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplepublish.ErrUserNotFound
		}
		return nil, r.handlePostgresError("get user by email", err)
	}
	return user, nil
}

func (r *Repository) ListUsers(ctx context.Context, filter simplepublish.UserFilter) ([]*simplepublish.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1=1`
	args := []interface{}{}
	arg := 0

	if filter.Role != "" {
		arg++
		query += fmt.Sprintf(" AND role = $%d", arg)
		args = append(args, filter.Role)
	}
	query += " ORDER BY id"
	if filter.Number > 0 {
		arg++
		query += fmt.Sprintf(" LIMIT $%d", arg)
		args = append(args, filter.Number)
	}
	if filter.Offset > 0 {
		arg++
		query += fmt.Sprintf(" OFFSET $%d", arg)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list users", err)
	}
	defer rows.Close()

	var users []*simplepublish.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan user", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "-")
	return slug
}
