package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkboard/linkboard/internal/models"
	"github.com/linkboard/linkboard/internal/storage"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type PostgresStorage struct {
	pool *pgxpool.Pool
}

func New(dsn string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %v", err)
	}

	_, err = pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS posts (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			text TEXT NOT NULL,
			points INT NOT NULL DEFAULT 0,
			creator_id BIGINT NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS upvotes (
			user_id BIGINT NOT NULL REFERENCES users(id),
			post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			value SMALLINT NOT NULL,
			PRIMARY KEY (user_id, post_id)
		);
		CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC);
	`)

	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// translate приводит ошибки драйвера к ошибкам пакета storage.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return storage.ErrConflict
		case pgForeignKeyViolation:
			return storage.ErrNotFound
		}
	}
	if pgconn.SafeToRetry(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", storage.ErrTransient, err)
	}
	return err
}

func (s *PostgresStorage) CreateUser(ctx context.Context, user *models.User) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		user.Username, user.Email, user.PasswordHash).Scan(&user.ID, &user.CreatedAt)
	return translate(err)
}

func (s *PostgresStorage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE id=$1`, id).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *PostgresStorage) GetUsers(ctx context.Context, ids []int64) (map[int64]*models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	users := make(map[int64]*models.User, len(ids))
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, translate(err)
		}
		users[u.ID] = &u
	}
	return users, translate(rows.Err())
}

func (s *PostgresStorage) GetUserByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE username=$1 OR email=$1`, usernameOrEmail).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *PostgresStorage) UpdateUserPassword(ctx context.Context, id int64, passwordHash []byte) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, passwordHash, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) CreatePost(ctx context.Context, post *models.Post) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO posts (title, text, creator_id)
		VALUES ($1, $2, $3)
		RETURNING id, points, created_at`,
		post.Title, post.Text, post.CreatorID).Scan(&post.ID, &post.Points, &post.CreatedAt)
	return translate(err)
}

func (s *PostgresStorage) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var p models.Post
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, text, points, creator_id, created_at
		FROM posts
		WHERE id=$1`, id).Scan(&p.ID, &p.Title, &p.Text, &p.Points, &p.CreatorID, &p.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// ListPosts выбирает limit+1 строк: лишняя строка заменяет отдельный COUNT
// и определяет HasMore.
func (s *PostgresStorage) ListPosts(ctx context.Context, limit int, cursor *time.Time) (*models.PaginatedPosts, error) {
	if limit < 0 {
		limit = 0
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, title, text, points, creator_id, created_at
		FROM posts
		WHERE ($1::TIMESTAMPTZ IS NULL OR created_at < $1)
		ORDER BY created_at DESC
		LIMIT $2`, cursor, limit+1)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Text, &p.Points, &p.CreatorID, &p.CreatedAt); err != nil {
			return nil, translate(err)
		}
		posts = append(posts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}

	hasMore := len(posts) > limit
	if hasMore {
		posts = posts[:limit]
	}

	return &models.PaginatedPosts{Posts: posts, HasMore: hasMore}, nil
}

func (s *PostgresStorage) UpdatePost(ctx context.Context, id, creatorID int64, title, text *string) (*models.Post, error) {
	var p models.Post
	// id и creator_id проверяются одним предикатом: чужой пост выглядит
	// так же, как отсутствующий, и гонки check-then-act нет.
	err := s.pool.QueryRow(ctx, `
		UPDATE posts
		SET title = COALESCE($3, title), text = COALESCE($4, text)
		WHERE id=$1 AND creator_id=$2
		RETURNING id, title, text, points, creator_id, created_at`,
		id, creatorID, title, text).Scan(&p.ID, &p.Title, &p.Text, &p.Points, &p.CreatorID, &p.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrForbidden
	}
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *PostgresStorage) DeletePost(ctx context.Context, id, creatorID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id=$1 AND creator_id=$2`, id, creatorID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrForbidden
	}
	return nil
}

// Vote записывает или меняет голос пользователя за пост и согласованно
// правит points одной транзакцией:
//   - голоса не было: вставка записи, points += v;
//   - тот же голос:   запись и points не меняются (повтор идемпотентен);
//   - другой голос:   обновление записи, points += 2*v (снятие старого
//     значения и применение нового одним шагом).
//
// SELECT ... FOR UPDATE сериализует конкурентные голоса по одной паре
// (user, post); пары между собой не блокируются.
func (s *PostgresStorage) Vote(ctx context.Context, postID, userID int64, value int) error {
	v := storage.NormalizeVote(value)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return translate(err)
	}
	defer tx.Rollback(ctx)

	var current int
	err = tx.QueryRow(ctx, `
		SELECT value FROM upvotes
		WHERE user_id=$1 AND post_id=$2
		FOR UPDATE`, userID, postID).Scan(&current)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		tag, execErr := tx.Exec(ctx, `UPDATE posts SET points = points + $1 WHERE id=$2`, v, postID)
		if execErr != nil {
			return translate(execErr)
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrNotFound
		}
		if _, execErr = tx.Exec(ctx, `
			INSERT INTO upvotes (user_id, post_id, value)
			VALUES ($1, $2, $3)`, userID, postID, v); execErr != nil {
			return translate(execErr)
		}
	case err != nil:
		return translate(err)
	case current == v:
		return nil
	default:
		if _, err := tx.Exec(ctx, `
			UPDATE upvotes SET value=$1
			WHERE user_id=$2 AND post_id=$3`, v, userID, postID); err != nil {
			return translate(err)
		}
		if _, err := tx.Exec(ctx, `UPDATE posts SET points = points + $1 WHERE id=$2`, 2*v, postID); err != nil {
			return translate(err)
		}
	}

	return translate(tx.Commit(ctx))
}

func (s *PostgresStorage) GetVotes(ctx context.Context, userID int64, postIDs []int64) (map[int64]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT post_id, value FROM upvotes
		WHERE user_id=$1 AND post_id = ANY($2)`, userID, postIDs)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	votes := make(map[int64]int, len(postIDs))
	for rows.Next() {
		var postID int64
		var value int
		if err := rows.Scan(&postID, &value); err != nil {
			return nil, translate(err)
		}
		votes[postID] = value
	}
	return votes, translate(rows.Err())
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}
