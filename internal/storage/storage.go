package storage

import (
	"context"
	"errors"
	"time"

	"github.com/linkboard/linkboard/internal/models"
)

// Ошибки хранилища. Провайдеро-специфичные коды (например, unique violation
// в PostgreSQL) транслируются в эти значения на границе реализации,
// остальной код на коды провайдера не смотрит.
var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrForbidden = errors.New("forbidden")
	ErrTransient = errors.New("storage temporarily unavailable")
)

type Storage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUsers(ctx context.Context, ids []int64) (map[int64]*models.User, error)
	GetUserByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash []byte) error

	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	ListPosts(ctx context.Context, limit int, cursor *time.Time) (*models.PaginatedPosts, error)
	UpdatePost(ctx context.Context, id, creatorID int64, title, text *string) (*models.Post, error)
	DeletePost(ctx context.Context, id, creatorID int64) error

	Vote(ctx context.Context, postID, userID int64, value int) error
	GetVotes(ctx context.Context, userID int64, postIDs []int64) (map[int64]int, error)

	Close() error
}

// NormalizeVote приводит произвольное значение голоса к -1 или +1.
// Ноль и положительные числа считаются голосом "за", отрицательные - "против".
// Правило намеренно явное: клиенты присылают произвольные целые.
func NormalizeVote(raw int) int {
	if raw < 0 {
		return -1
	}
	return 1
}
