package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/linkboard/linkboard/internal/models"
	"github.com/linkboard/linkboard/internal/storage"
)

type voteKey struct {
	userID int64
	postID int64
}

// MemoryStorage - хранилище в памяти для тестов и локального запуска.
// Повторяет семантику PostgreSQL-реализации, включая правила голосования.
type MemoryStorage struct {
	users      map[int64]*models.User
	posts      map[int64]*models.Post
	votes      map[voteKey]int
	nextUserID int64
	nextPostID int64
	mu         sync.Mutex
}

func New() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[int64]*models.User),
		posts: make(map[int64]*models.Post),
		votes: make(map[voteKey]int),
	}
}

func (s *MemoryStorage) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return storage.ErrConflict
		}
	}

	s.nextUserID++
	user.ID = s.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *MemoryStorage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.users[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *MemoryStorage) GetUsers(ctx context.Context, ids []int64) (map[int64]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make(map[int64]*models.User, len(ids))
	for _, id := range ids {
		if u, exists := s.users[id]; exists {
			copied := *u
			users[id] = &copied
		}
	}
	return users, nil
}

func (s *MemoryStorage) GetUserByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == usernameOrEmail || u.Email == usernameOrEmail {
			copied := *u
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *MemoryStorage) UpdateUserPassword(ctx context.Context, id int64, passwordHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.users[id]
	if !exists {
		return storage.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *MemoryStorage) CreatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[post.CreatorID]; !exists {
		return storage.ErrNotFound
	}

	s.nextPostID++
	post.ID = s.nextPostID
	post.Points = 0
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	stored := *post
	s.posts[post.ID] = &stored
	return nil
}

func (s *MemoryStorage) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.posts[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *MemoryStorage) ListPosts(ctx context.Context, limit int, cursor *time.Time) (*models.PaginatedPosts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit < 0 {
		limit = 0
	}

	var posts []*models.Post
	for _, p := range s.posts {
		if cursor != nil && !p.CreatedAt.Before(*cursor) {
			continue
		}
		copied := *p
		posts = append(posts, &copied)
	}

	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	hasMore := len(posts) > limit
	if hasMore {
		posts = posts[:limit]
	}

	return &models.PaginatedPosts{Posts: posts, HasMore: hasMore}, nil
}

func (s *MemoryStorage) UpdatePost(ctx context.Context, id, creatorID int64, title, text *string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.posts[id]
	if !exists || p.CreatorID != creatorID {
		return nil, storage.ErrForbidden
	}
	if title != nil {
		p.Title = *title
	}
	if text != nil {
		p.Text = *text
	}
	copied := *p
	return &copied, nil
}

func (s *MemoryStorage) DeletePost(ctx context.Context, id, creatorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.posts[id]
	if !exists || p.CreatorID != creatorID {
		return storage.ErrForbidden
	}
	delete(s.posts, id)
	for key := range s.votes {
		if key.postID == id {
			delete(s.votes, key)
		}
	}
	return nil
}

func (s *MemoryStorage) Vote(ctx context.Context, postID, userID int64, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := storage.NormalizeVote(value)

	p, exists := s.posts[postID]
	if !exists {
		return storage.ErrNotFound
	}

	key := voteKey{userID: userID, postID: postID}
	current, voted := s.votes[key]
	switch {
	case !voted:
		s.votes[key] = v
		p.Points += v
	case current == v:
		// повторный голос тем же значением - ничего не меняем
	default:
		s.votes[key] = v
		p.Points += 2 * v
	}
	return nil
}

func (s *MemoryStorage) GetVotes(ctx context.Context, userID int64, postIDs []int64) (map[int64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	votes := make(map[int64]int, len(postIDs))
	for _, postID := range postIDs {
		if v, voted := s.votes[voteKey{userID: userID, postID: postID}]; voted {
			votes[postID] = v
		}
	}
	return votes, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
