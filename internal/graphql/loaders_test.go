package graphql

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkboard/linkboard/internal/models"
	"github.com/linkboard/linkboard/internal/storage"
	"github.com/linkboard/linkboard/internal/storage/memory"
)

// countingStore считает массовые запросы к хранилищу.
type countingStore struct {
	storage.Storage
	mu           sync.Mutex
	getUsersCall int
	getVotesCall int
	userBatches  [][]int64
}

func (s *countingStore) GetUsers(ctx context.Context, ids []int64) (map[int64]*models.User, error) {
	s.mu.Lock()
	s.getUsersCall++
	s.userBatches = append(s.userBatches, ids)
	s.mu.Unlock()
	return s.Storage.GetUsers(ctx, ids)
}

func (s *countingStore) GetVotes(ctx context.Context, userID int64, postIDs []int64) (map[int64]int, error) {
	s.mu.Lock()
	s.getVotesCall++
	s.mu.Unlock()
	return s.Storage.GetVotes(ctx, userID, postIDs)
}

func seedUsers(t *testing.T, store storage.Storage, usernames ...string) []*models.User {
	t.Helper()
	users := make([]*models.User, len(usernames))
	for i, username := range usernames {
		users[i] = &models.User{Username: username, Email: username + "@example.com"}
		require.NoError(t, store.CreateUser(context.Background(), users[i]))
	}
	return users
}

func TestUserLoaderBatches(t *testing.T) {
	store := &countingStore{Storage: memory.New()}
	users := seedUsers(t, store, "alice", "bob")

	loaders := NewLoaders(store, 0, false)
	ctx := context.Background()

	// все thunks выдаются до первого разрешения - ключи уходят одним батчем
	thunks := []dataloader.Thunk[*models.User]{
		loaders.Users.Load(ctx, users[0].ID),
		loaders.Users.Load(ctx, users[1].ID),
		loaders.Users.Load(ctx, users[0].ID),
	}

	got0, err := thunks[0]()
	assert.NoError(t, err)
	got1, err := thunks[1]()
	assert.NoError(t, err)
	got2, err := thunks[2]()
	assert.NoError(t, err)

	assert.Equal(t, "alice", got0.Username)
	assert.Equal(t, "bob", got1.Username)
	assert.Equal(t, "alice", got2.Username)

	assert.Equal(t, 1, store.getUsersCall, "три Load должны свернуться в один запрос")
	require.Len(t, store.userBatches, 1)
	assert.Len(t, store.userBatches[0], 2, "повторный ключ дедуплицируется")
}

func TestUserLoaderMemoizes(t *testing.T) {
	store := &countingStore{Storage: memory.New()}
	users := seedUsers(t, store, "alice")

	loaders := NewLoaders(store, 0, false)
	ctx := context.Background()

	first, err := loaders.Users.Load(ctx, users[0].ID)()
	assert.NoError(t, err)

	// результат стабилен до конца запроса, даже если строка изменилась
	second, err := loaders.Users.Load(ctx, users[0].ID)()
	assert.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, store.getUsersCall)
}

func TestUserLoaderNotFoundSentinel(t *testing.T) {
	store := &countingStore{Storage: memory.New()}
	loaders := NewLoaders(store, 0, false)

	user, err := loaders.Users.Load(context.Background(), 999)()
	assert.NoError(t, err, "ненайденный id не является ошибкой")
	assert.Nil(t, user)
}

func TestVoteLoader(t *testing.T) {
	base := memory.New()
	store := &countingStore{Storage: base}
	ctx := context.Background()
	users := seedUsers(t, store, "alice")

	post := &models.Post{Title: "t", Text: "x", CreatorID: users[0].ID, CreatedAt: time.Now()}
	require.NoError(t, base.CreatePost(ctx, post))
	require.NoError(t, base.Vote(ctx, post.ID, users[0].ID, -1))

	loaders := NewLoaders(store, users[0].ID, true)
	require.NotNil(t, loaders.Votes)

	voted := loaders.Votes.Load(ctx, post.ID)
	missing := loaders.Votes.Load(ctx, post.ID+1)

	vote, err := voted()
	assert.NoError(t, err)
	require.NotNil(t, vote)
	assert.Equal(t, -1, vote.Value)

	none, err := missing()
	assert.NoError(t, err)
	assert.Nil(t, none, "отсутствие голоса - nil, не ошибка")

	assert.Equal(t, 1, store.getVotesCall)
}

func TestLoadersWithoutViewer(t *testing.T) {
	loaders := NewLoaders(memory.New(), 0, false)
	assert.NotNil(t, loaders.Users)
	assert.Nil(t, loaders.Votes, "без наблюдателя загрузчик голосов не создаётся")
}
