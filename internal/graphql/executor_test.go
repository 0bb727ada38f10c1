package graphql

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/linkboard/linkboard/internal/auth"
	"github.com/linkboard/linkboard/internal/models"
	"github.com/linkboard/linkboard/internal/storage/memory"
)

func newTestExecutor(store *memory.MemoryStorage) *Executor {
	resolver := NewResolver(store, auth.NewTokenManager("test-secret"), nil, nil, zap.NewNop().Sugar())
	return NewExecutor(resolver, zap.NewNop().Sugar())
}

// requestCtx собирает контекст так же, как это делает обработчик /query:
// свежие загрузчики на каждый запрос.
func requestCtx(store *memory.MemoryStorage, viewerID int64, hasViewer bool) context.Context {
	ctx := context.Background()
	if hasViewer {
		ctx = WithViewer(ctx, viewerID)
	}
	return WithLoaders(ctx, NewLoaders(store, viewerID, hasViewer))
}

func seedFeed(t *testing.T, store *memory.MemoryStorage) (*models.User, []*models.Post) {
	t.Helper()
	user := &models.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, store.CreateUser(context.Background(), user))

	var posts []*models.Post
	for _, ms := range []int64{100, 200, 300} {
		post := &models.Post{
			Title:     "Тестовый пост",
			Text:      "Содержимое",
			CreatorID: user.ID,
			CreatedAt: time.UnixMilli(ms),
		}
		require.NoError(t, store.CreatePost(context.Background(), post))
		posts = append(posts, post)
	}
	return user, posts
}

func TestExecuteFeedPagination(t *testing.T) {
	store := memory.New()
	exec := newTestExecutor(store)
	seedFeed(t, store)

	resp := exec.Execute(requestCtx(store, 0, false), Request{
		Query: `{ posts(limit: 2) { posts { id title createdAt creator { username } voteStatus } hasMore } }`,
	})
	require.Empty(t, resp.Errors)

	page := resp.Data["posts"].(map[string]interface{})
	assert.Equal(t, true, page["hasMore"])

	posts := page["posts"].([]interface{})
	require.Len(t, posts, 2)

	first := posts[0].(map[string]interface{})
	second := posts[1].(map[string]interface{})
	assert.Equal(t, "300", first["createdAt"])
	assert.Equal(t, "200", second["createdAt"])
	assert.Equal(t, "alice", first["creator"].(map[string]interface{})["username"])
	assert.Nil(t, first["voteStatus"], "без наблюдателя voteStatus остаётся null")

	// createdAt последнего поста страницы - курсор следующей
	resp = exec.Execute(requestCtx(store, 0, false), Request{
		Query:     `query Feed($cursor: String) { posts(limit: 2, cursor: $cursor) { posts { createdAt } hasMore } }`,
		Variables: map[string]interface{}{"cursor": second["createdAt"]},
	})
	require.Empty(t, resp.Errors)

	next := resp.Data["posts"].(map[string]interface{})
	assert.Equal(t, false, next["hasMore"])
	nextPosts := next["posts"].([]interface{})
	require.Len(t, nextPosts, 1)
	assert.Equal(t, "100", nextPosts[0].(map[string]interface{})["createdAt"])
}

func TestExecuteInvalidCursor(t *testing.T) {
	store := memory.New()
	exec := newTestExecutor(store)
	seedFeed(t, store)

	resp := exec.Execute(requestCtx(store, 0, false), Request{
		Query: `{ posts(limit: 2, cursor: "oops") { posts { id } hasMore } }`,
	})
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, codeInvalidCursor, resp.Errors[0].Extensions["code"])
	assert.Nil(t, resp.Data["posts"])
}

func TestExecuteVote(t *testing.T) {
	store := memory.New()
	exec := newTestExecutor(store)
	viewer, posts := seedFeed(t, store)

	resp := exec.Execute(requestCtx(store, viewer.ID, true), Request{
		Query: `mutation { vote(postId: 1, value: 1) }`,
	})
	require.Empty(t, resp.Errors)
	assert.Equal(t, true, resp.Data["vote"])

	got, err := store.GetPost(context.Background(), posts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Points)

	// лента наблюдателя показывает его голос
	resp = exec.Execute(requestCtx(store, viewer.ID, true), Request{
		Query: `{ posts(limit: 10) { posts { id points voteStatus } } }`,
	})
	require.Empty(t, resp.Errors)
	feed := resp.Data["posts"].(map[string]interface{})["posts"].([]interface{})
	require.Len(t, feed, 3)
	for _, raw := range feed {
		p := raw.(map[string]interface{})
		if p["id"] == posts[0].ID {
			assert.Equal(t, 1, p["voteStatus"])
			assert.Equal(t, 1, p["points"])
		} else {
			assert.Nil(t, p["voteStatus"])
		}
	}
}

func TestExecuteVoteUnauthorized(t *testing.T) {
	store := memory.New()
	exec := newTestExecutor(store)
	seedFeed(t, store)

	resp := exec.Execute(requestCtx(store, 0, false), Request{
		Query: `mutation { vote(postId: 1, value: 1) }`,
	})
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, codeUnauthorized, resp.Errors[0].Extensions["code"])
	assert.Nil(t, resp.Data["vote"])
}

func TestExecuteRegisterAndMe(t *testing.T) {
	store := memory.New()
	exec := newTestExecutor(store)

	resp := exec.Execute(requestCtx(store, 0, false), Request{
		Query: `mutation Register($options: RegisterOptions!) {
			register(options: $options) { errors { field message } user { id username } token }
		}`,
		Variables: map[string]interface{}{
			"options": map[string]interface{}{
				"email":    "new@example.com",
				"username": "newuser",
				"password": "secret",
			},
		},
	})
	require.Empty(t, resp.Errors)

	registered := resp.Data["register"].(map[string]interface{})
	assert.Nil(t, registered["errors"])
	assert.NotEmpty(t, registered["token"])

	user := registered["user"].(map[string]interface{})
	assert.Equal(t, "newuser", user["username"])

	viewerID := user["id"].(int64)
	resp = exec.Execute(requestCtx(store, viewerID, true), Request{
		Query: `{ me { username email } }`,
	})
	require.Empty(t, resp.Errors)
	me := resp.Data["me"].(map[string]interface{})
	assert.Equal(t, "newuser", me["username"])
	assert.Equal(t, "new@example.com", me["email"])
}

func TestExecuteRegisterValidation(t *testing.T) {
	store := memory.New()
	exec := newTestExecutor(store)

	resp := exec.Execute(requestCtx(store, 0, false), Request{
		Query: `mutation {
			register(options: {email: "bad", username: "newuser", password: "secret"}) {
				errors { field message }
				user { id }
			}
		}`,
	})
	require.Empty(t, resp.Errors, "ошибка поля не является ошибкой операции")

	registered := resp.Data["register"].(map[string]interface{})
	fieldErrors := registered["errors"].([]interface{})
	require.Len(t, fieldErrors, 1)
	assert.Equal(t, "email", fieldErrors[0].(map[string]interface{})["field"])
	assert.Nil(t, registered["user"])
}

func TestExecuteTextSnippet(t *testing.T) {
	store := memory.New()
	exec := newTestExecutor(store)

	user := &models.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, store.CreateUser(context.Background(), user))
	post := &models.Post{Title: "t", Text: "абвгдеж", CreatorID: user.ID, CreatedAt: time.Now()}
	require.NoError(t, store.CreatePost(context.Background(), post))

	resp := exec.Execute(requestCtx(store, 0, false), Request{
		Query: `{ posts(limit: 1) { posts { textSnippet(snippetLimit: 3) full: textSnippet } } }`,
	})
	require.Empty(t, resp.Errors)

	feed := resp.Data["posts"].(map[string]interface{})["posts"].([]interface{})
	p := feed[0].(map[string]interface{})
	assert.Equal(t, "абв...", p["textSnippet"], "обрезка по рунам, не по байтам")
	assert.Equal(t, "абвгдеж", p["full"], "дефолтный snippetLimit берётся из схемы")
}

func TestExecuteOwnershipThroughAPI(t *testing.T) {
	store := memory.New()
	exec := newTestExecutor(store)
	owner, posts := seedFeed(t, store)

	stranger := &models.User{Username: "bob", Email: "bob@example.com"}
	require.NoError(t, store.CreateUser(context.Background(), stranger))

	resp := exec.Execute(requestCtx(store, stranger.ID, true), Request{
		Query: `mutation { deletePost(id: 1) }`,
	})
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, codeForbidden, resp.Errors[0].Extensions["code"])

	_, err := store.GetPost(context.Background(), posts[0].ID)
	assert.NoError(t, err, "чужая мутация не трогает пост")

	resp = exec.Execute(requestCtx(store, owner.ID, true), Request{
		Query: `mutation { deletePost(id: 1) }`,
	})
	require.Empty(t, resp.Errors)
	assert.Equal(t, true, resp.Data["deletePost"])
}

func TestExecuteValidationErrors(t *testing.T) {
	store := memory.New()
	exec := newTestExecutor(store)

	resp := exec.Execute(requestCtx(store, 0, false), Request{
		Query: `{ nope }`,
	})
	assert.NotEmpty(t, resp.Errors)
	assert.Nil(t, resp.Data)
}
