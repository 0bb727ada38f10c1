package graphql

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/linkboard/linkboard/internal/models"
	"github.com/linkboard/linkboard/internal/storage"
)

// Loaders - набор батч-загрузчиков одного запроса. Множество вызовов
// Load с разными ключами в пределах одного ответа сворачиваются в один
// массовый запрос к хранилищу, результат мемоизируется на время запроса.
// Набор создаётся заново на каждый входящий запрос и между запросами
// не переиспользуется.
type Loaders struct {
	// Users: пользователь по id. Отсутствующий id даёт nil без ошибки.
	Users dataloader.Interface[int64, *models.User]
	// Votes: голос текущего наблюдателя по id поста. nil, когда
	// наблюдатель не аутентифицирован.
	Votes dataloader.Interface[int64, *models.Upvote]
}

func NewLoaders(store storage.Storage, viewerID int64, hasViewer bool) *Loaders {
	loaders := &Loaders{
		Users: dataloader.NewBatchedLoader(userBatch(store)),
	}
	if hasViewer {
		loaders.Votes = dataloader.NewBatchedLoader(voteBatch(store, viewerID))
	}
	return loaders
}

func userBatch(store storage.Storage) dataloader.BatchFunc[int64, *models.User] {
	return func(ctx context.Context, keys []int64) []*dataloader.Result[*models.User] {
		users, err := store.GetUsers(ctx, keys)

		results := make([]*dataloader.Result[*models.User], len(keys))
		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[*models.User]{Error: err}
				continue
			}
			// users[key] == nil для ненайденного id - это не ошибка
			results[i] = &dataloader.Result[*models.User]{Data: users[key]}
		}
		return results
	}
}

func voteBatch(store storage.Storage, viewerID int64) dataloader.BatchFunc[int64, *models.Upvote] {
	return func(ctx context.Context, keys []int64) []*dataloader.Result[*models.Upvote] {
		votes, err := store.GetVotes(ctx, viewerID, keys)

		results := make([]*dataloader.Result[*models.Upvote], len(keys))
		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[*models.Upvote]{Error: err}
				continue
			}
			if value, voted := votes[key]; voted {
				results[i] = &dataloader.Result[*models.Upvote]{
					Data: &models.Upvote{UserID: viewerID, PostID: key, Value: value},
				}
				continue
			}
			results[i] = &dataloader.Result[*models.Upvote]{}
		}
		return results
	}
}
