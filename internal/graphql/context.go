package graphql

import "context"

type ctxKey int

const (
	viewerKey ctxKey = iota
	loadersKey
)

// WithViewer кладёт в контекст идентификатор аутентифицированного
// пользователя. Значение вычисляется один раз на входе запроса и дальше
// не меняется; ядро auth-состояние не мутирует.
func WithViewer(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, viewerKey, userID)
}

// ViewerFrom возвращает идентификатор наблюдателя запроса, если он есть.
func ViewerFrom(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(viewerKey).(int64)
	return userID, ok
}

func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

func LoadersFrom(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(loadersKey).(*Loaders)
	return loaders
}
