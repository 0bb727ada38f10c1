package graphql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/linkboard/linkboard/internal/auth"
	"github.com/linkboard/linkboard/internal/models"
	"github.com/linkboard/linkboard/internal/storage"
)

// maxPageSize - жёсткий потолок размера страницы ленты независимо от
// запрошенного клиентом limit.
const maxPageSize = 50

const maxTitleLen = 200

var ErrUnauthorized = errors.New("unauthorized")

type RegisterOptions struct {
	Email    string
	Username string
	Password string
}

type LoginOptions struct {
	UsernameOrEmail string
	Password        string
}

type PostOptions struct {
	Title string
	Text  string
}

// FieldError - ошибка валидации, привязанная к конкретному полю ввода.
// Возвращается в данных ответа, а не как ошибка операции: клиент
// показывает её рядом с полем.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type UserResponse struct {
	Errors []*FieldError
	User   *models.User
	Token  string
}

// Resolver - основная структура, выполняющая операции API.
type Resolver struct {
	Storage storage.Storage
	Tokens  *auth.TokenManager
	Reset   *auth.ResetTokens
	Mailer  auth.Mailer
	Logger  *zap.SugaredLogger
}

func NewResolver(store storage.Storage, tokens *auth.TokenManager, reset *auth.ResetTokens, mailer auth.Mailer, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{
		Storage: store,
		Tokens:  tokens,
		Reset:   reset,
		Mailer:  mailer,
		Logger:  logger,
	}
}

// Posts реализует запрос posts: одна страница глобальной ленты, новые
// сверху. Хранилище выбирает effectiveLimit+1 строк, лишняя строка
// определяет hasMore без отдельного COUNT.
func (r *Resolver) Posts(ctx context.Context, limit int, cursor *string) (*models.PaginatedPosts, error) {
	effectiveLimit := limit
	if effectiveLimit > maxPageSize {
		effectiveLimit = maxPageSize
	}
	if effectiveLimit < 0 {
		effectiveLimit = 0
	}

	var boundary *time.Time
	if cursor != nil {
		t, err := decodeCursor(*cursor)
		if err != nil {
			return nil, err
		}
		boundary = &t
	}

	page, err := r.Storage.ListPosts(ctx, effectiveLimit, boundary)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return page, nil
}

// Post реализует запрос post: отсутствующий пост - это null, не ошибка.
func (r *Resolver) Post(ctx context.Context, id int64) (*models.Post, error) {
	post, err := r.Storage.GetPost(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

func (r *Resolver) Me(ctx context.Context) (*models.User, error) {
	viewerID, ok := ViewerFrom(ctx)
	if !ok {
		return nil, nil
	}
	user, err := r.Storage.GetUser(ctx, viewerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *Resolver) Register(ctx context.Context, options RegisterOptions) (*UserResponse, error) {
	if fieldErrors := validateRegister(options); fieldErrors != nil {
		return &UserResponse{Errors: fieldErrors}, nil
	}

	passwordHash, err := auth.HashPassword(options.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     options.Username,
		Email:        options.Email,
		PasswordHash: passwordHash,
	}
	err = r.Storage.CreateUser(ctx, user)
	if errors.Is(err, storage.ErrConflict) {
		return &UserResponse{Errors: []*FieldError{
			{Field: "username", Message: "username or email already taken"},
		}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := r.Tokens.Token(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &UserResponse{User: user, Token: token}, nil
}

func (r *Resolver) Login(ctx context.Context, options LoginOptions) (*UserResponse, error) {
	user, err := r.Storage.GetUserByLogin(ctx, options.UsernameOrEmail)
	if errors.Is(err, storage.ErrNotFound) {
		return &UserResponse{Errors: []*FieldError{
			{Field: "usernameOrEmail", Message: "that user doesn't exist"},
		}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, options.Password) {
		return &UserResponse{Errors: []*FieldError{
			{Field: "password", Message: "incorrect password"},
		}}, nil
	}

	token, err := r.Tokens.Token(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &UserResponse{User: user, Token: token}, nil
}

// ForgotPassword всегда отвечает true: существование адреса не
// раскрывается, чтобы не давать перечислять пользователей.
func (r *Resolver) ForgotPassword(ctx context.Context, email string) (bool, error) {
	user, err := r.Storage.GetUserByLogin(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get user: %w", err)
	}

	token, err := r.Reset.Create(ctx, user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to create reset token: %w", err)
	}

	// доставка письма не задерживает ответ и не влияет на него
	mailCtx := context.WithoutCancel(ctx)
	go func() {
		body := fmt.Sprintf(`<a href="http://localhost:3000/change-password/%s">reset password</a>`, token)
		if err := r.Mailer.Send(mailCtx, user.Email, "Change password", body); err != nil {
			r.Logger.Errorw("не удалось отправить письмо сброса пароля", "error", err)
		}
	}()

	return true, nil
}

func (r *Resolver) ChangePassword(ctx context.Context, token, newPassword string) (*UserResponse, error) {
	if len(newPassword) <= 3 {
		return &UserResponse{Errors: []*FieldError{
			{Field: "newPassword", Message: "password length must be greater than 3"},
		}}, nil
	}

	userID, err := r.Reset.Consume(ctx, token)
	if errors.Is(err, auth.ErrTokenNotFound) {
		return &UserResponse{Errors: []*FieldError{
			{Field: "token", Message: "token expired"},
		}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume reset token: %w", err)
	}

	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	err = r.Storage.UpdateUserPassword(ctx, userID, passwordHash)
	if errors.Is(err, storage.ErrNotFound) {
		return &UserResponse{Errors: []*FieldError{
			{Field: "token", Message: "user no longer exists"},
		}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}

	user, err := r.Storage.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	authToken, err := r.Tokens.Token(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &UserResponse{User: user, Token: authToken}, nil
}

// CreatePost реализует мутацию createPost.
func (r *Resolver) CreatePost(ctx context.Context, options PostOptions) (*models.Post, error) {
	viewerID, ok := ViewerFrom(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	if len(options.Title) > maxTitleLen {
		return nil, errors.New("title exceeds 200 characters")
	}

	post := &models.Post{
		Title:     options.Title,
		Text:      options.Text,
		CreatorID: viewerID,
	}
	if err := r.Storage.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return post, nil
}

// UpdatePost меняет только пост самого наблюдателя: id и creator_id
// проверяются одним предикатом хранилища, чужой пост даёт Forbidden.
func (r *Resolver) UpdatePost(ctx context.Context, id int64, title, text *string) (*models.Post, error) {
	viewerID, ok := ViewerFrom(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	if title != nil && len(*title) > maxTitleLen {
		return nil, errors.New("title exceeds 200 characters")
	}

	post, err := r.Storage.UpdatePost(ctx, id, viewerID, title, text)
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (r *Resolver) DeletePost(ctx context.Context, id int64) (bool, error) {
	viewerID, ok := ViewerFrom(ctx)
	if !ok {
		return false, ErrUnauthorized
	}
	if err := r.Storage.DeletePost(ctx, id, viewerID); err != nil {
		return false, err
	}
	return true, nil
}

// Vote реализует мутацию vote. Нормализация значения и правило дельты
// живут в леджере хранилища, см. storage.NormalizeVote и Storage.Vote.
func (r *Resolver) Vote(ctx context.Context, postID int64, value int) (bool, error) {
	viewerID, ok := ViewerFrom(ctx)
	if !ok {
		return false, ErrUnauthorized
	}
	if err := r.Storage.Vote(ctx, postID, viewerID, value); err != nil {
		return false, err
	}
	return true, nil
}
