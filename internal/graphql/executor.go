package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"

	"github.com/linkboard/linkboard/internal/models"
	"github.com/linkboard/linkboard/internal/storage"
)

type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

type Response struct {
	Data   map[string]interface{} `json:"data,omitempty"`
	Errors gqlerror.List          `json:"errors,omitempty"`
}

// Executor валидирует входящую операцию по схеме и диспетчеризует её
// поля в Resolver, сериализуя результат по запрошенной выборке.
type Executor struct {
	resolver *Resolver
	logger   *zap.SugaredLogger
}

func NewExecutor(resolver *Resolver, logger *zap.SugaredLogger) *Executor {
	return &Executor{resolver: resolver, logger: logger}
}

// operation - состояние выполнения одной операции: документ нужен для
// разворачивания фрагментов, variables - для аргументов.
type operation struct {
	exec *Executor
	doc  *ast.QueryDocument
	vars map[string]interface{}
}

func (e *Executor) Execute(ctx context.Context, req Request) *Response {
	doc, errList := gqlparser.LoadQuery(schema, req.Query)
	if len(errList) > 0 {
		return &Response{Errors: errList}
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		return &Response{Errors: gqlerror.List{gqlerror.Errorf("operation %q not found", req.OperationName)}}
	}

	run := &operation{exec: e, doc: doc, vars: req.Variables}
	fields := run.collectFields(op.SelectionSet)
	data := make(map[string]interface{}, len(fields))
	var errs gqlerror.List

	for _, field := range fields {
		var value interface{}
		var err error
		switch op.Operation {
		case ast.Query:
			value, err = run.resolveQueryField(ctx, field)
		case ast.Mutation:
			value, err = run.resolveMutationField(ctx, field)
		default:
			err = fmt.Errorf("unsupported operation type %q", op.Operation)
		}

		name := alias(field)
		if err != nil {
			errs = append(errs, run.operationError(name, err))
			data[name] = nil
			continue
		}
		data[name] = value
	}

	return &Response{Data: data, Errors: errs}
}

func (o *operation) resolveQueryField(ctx context.Context, field *ast.Field) (interface{}, error) {
	switch field.Name {
	case "posts":
		limit, err := o.intArg(field, "limit")
		if err != nil {
			return nil, err
		}
		cursor, err := o.optStringArg(field, "cursor")
		if err != nil {
			return nil, err
		}
		page, err := o.exec.resolver.Posts(ctx, int(limit), cursor)
		if err != nil {
			return nil, err
		}
		return o.marshalPaginatedPosts(ctx, field.SelectionSet, page)
	case "post":
		id, err := o.intArg(field, "id")
		if err != nil {
			return nil, err
		}
		post, err := o.exec.resolver.Post(ctx, id)
		if err != nil || post == nil {
			return nil, err
		}
		marshaled, err := o.marshalPosts(ctx, field.SelectionSet, []*models.Post{post})
		if err != nil {
			return nil, err
		}
		return marshaled[0], nil
	case "me":
		user, err := o.exec.resolver.Me(ctx)
		if err != nil {
			return nil, err
		}
		return o.marshalUser(field.SelectionSet, user), nil
	case "__typename":
		return "Query", nil
	default:
		return nil, fmt.Errorf("unknown query field %q", field.Name)
	}
}

func (o *operation) resolveMutationField(ctx context.Context, field *ast.Field) (interface{}, error) {
	switch field.Name {
	case "register":
		opts, err := o.objectArg(field, "options")
		if err != nil {
			return nil, err
		}
		resp, err := o.exec.resolver.Register(ctx, RegisterOptions{
			Email:    stringField(opts, "email"),
			Username: stringField(opts, "username"),
			Password: stringField(opts, "password"),
		})
		if err != nil {
			return nil, err
		}
		return o.marshalUserResponse(field.SelectionSet, resp), nil
	case "login":
		opts, err := o.objectArg(field, "options")
		if err != nil {
			return nil, err
		}
		resp, err := o.exec.resolver.Login(ctx, LoginOptions{
			UsernameOrEmail: stringField(opts, "usernameOrEmail"),
			Password:        stringField(opts, "password"),
		})
		if err != nil {
			return nil, err
		}
		return o.marshalUserResponse(field.SelectionSet, resp), nil
	case "forgotPassword":
		email, err := o.stringArg(field, "email")
		if err != nil {
			return nil, err
		}
		return o.exec.resolver.ForgotPassword(ctx, email)
	case "changePassword":
		token, err := o.stringArg(field, "token")
		if err != nil {
			return nil, err
		}
		newPassword, err := o.stringArg(field, "newPassword")
		if err != nil {
			return nil, err
		}
		resp, err := o.exec.resolver.ChangePassword(ctx, token, newPassword)
		if err != nil {
			return nil, err
		}
		return o.marshalUserResponse(field.SelectionSet, resp), nil
	case "createPost":
		opts, err := o.objectArg(field, "options")
		if err != nil {
			return nil, err
		}
		post, err := o.exec.resolver.CreatePost(ctx, PostOptions{
			Title: stringField(opts, "title"),
			Text:  stringField(opts, "text"),
		})
		if err != nil {
			return nil, err
		}
		marshaled, err := o.marshalPosts(ctx, field.SelectionSet, []*models.Post{post})
		if err != nil {
			return nil, err
		}
		return marshaled[0], nil
	case "updatePost":
		id, err := o.intArg(field, "id")
		if err != nil {
			return nil, err
		}
		title, err := o.optStringArg(field, "title")
		if err != nil {
			return nil, err
		}
		text, err := o.optStringArg(field, "text")
		if err != nil {
			return nil, err
		}
		post, err := o.exec.resolver.UpdatePost(ctx, id, title, text)
		if err != nil {
			return nil, err
		}
		marshaled, err := o.marshalPosts(ctx, field.SelectionSet, []*models.Post{post})
		if err != nil {
			return nil, err
		}
		return marshaled[0], nil
	case "deletePost":
		id, err := o.intArg(field, "id")
		if err != nil {
			return nil, err
		}
		return o.exec.resolver.DeletePost(ctx, id)
	case "vote":
		postID, err := o.intArg(field, "postId")
		if err != nil {
			return nil, err
		}
		value, err := o.intArg(field, "value")
		if err != nil {
			return nil, err
		}
		return o.exec.resolver.Vote(ctx, postID, int(value))
	case "__typename":
		return "Mutation", nil
	default:
		return nil, fmt.Errorf("unknown mutation field %q", field.Name)
	}
}

func (o *operation) marshalPaginatedPosts(ctx context.Context, sel ast.SelectionSet, page *models.PaginatedPosts) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	for _, field := range o.collectFields(sel) {
		switch field.Name {
		case "posts":
			posts, err := o.marshalPosts(ctx, field.SelectionSet, page.Posts)
			if err != nil {
				return nil, err
			}
			result[alias(field)] = posts
		case "hasMore":
			result[alias(field)] = page.HasMore
		case "__typename":
			result[alias(field)] = "PaginatedPosts"
		}
	}
	return result, nil
}

// marshalPosts сериализует страницу постов. Все обращения к загрузчикам
// выдаются до разрешения первого thunk: ключи всей страницы уходят в
// хранилище одним массовым запросом на отношение, а не N+1 одиночными.
func (o *operation) marshalPosts(ctx context.Context, sel ast.SelectionSet, posts []*models.Post) ([]interface{}, error) {
	fields := o.collectFields(sel)

	var needCreator, needVote bool
	for _, field := range fields {
		switch field.Name {
		case "creator":
			needCreator = true
		case "voteStatus":
			needVote = true
		}
	}

	loaders := LoadersFrom(ctx)
	var creatorThunks []dataloader.Thunk[*models.User]
	var voteThunks []dataloader.Thunk[*models.Upvote]
	if needCreator {
		if loaders == nil {
			return nil, errors.New("loaders not found in context")
		}
		creatorThunks = make([]dataloader.Thunk[*models.User], len(posts))
		for i, p := range posts {
			creatorThunks[i] = loaders.Users.Load(ctx, p.CreatorID)
		}
	}
	if needVote && loaders != nil && loaders.Votes != nil {
		voteThunks = make([]dataloader.Thunk[*models.Upvote], len(posts))
		for i, p := range posts {
			voteThunks[i] = loaders.Votes.Load(ctx, p.ID)
		}
	}

	result := make([]interface{}, len(posts))
	for i, post := range posts {
		var creator *models.User
		if creatorThunks != nil {
			var err error
			creator, err = creatorThunks[i]()
			if err != nil {
				return nil, fmt.Errorf("failed to load post creator: %w", err)
			}
			if creator == nil {
				return nil, fmt.Errorf("post creator: %w", storage.ErrNotFound)
			}
		}
		var vote *models.Upvote
		if voteThunks != nil {
			var err error
			vote, err = voteThunks[i]()
			if err != nil {
				return nil, fmt.Errorf("failed to load viewer vote: %w", err)
			}
		}

		marshaled, err := o.marshalPost(fields, post, creator, vote)
		if err != nil {
			return nil, err
		}
		result[i] = marshaled
	}
	return result, nil
}

func (o *operation) marshalPost(fields []*ast.Field, post *models.Post, creator *models.User, vote *models.Upvote) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		switch field.Name {
		case "id":
			result[alias(field)] = post.ID
		case "title":
			result[alias(field)] = post.Title
		case "text":
			result[alias(field)] = post.Text
		case "textSnippet":
			limit, err := o.intArg(field, "snippetLimit")
			if err != nil {
				return nil, err
			}
			result[alias(field)] = textSnippet(post.Text, int(limit))
		case "points":
			result[alias(field)] = post.Points
		case "voteStatus":
			if vote == nil {
				result[alias(field)] = nil
			} else {
				result[alias(field)] = vote.Value
			}
		case "creatorId":
			result[alias(field)] = post.CreatorID
		case "creator":
			result[alias(field)] = o.marshalUser(field.SelectionSet, creator)
		case "createdAt":
			result[alias(field)] = encodeCursor(post.CreatedAt)
		case "__typename":
			result[alias(field)] = "Post"
		}
	}
	return result, nil
}

func (o *operation) marshalUser(sel ast.SelectionSet, user *models.User) interface{} {
	if user == nil {
		return nil
	}
	fields := o.collectFields(sel)
	result := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		switch field.Name {
		case "id":
			result[alias(field)] = user.ID
		case "username":
			result[alias(field)] = user.Username
		case "email":
			result[alias(field)] = user.Email
		case "createdAt":
			result[alias(field)] = encodeCursor(user.CreatedAt)
		case "__typename":
			result[alias(field)] = "User"
		}
	}
	return result
}

func (o *operation) marshalUserResponse(sel ast.SelectionSet, resp *UserResponse) map[string]interface{} {
	result := make(map[string]interface{})
	for _, field := range o.collectFields(sel) {
		switch field.Name {
		case "errors":
			if resp.Errors == nil {
				result[alias(field)] = nil
				continue
			}
			fieldErrors := make([]interface{}, len(resp.Errors))
			for i, fe := range resp.Errors {
				fieldErrors[i] = o.marshalFieldError(field.SelectionSet, fe)
			}
			result[alias(field)] = fieldErrors
		case "user":
			result[alias(field)] = o.marshalUser(field.SelectionSet, resp.User)
		case "token":
			if resp.Token == "" {
				result[alias(field)] = nil
			} else {
				result[alias(field)] = resp.Token
			}
		case "__typename":
			result[alias(field)] = "UserResponse"
		}
	}
	return result
}

func (o *operation) marshalFieldError(sel ast.SelectionSet, fe *FieldError) map[string]interface{} {
	result := make(map[string]interface{})
	for _, field := range o.collectFields(sel) {
		switch field.Name {
		case "field":
			result[alias(field)] = fe.Field
		case "message":
			result[alias(field)] = fe.Message
		case "__typename":
			result[alias(field)] = "FieldError"
		}
	}
	return result
}

// collectFields разворачивает фрагменты выборки в плоский список полей.
func (o *operation) collectFields(sel ast.SelectionSet) []*ast.Field {
	var fields []*ast.Field
	for _, s := range sel {
		switch s := s.(type) {
		case *ast.Field:
			fields = append(fields, s)
		case *ast.InlineFragment:
			fields = append(fields, o.collectFields(s.SelectionSet)...)
		case *ast.FragmentSpread:
			if def := o.doc.Fragments.ForName(s.Name); def != nil {
				fields = append(fields, o.collectFields(def.SelectionSet)...)
			}
		}
	}
	return fields
}

func (o *operation) operationError(fieldAlias string, err error) *gqlerror.Error {
	code := errorCode(err)
	message := err.Error()
	if code == codeInternal {
		o.exec.logger.Errorw("ошибка выполнения операции", "field", fieldAlias, "error", err)
		message = "internal system error"
	}
	return &gqlerror.Error{
		Message:    message,
		Path:       ast.Path{ast.PathName(fieldAlias)},
		Extensions: map[string]interface{}{"code": code},
	}
}

func (o *operation) argValue(field *ast.Field, name string) (interface{}, error) {
	arg := field.Arguments.ForName(name)
	if arg == nil {
		if field.Definition != nil {
			if def := field.Definition.Arguments.ForName(name); def != nil && def.DefaultValue != nil {
				return def.DefaultValue.Value(o.vars)
			}
		}
		return nil, nil
	}
	return arg.Value.Value(o.vars)
}

func (o *operation) intArg(field *ast.Field, name string) (int64, error) {
	value, err := o.argValue(field, name)
	if err != nil {
		return 0, err
	}
	n, ok := toInt64(value)
	if !ok {
		return 0, fmt.Errorf("argument %q of %q must be an integer", name, field.Name)
	}
	return n, nil
}

func (o *operation) stringArg(field *ast.Field, name string) (string, error) {
	value, err := o.argValue(field, name)
	if err != nil {
		return "", err
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("argument %q of %q must be a string", name, field.Name)
	}
	return s, nil
}

func (o *operation) optStringArg(field *ast.Field, name string) (*string, error) {
	value, err := o.argValue(field, name)
	if err != nil || value == nil {
		return nil, err
	}
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("argument %q of %q must be a string", name, field.Name)
	}
	return &s, nil
}

func (o *operation) objectArg(field *ast.Field, name string) (map[string]interface{}, error) {
	value, err := o.argValue(field, name)
	if err != nil {
		return nil, err
	}
	m, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("argument %q of %q must be an input object", name, field.Name)
	}
	return m, nil
}

func alias(field *ast.Field) string {
	if field.Alias != "" {
		return field.Alias
	}
	return field.Name
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func toInt64(value interface{}) (int64, bool) {
	switch n := value.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func textSnippet(text string, limit int) string {
	runes := []rune(text)
	if limit < 0 {
		limit = 0
	}
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
