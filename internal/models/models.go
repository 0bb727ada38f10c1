package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Points    int       `json:"points"`
	CreatorID int64     `json:"creatorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Upvote - текущий голос одного пользователя за один пост.
// Это не журнал: на пару (UserID, PostID) существует не более одной записи.
type Upvote struct {
	UserID int64 `json:"userId"`
	PostID int64 `json:"postId"`
	Value  int   `json:"value"`
}

type PaginatedPosts struct {
	Posts   []*Post `json:"posts"`
	HasMore bool    `json:"hasMore"`
}
