package graphql

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Курсор ленты - десятичная строка миллисекунд Unix-эпохи, граница
// createdAt. Курсоры строго убывают от страницы к странице.

func encodeCursor(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func decodeCursor(cursor string) (time.Time, error) {
	ms, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
	}
	return time.UnixMilli(ms), nil
}
