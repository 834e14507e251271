package store

import "errors"

var (
	// ErrSwapNotFound возвращается, когда заявка на обмен не найдена
	ErrSwapNotFound = errors.New("заявка на обмен не найдена")

	// ErrBookNotFound возвращается, когда книга не найдена
	ErrBookNotFound = errors.New("книга не найдена")

	// ErrUserNotFound возвращается, когда пользователь не найден
	ErrUserNotFound = errors.New("пользователь не найден")
)
