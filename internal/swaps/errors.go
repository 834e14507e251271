package swaps

import (
	"errors"
	"fmt"

	"github.com/swapshelf/swapshelf-api/internal/models"
)

var (
	// ErrNotAuthorized возвращается, когда сторона не вправе выполнить переход
	ErrNotAuthorized = errors.New("сторона не вправе выполнить этот переход")

	// ErrAccessDenied возвращается, когда пользователь не является стороной заявки
	ErrAccessDenied = errors.New("пользователь не является стороной заявки")

	// ErrDuplicateRequest возвращается при повторной заявке на ту же книгу
	// тому же получателю
	ErrDuplicateRequest = errors.New("такая заявка на обмен уже существует")

	// ErrBookNotOwnedByReceiver возвращается, когда запрошенная книга
	// не принадлежит получателю заявки
	ErrBookNotOwnedByReceiver = errors.New("запрошенная книга не принадлежит получателю")

	// ErrOfferNotSwappable возвращается, когда предложенная книга или жанр
	// не входят в список допустимых для запрошенной книги
	ErrOfferNotSwappable = errors.New("предложение не входит в список допустимых для обмена")

	// ErrSelfSwap возвращается при попытке создать заявку самому себе
	ErrSelfSwap = errors.New("нельзя предложить обмен самому себе")
)

// InvalidTransitionError описывает недопустимый переход статуса
type InvalidTransitionError struct {
	From models.SwapStatus
	To   models.SwapStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("недопустимый переход статуса из %q в %q", e.From, e.To)
}
