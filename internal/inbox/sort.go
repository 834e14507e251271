package inbox

import (
	"sort"
	"strings"

	"github.com/swapshelf/swapshelf-api/internal/models"
)

// lessFunc сравнивает две строки инбокса для сортировки
type lessFunc func(a, b *models.InboxItem) bool

// comparators сопоставляет ключ сортировки и компаратор.
// Стратегии описаны данными, а не цепочкой условий
var comparators = map[models.SortKey]lessFunc{
	models.SortByLatestMessage: byLatestMessage,
	models.SortByDate:          byDate,
	models.SortByBookTitle:     byBookTitle,
	models.SortBySenderName:    bySenderName,
	models.SortByStatus:        byStatus,
}

// sortItems сортирует строки инбокса выбранной стратегией
func sortItems(items []*models.InboxItem, key models.SortKey) {
	less, ok := comparators[key]
	if !ok {
		less = byLatestMessage
	}
	sort.SliceStable(items, func(i, j int) bool {
		return less(items[i], items[j])
	})
}

// byLatestMessage ставит выше заявки с самой свежей перепиской; заявки
// без сообщений идут после всех с сообщениями, между собой по дате заявки
func byLatestMessage(a, b *models.InboxItem) bool {
	switch {
	case a.LastMessage != nil && b.LastMessage != nil:
		return a.LastMessage.SentAt.After(b.LastMessage.SentAt)
	case a.LastMessage != nil:
		return true
	case b.LastMessage != nil:
		return false
	default:
		return a.Swap.RequestedAt.After(b.Swap.RequestedAt)
	}
}

func byDate(a, b *models.InboxItem) bool {
	return a.Swap.RequestedAt.After(b.Swap.RequestedAt)
}

func byBookTitle(a, b *models.InboxItem) bool {
	return strings.ToLower(bookTitle(a)) < strings.ToLower(bookTitle(b))
}

func bookTitle(item *models.InboxItem) string {
	if item.Swap.RequestedBook == nil {
		return ""
	}
	return item.Swap.RequestedBook.Title
}

// bySenderName сортирует по имени исходного отправителя заявки,
// а не стороны, просматривающей инбокс
func bySenderName(a, b *models.InboxItem) bool {
	return strings.ToLower(a.Swap.Sender.FullName()) < strings.ToLower(b.Swap.Sender.FullName())
}

func byStatus(a, b *models.InboxItem) bool {
	return strings.ToLower(string(a.Swap.Status)) < strings.ToLower(string(b.Swap.Status))
}
