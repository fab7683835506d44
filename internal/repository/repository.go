package repository

import (
	"errors"

	"github.com/mmeshcher/artist-booking/internal/model"
)

var (
	// ErrBookingExists возвращается при повторном создании бронирования с тем же идентификатором.
	ErrBookingExists = errors.New("booking already exists")
	// ErrDocumentExists возвращается при попытке повторно сохранить документ с тем же номером.
	ErrDocumentExists = errors.New("document already issued")
	// ErrDocumentNotFound возвращается, если документ не найден.
	ErrDocumentNotFound = errors.New("document not found")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// normalizePage подставляет страницу и размер страницы по умолчанию и возвращает смещение.
func normalizePage(f *model.BookingFilter) int {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	return (f.Page - 1) * f.PageSize
}
