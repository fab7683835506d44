package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mmeshcher/artist-booking/internal/booking"
	"github.com/mmeshcher/artist-booking/internal/model"
)

// MemoryRepository хранит бронирования и документы в памяти процесса. Используется без DATABASE_URI и в тестах.
type MemoryRepository struct {
	mu        sync.RWMutex
	bookings  map[string]*model.Booking
	documents map[string]*model.FinancialDocument
	order     []string
	sequences map[model.DocumentKind]int64
}

// NewMemoryRepository создаёт пустое хранилище.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		bookings:  make(map[string]*model.Booking),
		documents: make(map[string]*model.FinancialDocument),
		sequences: make(map[model.DocumentKind]int64),
	}
}

// Close ничего не делает.
func (m *MemoryRepository) Close() error { return nil }

// CreateBooking сохраняет новое бронирование.
func (m *MemoryRepository) CreateBooking(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bookings[b.ID]; ok {
		return fmt.Errorf("%w: %s", ErrBookingExists, b.ID)
	}
	m.bookings[b.ID] = b.Clone()
	return nil
}

// GetBooking возвращает копию бронирования.
func (m *MemoryRepository) GetBooking(_ context.Context, id string) (*model.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", booking.ErrNotFound, id)
	}
	return b.Clone(), nil
}

// CompareAndSwapBooking записывает next, только если статус и версия не менялись.
func (m *MemoryRepository) CompareAndSwapBooking(_ context.Context, expected model.BookingStatus, expectedVersion int64, next *model.Booking) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.bookings[next.ID]
	if !ok {
		return false, fmt.Errorf("%w: %s", booking.ErrNotFound, next.ID)
	}
	if cur.Status != expected || cur.Version != expectedVersion {
		return false, nil
	}
	m.bookings[next.ID] = next.Clone()
	return true, nil
}

// ListBookings возвращает страницу бронирований по фильтру, упорядоченных по дате события.
func (m *MemoryRepository) ListBookings(_ context.Context, f model.BookingFilter) ([]model.Booking, int, error) {
	offset := normalizePage(&f)

	m.mu.RLock()
	var matched []model.Booking
	for _, b := range m.bookings {
		if matches(b, f) {
			matched = append(matched, *b.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].EventDate.Equal(matched[j].EventDate) {
			return matched[i].EventDate.Before(matched[j].EventDate)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+f.PageSize, total)
	return matched[offset:end], total, nil
}

func matches(b *model.Booking, f model.BookingFilter) bool {
	switch {
	case f.Status != "" && b.Status != f.Status:
		return false
	case f.OrganizerID != "" && b.OrganizerID != f.OrganizerID:
		return false
	case f.ArtistID != "" && b.ArtistID != f.ArtistID:
		return false
	case f.EventFrom != nil && b.EventDate.Before(*f.EventFrom):
		return false
	case f.EventTo != nil && b.EventDate.After(*f.EventTo):
		return false
	}
	return true
}

// NextDocumentSequence выдаёт следующий порядковый номер документа данного вида.
func (m *MemoryRepository) NextDocumentSequence(_ context.Context, kind model.DocumentKind) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sequences[kind]++
	return m.sequences[kind], nil
}

// SaveDocument сохраняет выпущенный документ. Существующие документы не перезаписываются.
func (m *MemoryRepository) SaveDocument(_ context.Context, doc *model.FinancialDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.documents[doc.Number]; ok {
		return fmt.Errorf("%w: %s", ErrDocumentExists, doc.Number)
	}
	if _, ok := m.bookings[doc.BookingID]; !ok {
		return fmt.Errorf("%w: %s", booking.ErrNotFound, doc.BookingID)
	}
	m.documents[doc.Number] = cloneDocument(doc)
	m.order = append(m.order, doc.Number)
	return nil
}

// GetDocument возвращает копию документа по номеру.
func (m *MemoryRepository) GetDocument(_ context.Context, number string) (*model.FinancialDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.documents[number]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, number)
	}
	return cloneDocument(doc), nil
}

// DocumentsByBooking возвращает документы бронирования в порядке выпуска.
func (m *MemoryRepository) DocumentsByBooking(_ context.Context, bookingID string) ([]model.FinancialDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var res []model.FinancialDocument
	for _, n := range m.order {
		if d := m.documents[n]; d.BookingID == bookingID {
			res = append(res, *cloneDocument(d))
		}
	}
	return res, nil
}

func cloneDocument(d *model.FinancialDocument) *model.FinancialDocument {
	c := *d
	c.Items = make([]model.LineItem, len(d.Items))
	copy(c.Items, d.Items)
	c.Display.Items = append([]string(nil), d.Display.Items...)
	return &c
}
