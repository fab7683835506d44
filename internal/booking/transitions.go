package booking

import (
	"slices"

	"github.com/mmeshcher/artist-booking/internal/model"
)

// transitions: единственная таблица допустимых переходов и ролей, которым они разрешены.
var transitions = map[model.BookingStatus]map[model.BookingStatus][]model.Role{
	model.StatusInquiry: {
		model.StatusQuoted:    {model.RoleArtist, model.RoleOperator},
		model.StatusCancelled: {model.RoleOrganizer, model.RoleArtist, model.RoleOperator},
	},
	model.StatusQuoted: {
		model.StatusConfirmed: {model.RoleArtist, model.RoleOperator},
		model.StatusCancelled: {model.RoleOrganizer, model.RoleArtist, model.RoleOperator},
	},
	model.StatusConfirmed: {
		model.StatusPaid:      {model.RoleOperator},
		model.StatusCancelled: {model.RoleOrganizer, model.RoleArtist, model.RoleOperator},
	},
	model.StatusPaid: {
		model.StatusCompleted: {model.RoleOperator},
		model.StatusCancelled: {model.RoleOrganizer, model.RoleArtist, model.RoleOperator},
	},
}

// CanTransition сообщает, есть ли ребро from → to в таблице переходов.
func CanTransition(from, to model.BookingStatus) bool {
	_, ok := transitions[from][to]
	return ok
}

// Allowed возвращает статусы, достижимые из from за один переход, в порядке жизненного цикла.
func Allowed(from model.BookingStatus) []model.BookingStatus {
	var res []model.BookingStatus
	for _, s := range lifecycle {
		if CanTransition(from, s) {
			res = append(res, s)
		}
	}
	return res
}

// RoleAllowed сообщает, может ли роль выполнить переход from → to.
func RoleAllowed(from, to model.BookingStatus, role model.Role) bool {
	return slices.Contains(transitions[from][to], role)
}

var lifecycle = []model.BookingStatus{
	model.StatusInquiry,
	model.StatusQuoted,
	model.StatusConfirmed,
	model.StatusPaid,
	model.StatusCompleted,
	model.StatusCancelled,
}
