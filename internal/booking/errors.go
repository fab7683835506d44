package booking

import "errors"

var (
	// ErrNotFound возвращается, если бронирование не найдено.
	ErrNotFound = errors.New("booking not found")
	// ErrInvalidTransition возвращается, если целевой статус недостижим из текущего.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrTerminalState возвращается для завершённых и отменённых бронирований.
	ErrTerminalState = errors.New("booking is in a terminal state")
	// ErrUnauthorizedActor возвращается, если роли не разрешён переход.
	ErrUnauthorizedActor = errors.New("actor is not allowed to perform this transition")
	// ErrConflict возвращается, если статус изменился с момента чтения.
	ErrConflict = errors.New("booking was modified concurrently")
	// ErrInvalidPayload возвращается при некорректных данных перехода.
	ErrInvalidPayload = errors.New("invalid transition payload")
)

// Code: код ошибки перехода для внешних потребителей.
type Code string

const (
	CodeNone              Code = ""
	CodeNotFound          Code = "NOT_FOUND"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeTerminalState     Code = "TERMINAL_STATE"
	CodeUnauthorizedActor Code = "UNAUTHORIZED_ACTOR"
	CodeConflict          Code = "CONFLICT"
	CodeInvalidPayload    Code = "INVALID_PAYLOAD"
	CodeInternal          Code = "INTERNAL"
)

var codes = []struct {
	err  error
	code Code
}{
	{ErrNotFound, CodeNotFound},
	{ErrInvalidTransition, CodeInvalidTransition},
	{ErrTerminalState, CodeTerminalState},
	{ErrUnauthorizedActor, CodeUnauthorizedActor},
	{ErrConflict, CodeConflict},
	{ErrInvalidPayload, CodeInvalidPayload},
}

// CodeOf возвращает код ошибки перехода. Для nil CodeNone, для неизвестных ошибок CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return CodeNone
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Retryable сообщает, имеет ли смысл перечитать бронирование и повторить переход.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
