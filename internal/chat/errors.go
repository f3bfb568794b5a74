package chat

import (
	"errors"

	"github.com/kawaltani/kawaltani/internal/backend"
)

var (
	ErrNotLoggedIn    = errors.New("chat: not logged in")
	ErrDuplicateTitle = errors.New("chat: title already used")
	ErrGeneric        = errors.New("chat: request failed")
)

// Op names a chat history mutation.
type Op string

const (
	OpRename Op = "rename"
	OpDelete Op = "delete"
)

// Error is a failed mutation. Kind is one of the package's sentinel errors.
type Error struct {
	Op   Op
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Op) + ": " + e.Kind.Error() + ": " + e.Err.Error()
	}
	return string(e.Op) + ": " + e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Notice returns the message shown to the user.
func (e *Error) Notice() string {
	switch {
	case errors.Is(e.Kind, ErrNotLoggedIn) && e.Op == OpRename:
		return "Anda harus login untuk mengganti nama chat."
	case errors.Is(e.Kind, ErrNotLoggedIn):
		return "Anda harus login untuk menghapus riwayat chat."
	case errors.Is(e.Kind, ErrDuplicateTitle):
		return "Nama chat sudah digunakan. Mohon gunakan nama lain."
	case errors.Is(e.Err, backend.ErrNetwork) && e.Op == OpRename:
		return "Terjadi kesalahan saat mengganti nama chat"
	case errors.Is(e.Err, backend.ErrNetwork):
		return "Terjadi kesalahan saat menghapus chat"
	case e.Op == OpRename:
		return "Gagal mengganti nama chat"
	default:
		return "Gagal menghapus riwayat chat"
	}
}

// Notice returns the user-facing message for err, or "" when err is nil.
func Notice(err error) string {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Notice()
	}
	return err.Error()
}

func opError(op Op, err error) error {
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		return err
	case errors.Is(err, backend.ErrDuplicate):
		return &Error{Op: op, Kind: ErrDuplicateTitle, Err: err}
	default:
		return &Error{Op: op, Kind: ErrGeneric, Err: err}
	}
}
