package user

import (
	"fmt"
	"strconv"
	"strings"
)

// IdentKind tags how an admin-supplied identifier should be resolved.
type IdentKind int

const (
	IdentNumericID IdentKind = iota + 1
	IdentHandle
)

// Ident is a parsed admin identifier: a Telegram id or a free-text handle
// (username or email). It must be resolved to a TelegramID before use.
type Ident struct {
	Kind   IdentKind
	ID     int64
	Handle string
}

// ParseIdent accepts "123", "tg:123", "@username", "username" or an email.
func ParseIdent(raw string) (Ident, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Ident{}, fmt.Errorf("empty identifier")
	}
	numeric := strings.TrimPrefix(strings.ToLower(s), "tg:")
	if id, err := strconv.ParseInt(numeric, 10, 64); err == nil {
		if id <= 0 {
			return Ident{}, fmt.Errorf("invalid telegram id %d", id)
		}
		return Ident{Kind: IdentNumericID, ID: id}, nil
	}
	if strings.HasPrefix(strings.ToLower(s), "tg:") {
		return Ident{}, fmt.Errorf("invalid telegram id %q", s)
	}
	handle := strings.TrimPrefix(s, "@")
	if handle == "" {
		return Ident{}, fmt.Errorf("empty handle")
	}
	return Ident{Kind: IdentHandle, Handle: handle}, nil
}

// IsEmail reports whether a handle looks like an email address.
func (i Ident) IsEmail() bool {
	return i.Kind == IdentHandle && strings.Contains(i.Handle, "@")
}

func (i Ident) String() string {
	if i.Kind == IdentNumericID {
		return strconv.FormatInt(i.ID, 10)
	}
	return i.Handle
}
