package model

import (
	"errors"
	"fmt"
)

// ErrorKind 错误分类
type ErrorKind string

const (
	KindConfiguration   ErrorKind = "configuration"
	KindLoad            ErrorKind = "load"
	KindProtocol        ErrorKind = "protocol"
	KindExternalSurface ErrorKind = "external_surface"
)

var (
	ErrMissingToken    = errors.New("Missing token")
	ErrEmptyURL        = errors.New("empty url")
	ErrInsecureURL     = errors.New("url must be https")
	ErrInvalidMessage  = errors.New("Invalid message format")
	ErrSessionNotFound = errors.New("session not found")
)

// Error 带分类的错误
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError 创建分类错误
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind 判断 err 链中是否存在指定分类
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
