// Package errs 定义信号处理链路的错误分类，HTTP 层据此映射状态码。
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindValidation
	KindSizing
	KindExecution
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindSizing:
		return "sizing"
	case KindExecution:
		return "execution"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// HTTPStatus 返回该类错误对外暴露的状态码。
func (k Kind) HTTPStatus() int {
	switch k {
	case KindAuth:
		return http.StatusUnauthorized
	case KindValidation, KindSizing:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error 携带分类、操作名与底层原因。
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error

	// Degraded 表示反手时平仓成功但开仓失败，账户处于空仓状态。
	Degraded     bool
	CloseOrderID string
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf 沿错误链查找分类，未分类返回 KindUnknown。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Public 返回可以回传给调用方的错误描述，未分类错误不暴露细节。
func Public(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	if e.Kind == KindAuth {
		return "unauthorized"
	}
	return e.Error()
}
