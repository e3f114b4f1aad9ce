package utils

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrNotImplemented = errors.New("not implemented")
	ErrNilParameter   = errors.New("nil parameter")
	ErrWrongParameter = errors.New("wrong parameter")
)

// NumErr is a numeric code from the peer, like a socks reply code.
type NumErr struct {
	N      int
	Prefix string
}

func (ne NumErr) Error() string {
	return ne.Prefix + strconv.Itoa(ne.N)
}

// ErrInErr puts a description and optional Data around ErrDetail.
// errors.Is and errors.As see ErrDetail through it.
type ErrInErr struct {
	ErrDesc   string
	ErrDetail error
	Data      any
}

func (e ErrInErr) Error() string {
	return e.String()
}

func (e ErrInErr) Unwrap() error {
	return e.ErrDetail
}

func (e ErrInErr) Is(err error) bool {
	return e.ErrDetail == err
}

func (e ErrInErr) String() string {
	s := e.ErrDesc
	if e.ErrDetail != nil {
		s += " : " + e.ErrDetail.Error()
	}
	if e.Data != nil {
		s += fmt.Sprintf(", Data: %v", e.Data)
	}
	return s
}
