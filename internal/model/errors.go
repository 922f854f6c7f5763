package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ==================== 错误定义 ====================

var (
	ErrNetworkFailure   = errors.New("network failure")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failure")
	ErrInvalidInput     = errors.New("invalid input")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrSyncInProgress   = errors.New("sync in progress")
)

// FetchError 远端返回非 2xx
type FetchError struct {
	Op     string
	Status int
	Body   string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: HTTP error! status: %d, message: %s", e.Op, e.Status, e.Body)
}

// Is 404 归为 NotFound，其余均为 NetworkFailure
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrNetworkFailure:
		return e.Status != http.StatusNotFound
	}
	return false
}
