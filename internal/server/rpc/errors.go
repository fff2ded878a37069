package rpc

import (
	"fmt"
)

// Error wraps RPC errors, which contain an error code in addition to the message.
type Error interface {
	error
	ErrorCode() int // returns the code
}

// A DataError contains some data in addition to the error message.
type DataError interface {
	error
	ErrorData() interface{} // returns the error data
}

const (
	errcodeDefault        = -32000
	errcodeParse          = -32700
	errcodeInvalidRequest = -32600
	errcodeMethodNotFound = -32601
	errcodeInternal       = -32603
)

type (
	parseError struct {
		message string
	}

	invalidRequestError struct {
		message string
	}

	methodNotFoundError struct {
		method string
	}

	internalServerError struct {
		message string
	}

	batchLimitError struct {
		limit int
	}
)

func (e *parseError) Error() string {
	return e.message
}

func (e *parseError) ErrorCode() int {
	return errcodeParse
}

func (e *invalidRequestError) Error() string {
	return e.message
}

func (e *invalidRequestError) ErrorCode() int {
	return errcodeInvalidRequest
}

func (e *methodNotFoundError) Error() string {
	return fmt.Sprintf("the method %s does not exist/is not available", e.method)
}

func (e *methodNotFoundError) ErrorCode() int {
	return errcodeMethodNotFound
}

func (e *internalServerError) Error() string {
	return e.message
}

func (e *internalServerError) ErrorCode() int {
	return errcodeInternal
}

func (e *batchLimitError) Error() string {
	return fmt.Sprintf("maximum allowed batch size %d", e.limit)
}

func (e *batchLimitError) ErrorCode() int {
	return errcodeInvalidRequest
}
