package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind names an entry of the ingestion error taxonomy.
type Kind string

const (
	KindFieldValidation   Kind = "FieldValidationError"
	KindFileStructure     Kind = "FileStructureError"
	KindDuplicateConflict Kind = "DuplicateConflict"
	KindRemoteValidation  Kind = "RemoteValidationError"
	KindNetworkFailure    Kind = "NetworkFailure"
	KindNetworkTimeout    Kind = "NetworkTimeout"
	KindConflict          Kind = "Conflict"
	KindNotFound          Kind = "NotFound"
	KindForbidden         Kind = "Forbidden"
	KindUnavailable       Kind = "Unavailable"
	KindInternal          Kind = "Internal"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(code int, kind Kind, message string, err error) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

func Validation(message string) *Error {
	return New(http.StatusBadRequest, KindFieldValidation, message, nil)
}

func FileStructure(message string, err error) *Error {
	return New(http.StatusBadRequest, KindFileStructure, message, err)
}

func RemoteValidation(message string, err error) *Error {
	return New(http.StatusUnprocessableEntity, KindRemoteValidation, message, err)
}

func NetworkFailure(message string, err error) *Error {
	return New(http.StatusBadGateway, KindNetworkFailure, message, err)
}

func NetworkTimeout(message string, err error) *Error {
	return New(http.StatusGatewayTimeout, KindNetworkTimeout, message, err)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, KindConflict, message, nil)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, KindNotFound, message, nil)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, KindForbidden, message, nil)
}

func Unavailable(message string) *Error {
	return New(http.StatusServiceUnavailable, KindUnavailable, message, nil)
}

func Internal(message string, err error) *Error {
	return New(http.StatusInternalServerError, KindInternal, message, err)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the taxonomy kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Respond writes err as a JSON error body. Unknown errors become a 500 with
// a generic message.
func Respond(c *gin.Context, err error) {
	appErr, ok := As(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
			"kind":  KindInternal,
		})
		return
	}
	c.JSON(appErr.Code, gin.H{
		"error": appErr.Message,
		"kind":  appErr.Kind,
	})
}

// Error middleware for Gin
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			Respond(c, c.Errors.Last().Err)
			c.Abort()
		}
	}
}
