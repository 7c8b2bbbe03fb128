package www

import (
	"fmt"
	"net/http"
)

// HTTPError is an object that can be panic'ed. The outer handler recovers it
// and returns the matching HTTP error response.
type HTTPError struct {
	Code    int
	Message string
}

func (e HTTPError) Error() string {
	return fmt.Sprintf("%v %v", e.Code, e.Message)
}

// PanicBadRequestf panics with a 400 Bad Request.
func PanicBadRequestf(format string, args ...any) {
	panic(HTTPError{http.StatusBadRequest, fmt.Sprintf(format, args...)})
}

// PanicTooLarge panics with a 413 Request Entity Too Large.
func PanicTooLarge() {
	panic(HTTPError{http.StatusRequestEntityTooLarge, "file too large"})
}

// Check causes a panic if err is not nil.
func Check(err error) {
	if err != nil {
		panic(err)
	}
}
