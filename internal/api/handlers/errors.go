package handlers

import (
	"errors"
	"net/http"

	"github.com/flipsave/flipsave/internal/jobs"
	"github.com/flipsave/flipsave/internal/pipeline"
)

// MapHTTPStatus maps pipeline and job errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrQueueClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrNoItems), errors.Is(err, pipeline.ErrEmptyResult):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
