package openai

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/openai/openai-go"
	"github.com/recodeai/recode"
)

// wrapError categorizes an OpenAI SDK error for retry handling, extracting
// the status code and any Retry-After header.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	code := apiErr.StatusCode
	msg := err.Error()

	if retryAfter := parseRetryAfter(apiErr.Response); retryAfter > 0 {
		return recode.NewTransientErrorWithRetry(msg, code, retryAfter, err)
	}
	if code == 429 || (code >= 500 && code < 600) {
		return recode.NewTransientError(msg, code, err)
	}
	return recode.NewPermanentError(msg, code, err)
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}
	return 0
}
