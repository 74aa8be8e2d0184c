package google

import (
	"errors"
	"fmt"

	"github.com/recodeai/recode"
	"google.golang.org/genai"
)

// BlockedError indicates the request was blocked by content filtering.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("request blocked: %s", e.Reason)
}

// wrapError categorizes a GenAI SDK error for retry handling. The API error
// doesn't expose headers, so no Retry-After is available.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	code := apiErr.Code
	msg := err.Error()

	if code == 429 || (code >= 500 && code < 600) {
		return recode.NewTransientError(msg, code, err)
	}
	return recode.NewPermanentError(msg, code, err)
}
