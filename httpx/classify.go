package httpx

import (
	"io"
	"net/http"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/seb7887/gofw/httpx/errs"
)

// Classify maps a response to the error taxonomy. A 2xx returns nil and
// leaves the body untouched. Any other status consumes and closes the
// body: 4xx becomes a ClassifiedError carrying the body as delivered, the
// rest becomes a ProtocolError. Invalid UTF-8 is replaced and a body that
// fails mid-read is reported as empty.
func Classify(operationKey string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body := drain(resp)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &errs.ClassifiedError{
			StatusCode:   resp.StatusCode,
			OperationKey: operationKey,
			Body:         body,
		}
	}
	return &errs.ProtocolError{
		StatusCode:   resp.StatusCode,
		OperationKey: operationKey,
		Body:         body,
	}
}

// Classifier adapts Classify to a requests validator.
func Classifier(operationKey string) requests.ResponseHandler {
	return func(resp *http.Response) error {
		return Classify(operationKey, resp)
	}
}

func drain(resp *http.Response) string {
	if resp.Body == nil {
		return ""
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	return strings.ToValidUTF8(string(data), "\uFFFD")
}
