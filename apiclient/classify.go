package apiclient

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-crm-client/apierror"
)

// classify converts an HTTP error response into a classified apierror. The
// CRM API reports validation failures as a JSON object keyed by field name
// with either a string or an array of strings per field, and general errors
// under a "detail" key.
func classify(status int, body []byte, mutation bool) *apierror.Error {
	detail, fields := parseErrorBody(body)

	switch status {
	case http.StatusUnauthorized:
		msg := detail
		if msg == "" {
			msg = "session expired or invalid"
		}
		return &apierror.Error{Kind: apierror.KindUnauthorized, Message: msg, StatusCode: status}
	case http.StatusForbidden:
		msg := detail
		if msg == "" {
			msg = "permission denied"
		}
		return &apierror.Error{Kind: apierror.KindForbidden, Message: msg, StatusCode: status}
	case http.StatusNotFound:
		msg := detail
		if msg == "" {
			msg = "not found"
		}
		return &apierror.Error{Kind: apierror.KindNotFound, Message: msg, StatusCode: status}
	}

	if status == http.StatusBadRequest && len(fields) > 0 {
		return &apierror.Error{
			Kind:       apierror.KindValidationFailed,
			Message:    "validation failed",
			Fields:     fields,
			StatusCode: status,
		}
	}

	kind := apierror.KindFetchFailed
	fallback := "request failed"
	if mutation {
		kind = apierror.KindMutationFailed
		fallback = "mutation failed"
	}
	msg := detail
	if msg == "" {
		msg = fallback
	}
	return &apierror.Error{Kind: kind, Message: msg, StatusCode: status}
}

// parseErrorBody extracts the general "detail" message and any field-keyed
// messages from an error payload. Non-JSON bodies yield nothing.
func parseErrorBody(body []byte) (detail string, fields map[string]string) {
	if len(body) == 0 {
		return "", nil
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil
	}

	for key, raw := range payload {
		var single string
		if err := json.Unmarshal(raw, &single); err == nil {
			if key == "detail" {
				detail = single
				continue
			}
			if fields == nil {
				fields = make(map[string]string)
			}
			fields[key] = single
			continue
		}

		var many []string
		if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
			if fields == nil {
				fields = make(map[string]string)
			}
			fields[key] = many[0]
		}
	}
	return detail, fields
}
