package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is the {success, data, message, error} wrapper the backend is
// expected to use around every payload.
type Response struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	StatusCode int             `json:"statusCode,omitempty"`
}

type envelopeProbe struct {
	Success    *bool           `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Error      string          `json:"error"`
	StatusCode int             `json:"statusCode"`
}

// envelopeFrom normalizes a raw 2xx payload into the envelope shape.
// Bodies carrying a numeric statusCode >= 400 are failures regardless of
// the transport-level status; bodies without the wrapper are treated as
// direct success payloads.
func envelopeFrom(raw []byte) Response {
	var probe envelopeProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Response{Success: true, Data: raw}
	}
	if probe.StatusCode >= 400 {
		msg := probe.Message
		if msg == "" {
			msg = "An error occurred"
		}
		return Response{Success: false, Error: msg, StatusCode: probe.StatusCode}
	}
	if probe.Data != nil {
		success := true
		if probe.Success != nil {
			success = *probe.Success
		}
		return Response{Success: success, Data: probe.Data, Message: probe.Message, Error: probe.Error}
	}
	if probe.Success != nil {
		return Response{Success: *probe.Success, Message: probe.Message, Error: probe.Error}
	}
	return Response{Success: true, Data: raw, Message: probe.Message}
}

type errorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
	Issues  []Issue         `json:"issues"`
}

type nestedError struct {
	Message string  `json:"message"`
	Issues  []Issue `json:"issues"`
}

// errorFromBody builds the tagged error for a non-2xx response. The message
// and validation issues may live at the top level or nested under "error",
// depending on the backend handler that produced them.
func errorFromBody(status int, raw []byte) *Error {
	apiErr := &Error{
		Kind:   kindForStatus(status),
		Status: status,
	}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Message = body.Message
		apiErr.Issues = body.Issues
		if len(body.Error) > 0 {
			var nested nestedError
			if err := json.Unmarshal(body.Error, &nested); err == nil {
				if apiErr.Message == "" {
					apiErr.Message = nested.Message
				}
				if len(nested.Issues) > 0 {
					apiErr.Issues = nested.Issues
				}
			} else {
				var s string
				if err := json.Unmarshal(body.Error, &s); err == nil && apiErr.Message == "" {
					apiErr.Message = s
				}
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("Server error: %d %s", status, http.StatusText(status))
	}
	return apiErr
}
