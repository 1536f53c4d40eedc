// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tvshim/internal/validation"
)

// maxRequestBodySize bounds every JSON request body.
const maxRequestBodySize = 64 * 1024

// TVRequest names a television.
type TVRequest struct {
	TVIP string `json:"tv_ip" validate:"required,tv_address"`
}

// SetInputRequest selects a named input from the television's profile.
type SetInputRequest struct {
	TVIP        string `json:"tv_ip" validate:"required,tv_address"`
	TargetInput string `json:"target_input" validate:"required,min=1,max=32"`
}

// PlayVideoRequest plays the timeout video. RentalID is informational.
type PlayVideoRequest struct {
	TVIP     string `json:"tv_ip" validate:"required,tv_address"`
	RentalID *int64 `json:"rental_id,omitempty" validate:"omitempty,gt=0"`
}

// SendKeyRequest injects one key event.
type SendKeyRequest struct {
	TVIP    string  `json:"tv_ip" validate:"required,tv_address"`
	Keycode Keycode `json:"keycode" validate:"required,keycode"`
}

// Keycode is a key event name or number. Clients send either "KEYCODE_HOME"
// or a bare integer such as 3.
type Keycode string

// UnmarshalJSON accepts a JSON string or integer.
func (k *Keycode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*k = Keycode(s)
		return nil
	}
	n, err := strconv.ParseInt(string(bytes.TrimSpace(data)), 10, 64)
	if err != nil {
		return fmt.Errorf("keycode must be a string or an integer, got %s", data)
	}
	*k = Keycode(strconv.FormatInt(n, 10))
	return nil
}

// ControlRequest performs a named control action.
type ControlRequest struct {
	TVIP   string `json:"tv_ip" validate:"required,tv_address"`
	Action string `json:"action" validate:"required,min=1,max=32"`
}

// StartMonitorRequest arms a rental timer. TimeoutSeconds defaults to 30
// when omitted.
type StartMonitorRequest struct {
	RentalID       int64  `json:"rental_id" validate:"required,gt=0"`
	TVIP           string `json:"tv_ip" validate:"required,tv_address"`
	TimeoutSeconds *int   `json:"timeout_seconds,omitempty" validate:"omitempty,min=1,max=86400"`
}

// RentalTimeoutRequest runs the timeout action immediately.
type RentalTimeoutRequest struct {
	RentalID int64  `json:"rental_id" validate:"required,gt=0"`
	TVIP     string `json:"tv_ip" validate:"required,tv_address"`
}

// decodeRequest reads a JSON body into dst and validates it. Unknown fields
// are ignored so older clients keep working.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errBadRequest("request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBadRequest(fmt.Sprintf("request body exceeds %d bytes", maxRequestBodySize))
		}
		return errBadRequest("invalid JSON: " + err.Error())
	}

	trimStrings(dst)

	if verr := validation.ValidateStruct(dst); verr != nil {
		return verr
	}
	return nil
}

// trimStrings trims the address fields clients commonly pad.
func trimStrings(dst interface{}) {
	switch v := dst.(type) {
	case *TVRequest:
		v.TVIP = strings.TrimSpace(v.TVIP)
	case *SetInputRequest:
		v.TVIP = strings.TrimSpace(v.TVIP)
		v.TargetInput = strings.TrimSpace(v.TargetInput)
	case *PlayVideoRequest:
		v.TVIP = strings.TrimSpace(v.TVIP)
	case *SendKeyRequest:
		v.TVIP = strings.TrimSpace(v.TVIP)
		v.Keycode = Keycode(strings.TrimSpace(string(v.Keycode)))
	case *ControlRequest:
		v.TVIP = strings.TrimSpace(v.TVIP)
		v.Action = strings.TrimSpace(v.Action)
	case *StartMonitorRequest:
		v.TVIP = strings.TrimSpace(v.TVIP)
	case *RentalTimeoutRequest:
		v.TVIP = strings.TrimSpace(v.TVIP)
	}
}

// badRequestError is a malformed request body.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func errBadRequest(msg string) error {
	return &badRequestError{msg: msg}
}
