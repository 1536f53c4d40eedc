// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

// Package validation validates decoded API request bodies with
// go-playground/validator v10.
//
// A single validator instance is shared process-wide. Errors name fields by
// their JSON tag so clients see tv_ip rather than TVIP, and convert to the
// VALIDATION_ERROR API error via ToAPIError:
//
//	type startRequest struct {
//	    RentalID int64  `json:"rental_id" validate:"required,gt=0"`
//	    TVIP     string `json:"tv_ip" validate:"required,tv_address"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
//	    return
//	}
package validation
