package abstractapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Email validation outcomes and errors
var (
	// ErrEmailGateway indicates the validation provider could not be
	// reached or returned an unusable response. Callers should surface
	// this as a bad-gateway condition rather than rejecting the email.
	ErrEmailGateway = errors.New("email validation gateway failed")
)

// EmailValidationResult holds the interpreted outcome of an email
// deliverability check.
type EmailValidationResult struct {
	// Valid is true when the address is well-formed and deliverable.
	Valid bool

	// Reason explains a rejection: "invalid_email_format" or
	// "unusable_email". Empty when Valid is true or a suggestion exists.
	Reason string

	// DidYouMean carries the provider's autocorrect suggestion when the
	// address looks like a typo for a different one.
	DidYouMean string
}

// emailResponse mirrors the provider's response fields we interpret.
type emailResponse struct {
	Email         string `json:"email"`
	Autocorrect   string `json:"autocorrect"`
	Deliverability string `json:"deliverability"`
	IsValidFormat struct {
		Value bool `json:"value"`
	} `json:"is_valid_format"`
}

// ValidateEmail checks the address against the validation provider and
// interprets the response. Transport failures and malformed provider
// responses both map to ErrEmailGateway.
func (c *Client) ValidateEmail(ctx context.Context, email string) (*EmailValidationResult, error) {
	statusCode, body, err := c.GetEmailValidation(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmailGateway, err)
	}
	if statusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: provider responded with status %d", ErrEmailGateway, statusCode)
	}

	var resp emailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: bad response body: %v", ErrEmailGateway, err)
	}

	if !resp.IsValidFormat.Value {
		return &EmailValidationResult{Reason: "invalid_email_format"}, nil
	}

	if resp.Autocorrect != "" && resp.Autocorrect != resp.Email {
		return &EmailValidationResult{DidYouMean: resp.Autocorrect}, nil
	}

	if resp.Deliverability == "DELIVERABLE" {
		return &EmailValidationResult{Valid: true}, nil
	}

	return &EmailValidationResult{Reason: "unusable_email"}, nil
}
