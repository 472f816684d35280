package service

import "errors"

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrSessionNotFound  = errors.New("payment session not found")
	ErrSignatureInvalid = errors.New("webhook signature invalid")
)
