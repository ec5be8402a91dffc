package handlers

import "errors"

var (
	errAuthUnexpectedState      = errors.New("handlers: auth packet received in an unexpected state")
	errAuthRetryDuringChallenge = errors.New("handlers: auth request retried while a challenge was outstanding")
	errUnauthorized             = errors.New("handlers: session is not authenticated")
)
