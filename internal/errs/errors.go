package errs

import "errors"

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrLinkNotFound   = errors.New("message link not found")
)
