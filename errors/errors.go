package errors

import "fmt"

var (
	ErrWorkerPanic          = fmt.Errorf("worker panic")
	ErrMissingToken         = fmt.Errorf("missing token")
	ErrInvalidToken         = fmt.Errorf("invalid token")
	ErrNotAccessToken       = fmt.Errorf("token is not an access token")
	ErrReportExists         = fmt.Errorf("report already exists")
	ErrReportNotFound       = fmt.Errorf("report does not exist")
	ErrConversationNotFound = fmt.Errorf("conversation does not exist")
	ErrProfileNotFound      = fmt.Errorf("profile does not exist")
	ErrInvalidScore         = fmt.Errorf("score is not a percentage in [0,100]")
	ErrAmbiguousRoom        = fmt.Errorf("cannot resolve exactly two numeric participants")
)
