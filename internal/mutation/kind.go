package mutation

import (
	"errors"
	"net/http"

	"dropnote/internal/api"
)

// Kind is the closed set of reasons a submission can be rejected.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindRateLimited
	KindNoReceivers
	KindAlreadyReplied
	KindUnauthorized
	KindServerFault
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindValidation:
		return "Validation"
	case KindRateLimited:
		return "RateLimited"
	case KindNoReceivers:
		return "NoReceivers"
	case KindAlreadyReplied:
		return "AlreadyReplied"
	case KindUnauthorized:
		return "Unauthorized"
	case KindServerFault:
		return "ServerFault"
	default:
		return "Unknown"
	}
}

// IsConflict reports whether k is one of the 409 sub-kinds.
func (k Kind) IsConflict() bool {
	return k == KindNoReceivers || k == KindAlreadyReplied
}

type action int

const (
	actionDrop action = iota
	actionReply
)

// classify maps a gateway failure to a Kind. It is the only place status
// codes turn into user-facing states.
func classify(act action, err error) (kind Kind, status int, serverMessage string) {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return KindServerFault, 0, ""
	}

	status = apiErr.Status
	serverMessage = apiErr.ServerMessage()
	switch {
	case status == http.StatusBadRequest:
		kind = KindValidation
	case status == http.StatusUnauthorized:
		kind = KindUnauthorized
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status == http.StatusConflict && act == actionDrop:
		kind = KindNoReceivers
	case status == http.StatusConflict && act == actionReply:
		kind = KindAlreadyReplied
	default:
		kind = KindServerFault
	}
	return kind, status, serverMessage
}
