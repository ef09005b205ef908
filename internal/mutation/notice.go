package mutation

import "fmt"

// Notice is the short title and description shown with an outcome.
type Notice struct {
	Title       string
	Description string
}

func dropAcceptedNotice() Notice {
	return Notice{Title: "Note dropped!", Description: "Your anonymous thought has been sent. Someone will see it today."}
}

func replyAcceptedNotice() Notice {
	return Notice{Title: "Reply sent!", Description: "Your anonymous reply has been delivered."}
}

func rejectionNotice(act action, kind Kind, serverMessage string) Notice {
	var n Notice
	switch kind {
	case KindValidation:
		n = Notice{Title: "Content rejected", Description: "Your note was rejected by moderation or it's invalid."}
	case KindRateLimited:
		// The locked state copy is fixed; the service's message does not replace it.
		return Notice{Title: "Already dropped today", Description: "You can only drop one note per day. Come back tomorrow."}
	case KindNoReceivers:
		n = Notice{Title: "No receivers available", Description: "There aren't any eligible receivers right now. Try again later."}
	case KindAlreadyReplied:
		n = Notice{Title: "Already replied", Description: "You have already sent a reply."}
	case KindUnauthorized:
		n = Notice{Title: "Session expired", Description: "Please log in again."}
	case KindServerFault:
		if act == actionReply {
			n = Notice{Title: "Reply failed", Description: "Something went wrong. Please try again."}
		} else {
			n = Notice{Title: "Drop failed", Description: "Server error. Please try again shortly."}
		}
	default:
		n = Notice{Title: "Something went wrong", Description: "Please try again."}
	}
	if serverMessage != "" {
		n.Description = serverMessage
	}
	return n
}

func emptyNotice(act action) Notice {
	if act == actionReply {
		return Notice{Title: "Empty reply", Description: "Please write something before sending."}
	}
	return Notice{Title: "Empty note", Description: "Please write something before dropping."}
}

func tooLongNotice(act action, limit int) Notice {
	what := "Note"
	if act == actionReply {
		what = "Reply"
	}
	return Notice{Title: "Too long", Description: fmt.Sprintf("%s must be at most %d characters.", what, limit)}
}
