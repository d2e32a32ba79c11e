package tools

import "context"

func (t *Toolset) missedCallFollowup(_ context.Context, args map[string]any) (any, error) {
	phone := argString(args, "phone", "")
	reason := argString(args, "reason", "missed_call")

	msg := "Hi! We tried to reach you but missed you. " +
		"Reply here with your order number and how we can help, and our team will follow up."
	return Result{"ok": true, "phone": phone, "reason": reason, "message": msg}, nil
}
