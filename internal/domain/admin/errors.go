package admin

import "errors"

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrNotDemotable   = errors.New("user not found or already non-premium")
	ErrCannotEditSelf = errors.New("admins cannot delete or demote themselves")
)
