package premium

import "errors"

var (
	ErrAlreadyPremium = errors.New("user is already premium or was not found")
	ErrUserNotFound   = errors.New("user not found")
)
