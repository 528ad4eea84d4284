package coupon

import "errors"

var ErrInvalidCoupon = errors.New("coupon is invalid or already used")
