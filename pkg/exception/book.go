package exception

import "errors"

var (
	ErrOrderInvalidPrice = errors.New("book: invalid price")
	ErrOrderInvalidQty   = errors.New("book: invalid quantity")
	ErrOrderUnknown      = errors.New("book: order not found")
	ErrPositionUnknown   = errors.New("portfolio: position not found")
)
