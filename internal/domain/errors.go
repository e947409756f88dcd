package domain

import "errors"

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidPrice    = errors.New("unit price cannot be negative")
	ErrArticleNotFound = errors.New("article not found")
	ErrEmptyPurchase   = errors.New("purchase has no lines")
	ErrEmptySale       = errors.New("sale has no lines")
	ErrNoSupplierOffer = errors.New("no supplier offer for article")
	ErrNoPrice         = errors.New("no list price and no prior cost for article")
	ErrInterrupted     = errors.New("interrupted")
)
