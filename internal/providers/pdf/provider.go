// Package pdf renders printable documents for the admin front office.
package pdf

import (
	"context"
	"io"
)

type Provider interface {
	GenerateQuote(ctx context.Context, data QuoteData) (io.Reader, error)
}

type PDFProvider struct{}

func NewProvider() *PDFProvider {
	return &PDFProvider{}
}
