package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// QuoteLine is one printed row of the quote table.
type QuoteLine struct {
	Description string
	Amount      string
}

// QuoteData carries everything the quote renderer prints. Amounts arrive
// already formatted so the renderer stays free of money arithmetic.
type QuoteData struct {
	QuoteNumber   string
	Date          string
	OutletName    string
	CustomerTier  string
	OperationType string

	Lines      []QuoteLine
	Subtotal   string
	Discounts  string
	Surcharges string
	Taxes      string
	TaxType    string
	Total      string
}

func (p *PDFProvider) GenerateQuote(ctx context.Context, data QuoteData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(25,
		text.NewCol(12, "Price Quote", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Quote number: "+data.QuoteNumber, props.Text{Top: 0}),
			text.New("Date: "+data.Date, props.Text{Top: 4}),
			text.New("Operation: "+data.OperationType, props.Text{Top: 8}),
		),
		col.New(6).Add(
			text.New("Outlet: "+data.OutletName, props.Text{Top: 0}),
			text.New("Customer tier: "+data.CustomerTier, props.Text{Top: 4}),
		),
	)

	m.AddRow(10,
		text.NewCol(8, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, line := range data.Lines {
		m.AddRow(10,
			text.NewCol(8, line.Description, props.Text{Size: 9}),
			text.NewCol(4, line.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(6),
		text.NewCol(3, "Subtotal", props.Text{Size: 9}),
		text.NewCol(3, data.Subtotal, props.Text{Size: 9, Align: align.Right}),
	)
	if data.Discounts != "" {
		m.AddRow(10,
			col.New(6),
			text.NewCol(3, "Discounts", props.Text{Size: 9}),
			text.NewCol(3, "-"+data.Discounts, props.Text{Size: 9, Align: align.Right}),
		)
	}
	if data.Surcharges != "" {
		m.AddRow(10,
			col.New(6),
			text.NewCol(3, "Surcharges", props.Text{Size: 9}),
			text.NewCol(3, data.Surcharges, props.Text{Size: 9, Align: align.Right}),
		)
	}
	if data.Taxes != "" {
		label := "Tax"
		if data.TaxType != "" {
			label = "Tax (" + data.TaxType + ")"
		}
		m.AddRow(10,
			col.New(6),
			text.NewCol(3, label, props.Text{Size: 9}),
			text.NewCol(3, data.Taxes, props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(12,
		col.New(6),
		text.NewCol(3, "Total", props.Text{Size: 10, Style: fontstyle.Bold}),
		text.NewCol(3, data.Total, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
