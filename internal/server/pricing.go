package server

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	pricingdomain "github.com/smallbiznis/tabung/internal/pricing/domain"
	"github.com/smallbiznis/tabung/internal/providers/pdf"
	"github.com/smallbiznis/tabung/pkg/money"
)

func (s *Server) CalculatePrice(c *gin.Context) {
	var pctx pricingdomain.PricingContext
	if err := c.ShouldBindJSON(&pctx); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.pricingSvc.Calculate(c.Request.Context(), pctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type calculateBulkRequest struct {
	Contexts []pricingdomain.PricingContext `json:"contexts"`
}

func (s *Server) CalculatePriceBulk(c *gin.Context) {
	var req calculateBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Contexts) == 0 {
		AbortWithError(c, newValidationError("contexts", "invalid_request", "contexts must not be empty"))
		return
	}
	if limit := s.engineLimits().MaxBulkContexts; len(req.Contexts) > limit {
		AbortWithError(c, newValidationError("contexts", "too_many_contexts", "bulk exceeds "+strconv.Itoa(limit)+" contexts"))
		return
	}

	items := s.pricingSvc.CalculateBulk(c.Request.Context(), req.Contexts)
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// GeneratePricingQuote runs a calculation and renders it as a printable PDF.
func (s *Server) GeneratePricingQuote(c *gin.Context) {
	var pctx pricingdomain.PricingContext
	if err := c.ShouldBindJSON(&pctx); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.pricingSvc.Calculate(c.Request.Context(), pctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	quoteNumber := s.genID.Generate().String()
	data := pdf.QuoteData{
		QuoteNumber:   quoteNumber,
		Date:          time.Now().UTC().Format("2006-01-02"),
		OutletName:    "All outlets",
		CustomerTier:  pctx.CustomerTier,
		OperationType: result.OperationType,
		Subtotal:      money.FormatAmount(result.Breakdown.Subtotal),
		TaxType:       result.TaxType,
		Total:         result.Display,
	}
	if pctx.OutletID != nil {
		data.OutletName = pctx.OutletID.String()
	}
	if data.CustomerTier == "" {
		data.CustomerTier = "-"
	}
	if result.Breakdown.TotalDiscounts > 0 {
		data.Discounts = money.FormatAmount(result.Breakdown.TotalDiscounts)
	}
	if result.Breakdown.TotalSurcharges > 0 {
		data.Surcharges = money.FormatAmount(result.Breakdown.TotalSurcharges)
	}
	if result.Breakdown.TotalTaxes > 0 {
		data.Taxes = money.FormatAmount(result.Breakdown.TotalTaxes)
	}

	data.Lines = append(data.Lines, pdf.QuoteLine{
		Description: result.OperationType + " x" + strconv.FormatInt(pctx.Quantity, 10),
		Amount:      money.FormatAmount(result.Breakdown.Subtotal),
	})
	for _, d := range result.Discounts {
		data.Lines = append(data.Lines, pdf.QuoteLine{
			Description: "Discount: " + d.Description + " (" + d.Percent + "%)",
			Amount:      "-" + d.Display,
		})
	}
	for _, sc := range result.Surcharges {
		data.Lines = append(data.Lines, pdf.QuoteLine{
			Description: "Surcharge: " + sc.Condition + " (" + sc.Percent + "%)",
			Amount:      sc.Display,
		})
	}

	reader, err := s.pdfProvider.GenerateQuote(c.Request.Context(), data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payload, err := io.ReadAll(reader)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="quote-`+quoteNumber+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}

func (s *Server) CalculateDepositRefund(c *gin.Context) {
	var req pricingdomain.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.pricingSvc.CalculateDepositRefund(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
