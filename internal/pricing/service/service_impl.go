package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/smallbiznis/tabung/internal/observability/metrics"
	pricingdomain "github.com/smallbiznis/tabung/internal/pricing/domain"
	settingdomain "github.com/smallbiznis/tabung/internal/setting/domain"
	"github.com/smallbiznis/tabung/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Setting keys the evaluator resolves. Base-price keys are required; the
// rest contribute zero when absent.
const (
	keyLeaseDailyRate    = "pricing.lease.daily_rate"
	keyRefillPricePerKg  = "pricing.refill.price_per_kg"
	keyRefillMinCharge   = "pricing.refill.minimum_charge"
	keyTierDiscount      = "discount.tier_percent"
	keyVolumeDiscount    = "discount.volume"
	keyTaxRate           = "tax.rate"
	keyTaxType           = "tax.type"
	keyDepositAmount     = "deposit.amount"
	surchargeKeyPrefix   = "surcharge.condition."
	penaltyKeyPrefix     = "penalty.condition."
	basePriceKeyTemplate = "pricing.%s.base_price"
)

const (
	taxTypeExclusive = "exclusive"
	taxTypeInclusive = "inclusive"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Resolver settingdomain.Resolver
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	resolver settingdomain.Resolver
	metrics  *obsmetrics.Metrics
}

func NewService(p Params) pricingdomain.Service {
	return &Service{
		log:      p.Log.Named("pricing.service"),
		resolver: p.Resolver,
		metrics:  p.Metrics,
	}
}

func (s *Service) Calculate(ctx context.Context, pctx pricingdomain.PricingContext) (*pricingdomain.PricingResult, error) {
	result, err := s.calculate(ctx, pctx)
	if err != nil {
		s.metrics.RecordPriceCalculationError(ctx, pctx.OperationType, errReason(err))
		return nil, err
	}
	s.metrics.RecordPriceCalculation(ctx, pctx.OperationType)
	return result, nil
}

func (s *Service) calculate(ctx context.Context, pctx pricingdomain.PricingContext) (*pricingdomain.PricingResult, error) {
	if err := validateContext(pctx); err != nil {
		return nil, err
	}
	scope := resolveScope(pctx.OutletID, pctx.CustomerTier, pctx.CylinderType, pctx.OperationType)

	result := &pricingdomain.PricingResult{OperationType: pctx.OperationType}

	// Stage 1: base price.
	basePrice, err := s.basePrice(ctx, pctx, scope, result)
	if err != nil {
		return nil, err
	}
	result.BasePrice = basePrice

	// Stage 2: subtotal with operation minimums clamped up.
	subtotal := basePrice
	if pctx.OperationType == settingdomain.OpRefill {
		if minCharge, found, err := s.optionalAmount(ctx, keyRefillMinCharge, scope); err != nil {
			return nil, err
		} else if found && subtotal < minCharge {
			subtotal = minCharge
			result.AppliedRules = append(result.AppliedRules,
				fmt.Sprintf("%s=%s (clamped up)", keyRefillMinCharge, money.FormatAmount(minCharge)))
		}
	}
	result.Breakdown.Subtotal = subtotal

	// Stage 3: discounts, additive on the original subtotal unless a rule
	// opts into compounding.
	if err := s.applyDiscounts(ctx, pctx, scope, subtotal, result); err != nil {
		return nil, err
	}

	// Stage 4: condition surcharges on the discounted subtotal.
	discounted := subtotal - result.Breakdown.TotalDiscounts
	if err := s.applySurcharges(ctx, pctx, scope, discounted, result); err != nil {
		return nil, err
	}

	// Stage 5: tax on the discounted, surcharged amount.
	taxable := discounted + result.Breakdown.TotalSurcharges
	total, err := s.applyTax(ctx, scope, taxable, result)
	if err != nil {
		return nil, err
	}

	// Stage 6: single final clamp. Intermediate negatives stay reportable.
	if total < 0 {
		total = 0
	}
	result.TotalPrice = total
	result.Display = money.FormatAmount(total)
	return result, nil
}

func (s *Service) CalculateBulk(ctx context.Context, contexts []pricingdomain.PricingContext) []pricingdomain.BulkItem {
	items := make([]pricingdomain.BulkItem, 0, len(contexts))
	for index, pctx := range contexts {
		result, err := s.Calculate(ctx, pctx)
		item := pricingdomain.BulkItem{Index: index, Result: result}
		if err != nil {
			item.Error = err.Error()
		}
		items = append(items, item)
	}
	return items
}

func (s *Service) CalculateDepositRefund(ctx context.Context, req pricingdomain.RefundRequest) (*pricingdomain.RefundResult, error) {
	condition := strings.ToLower(strings.TrimSpace(req.Condition))
	if condition == "" {
		return nil, fmt.Errorf("%w: condition is required", pricingdomain.ErrInvalidContext)
	}

	var outletID *snowflake.ID
	if req.OutletID != nil {
		parsed, err := snowflake.ParseString(strings.TrimSpace(*req.OutletID))
		if err != nil {
			return nil, fmt.Errorf("%w: bad outlet id", pricingdomain.ErrInvalidContext)
		}
		outletID = &parsed
	}
	scope := resolveScope(outletID, req.CustomerTier, req.CylinderType, settingdomain.OpDeposit)

	record, err := s.resolver.Resolve(ctx, keyDepositAmount, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", pricingdomain.ErrMissingSetting, keyDepositAmount)
	}
	deposit, err := record.AmountValue()
	if err != nil {
		return nil, err
	}

	result := &pricingdomain.RefundResult{
		Deposit:   deposit,
		Condition: condition,
		AppliedRules: []string{
			fmt.Sprintf("%s=%s", keyDepositAmount, money.FormatAmount(deposit)),
		},
	}

	penaltyKey := penaltyKeyPrefix + condition
	if penaltyBp, found, err := s.optionalPercent(ctx, penaltyKey, scope); err != nil {
		return nil, err
	} else if found {
		result.Penalty = money.ApplyPercent(deposit, penaltyBp)
		result.AppliedRules = append(result.AppliedRules,
			fmt.Sprintf("%s=%s%%", penaltyKey, money.FormatAmount(penaltyBp)))
	}

	refund := deposit - result.Penalty
	if refund < 0 {
		refund = 0
	}
	result.Refund = refund
	result.Display = money.FormatAmount(refund)
	return result, nil
}

func (s *Service) basePrice(ctx context.Context, pctx pricingdomain.PricingContext, scope settingdomain.ResolveScope, result *pricingdomain.PricingResult) (int64, error) {
	switch pctx.OperationType {
	case settingdomain.OpLease:
		rate, err := s.requiredAmount(ctx, keyLeaseDailyRate, scope, result)
		if err != nil {
			return 0, err
		}
		return rate * pctx.DurationDays * pctx.Quantity, nil

	case settingdomain.OpRefill:
		perKg, err := s.requiredAmount(ctx, keyRefillPricePerKg, scope, result)
		if err != nil {
			return 0, err
		}
		// One rounding for the whole volume multiplication.
		return int64(math.Round(float64(perKg)*pctx.GasKg)) * pctx.Quantity, nil

	default:
		key := fmt.Sprintf(basePriceKeyTemplate, strings.ToLower(pctx.OperationType))
		unit, err := s.requiredAmount(ctx, key, scope, result)
		if err != nil {
			return 0, err
		}
		return unit * pctx.Quantity, nil
	}
}

func (s *Service) applyDiscounts(ctx context.Context, pctx pricingdomain.PricingContext, scope settingdomain.ResolveScope, subtotal int64, result *pricingdomain.PricingResult) error {
	if pctx.CustomerTier != "" {
		if tierBp, found, err := s.optionalPercent(ctx, keyTierDiscount, scope); err != nil {
			return err
		} else if found && tierBp > 0 {
			amount := money.ApplyPercent(subtotal, tierBp)
			result.Breakdown.TotalDiscounts += amount
			result.Discounts = append(result.Discounts, pricingdomain.DiscountLine{
				Description: fmt.Sprintf("%s tier discount", pctx.CustomerTier),
				Percent:     money.FormatAmount(tierBp),
				Amount:      amount,
				Display:     money.FormatAmount(amount),
			})
			result.AppliedRules = append(result.AppliedRules,
				fmt.Sprintf("%s=%s%%", keyTierDiscount, money.FormatAmount(tierBp)))
		}
	}

	record, err := s.resolver.Resolve(ctx, keyVolumeDiscount, scope)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	var rule pricingdomain.VolumeDiscountRule
	if err := record.JSONValue(&rule); err != nil {
		return err
	}
	if rule.MinQuantity <= 0 || pctx.Quantity < rule.MinQuantity {
		return nil
	}
	percentBp, err := money.ParsePercent(rule.Percent)
	if err != nil {
		return fmt.Errorf("%s: %w", keyVolumeDiscount, err)
	}

	base := subtotal
	if rule.Compounding {
		base = subtotal - result.Breakdown.TotalDiscounts
	}
	amount := money.ApplyPercent(base, percentBp)
	label := rule.Label
	if label == "" {
		label = fmt.Sprintf("volume discount (%d+)", rule.MinQuantity)
	}
	result.Breakdown.TotalDiscounts += amount
	result.Discounts = append(result.Discounts, pricingdomain.DiscountLine{
		Description: label,
		Percent:     money.FormatAmount(percentBp),
		Amount:      amount,
		Display:     money.FormatAmount(amount),
	})
	result.AppliedRules = append(result.AppliedRules,
		fmt.Sprintf("%s=%s%%", keyVolumeDiscount, money.FormatAmount(percentBp)))
	return nil
}

func (s *Service) applySurcharges(ctx context.Context, pctx pricingdomain.PricingContext, scope settingdomain.ResolveScope, discounted int64, result *pricingdomain.PricingResult) error {
	for _, raw := range pctx.Conditions {
		condition := strings.ToLower(strings.TrimSpace(raw))
		if condition == "" {
			continue
		}
		key := surchargeKeyPrefix + condition
		percentBp, found, err := s.optionalPercent(ctx, key, scope)
		if err != nil {
			return err
		}
		if !found || percentBp == 0 {
			continue
		}
		amount := money.ApplyPercent(discounted, percentBp)
		result.Breakdown.TotalSurcharges += amount
		result.Surcharges = append(result.Surcharges, pricingdomain.SurchargeLine{
			Condition: condition,
			Percent:   money.FormatAmount(percentBp),
			Amount:    amount,
			Display:   money.FormatAmount(amount),
		})
		result.AppliedRules = append(result.AppliedRules,
			fmt.Sprintf("%s=%s%%", key, money.FormatAmount(percentBp)))
	}
	return nil
}

// applyTax returns the post-tax total. Exclusive tax adds on top; inclusive
// tax only reports the embedded portion and leaves the total unchanged.
func (s *Service) applyTax(ctx context.Context, scope settingdomain.ResolveScope, taxable int64, result *pricingdomain.PricingResult) (int64, error) {
	rateBp, found, err := s.optionalPercent(ctx, keyTaxRate, scope)
	if err != nil {
		return 0, err
	}
	if !found || rateBp == 0 {
		return taxable, nil
	}

	taxType := taxTypeExclusive
	if record, err := s.resolver.Resolve(ctx, keyTaxType, scope); err == nil {
		value, err := record.StringValue()
		if err != nil {
			return 0, err
		}
		taxType = strings.ToLower(strings.TrimSpace(value))
	} else if !isNotFound(err) {
		return 0, err
	}
	result.TaxType = taxType
	result.AppliedRules = append(result.AppliedRules,
		fmt.Sprintf("%s=%s%% (%s)", keyTaxRate, money.FormatAmount(rateBp), taxType))

	switch taxType {
	case taxTypeInclusive:
		result.Breakdown.TotalTaxes = money.InclusivePortion(taxable, rateBp)
		return taxable, nil
	default:
		tax := money.ApplyPercent(taxable, rateBp)
		result.Breakdown.TotalTaxes = tax
		return taxable + tax, nil
	}
}

func (s *Service) requiredAmount(ctx context.Context, key string, scope settingdomain.ResolveScope, result *pricingdomain.PricingResult) (int64, error) {
	record, err := s.resolver.Resolve(ctx, key, scope)
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%w: %s", pricingdomain.ErrMissingSetting, key)
		}
		return 0, err
	}
	amount, err := record.AmountValue()
	if err != nil {
		return 0, err
	}
	result.AppliedRules = append(result.AppliedRules,
		fmt.Sprintf("%s=%s", key, money.FormatAmount(amount)))
	return amount, nil
}

func (s *Service) optionalAmount(ctx context.Context, key string, scope settingdomain.ResolveScope) (int64, bool, error) {
	record, err := s.resolver.Resolve(ctx, key, scope)
	if err != nil {
		if isNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	amount, err := record.AmountValue()
	if err != nil {
		return 0, false, err
	}
	return amount, true, nil
}

func (s *Service) optionalPercent(ctx context.Context, key string, scope settingdomain.ResolveScope) (int64, bool, error) {
	record, err := s.resolver.Resolve(ctx, key, scope)
	if err != nil {
		if isNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	percent, err := record.PercentValue()
	if err != nil {
		return 0, false, err
	}
	return percent, true, nil
}

func validateContext(pctx pricingdomain.PricingContext) error {
	switch pctx.OperationType {
	case settingdomain.OpLease, settingdomain.OpRefill, settingdomain.OpSwap,
		settingdomain.OpRegistration, settingdomain.OpPenalty, settingdomain.OpDeposit:
	default:
		return fmt.Errorf("%w: unknown operation %q", pricingdomain.ErrInvalidContext, pctx.OperationType)
	}
	if pctx.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", pricingdomain.ErrInvalidContext)
	}
	if pctx.OperationType == settingdomain.OpLease && pctx.DurationDays <= 0 {
		return fmt.Errorf("%w: lease requires a positive duration", pricingdomain.ErrInvalidContext)
	}
	if pctx.OperationType == settingdomain.OpRefill && pctx.GasKg <= 0 {
		return fmt.Errorf("%w: refill requires a positive gas amount", pricingdomain.ErrInvalidContext)
	}
	return nil
}

func resolveScope(outletID *snowflake.ID, tier, cylinderType, operationType string) settingdomain.ResolveScope {
	return settingdomain.ResolveScope{
		OutletID:      outletID,
		CustomerTier:  strings.ToUpper(strings.TrimSpace(tier)),
		CylinderType:  strings.ToUpper(strings.TrimSpace(cylinderType)),
		OperationType: strings.ToUpper(strings.TrimSpace(operationType)),
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, settingdomain.ErrSettingNotFound)
}

func errReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, pricingdomain.ErrMissingSetting):
		return "missing_setting"
	case errors.Is(err, pricingdomain.ErrInvalidContext):
		return "invalid_context"
	default:
		return "internal"
	}
}
