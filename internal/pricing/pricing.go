// Package pricing fixes the credit/currency conversion used by settlement.
package pricing

import "github.com/shopspring/decimal"

// One Hydcoin credit is pegged at 83 INR. Settlement amounts are sent to the
// payment processor in minor units (paise).
var (
	unitPriceINR  = decimal.NewFromInt(83)
	paisePerRupee = decimal.NewFromInt(100)
)

// DefaultCurrency is the ISO code used for payouts unless configured otherwise.
const DefaultCurrency = "inr"

// CreditsToMinorUnits converts a credit count to payout minor units.
func CreditsToMinorUnits(credits int64) int64 {
	return decimal.NewFromInt(credits).Mul(unitPriceINR).Mul(paisePerRupee).IntPart()
}

// ListingCost returns the credit cost of buying quantityKg at pricePerKg.
func ListingCost(quantityKg, pricePerKg int64) int64 {
	return decimal.NewFromInt(quantityKg).Mul(decimal.NewFromInt(pricePerKg)).IntPart()
}
