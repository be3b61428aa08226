package model

// Categories is the closed vocabulary offered to the categorizer and
// accepted on review-time patches. Unknown values degrade to "other".
var Categories = []string{
	// Income
	"salary", "freelance", "business_income", "commission", "tips",
	"rental_income", "investment_income", "government_benefit",
	"loan_received", "gift_received",
	// Expenses
	"food", "transportation", "utilities", "rent", "healthcare",
	"education", "entertainment", "shopping", "loan_payment", "insurance",
	"business_expense", "family_support",
	// Transfers
	"bank_transfer", "ewallet_transfer", "cash_in", "cash_out",
	// Fees
	"transaction_fee", "service_fee", "atm_fee",

	"other",
}

var categorySet = func() map[string]bool {
	m := make(map[string]bool, len(Categories))
	for _, c := range Categories {
		m[c] = true
	}
	return m
}()

// ValidCategory reports whether c is in the category vocabulary.
func ValidCategory(c string) bool {
	return categorySet[c]
}

// NormalizeCategory maps unknown or empty category tokens to "other".
func NormalizeCategory(c string) string {
	if c == "" || !categorySet[c] {
		return "other"
	}
	return c
}
