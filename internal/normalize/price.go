package normalize

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePrice extracts a monetary amount from locale-formatted price text
// such as "US $1,299.99", "1.299,00 €" or "5.00". It fails closed: anything
// unparseable yields zero, which the normalizer treats as "drop candidate",
// never as a free product.
func ParsePrice(text string) decimal.Decimal {
	token := numericToken(text)
	if token == "" {
		return decimal.Zero
	}

	normalized := normalizeSeparators(token)
	value, err := decimal.NewFromString(normalized)
	if err != nil || value.IsNegative() {
		return decimal.Zero
	}
	return value
}

// numericToken returns the first run of digits and separator characters.
func numericToken(text string) string {
	start := -1
	for i, r := range text {
		isNumeric := (r >= '0' && r <= '9') || r == '.' || r == ','
		if isNumeric && start == -1 {
			start = i
		}
		if !isNumeric && start != -1 {
			return strings.Trim(text[start:i], ".,")
		}
	}
	if start == -1 {
		return ""
	}
	return strings.Trim(text[start:], ".,")
}

// normalizeSeparators rewrites a locale-formatted number into decimal-point
// form. When both separators appear, the one occurring last is the decimal
// separator. A lone comma followed by exactly three digits is read as a
// thousands separator ("1,299" = 1299), otherwise as a decimal comma.
func normalizeSeparators(token string) string {
	lastDot := strings.LastIndex(token, ".")
	lastComma := strings.LastIndex(token, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// European: "." thousands, "," decimal
			token = strings.ReplaceAll(token, ".", "")
			token = strings.Replace(token, ",", ".", 1)
		} else {
			token = strings.ReplaceAll(token, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(token, ",") == 1 && len(token)-lastComma-1 != 3 {
			// Decimal comma: "12,99"
			token = strings.Replace(token, ",", ".", 1)
		} else {
			// Thousands commas: "1,299" or "1,299,000"
			token = strings.ReplaceAll(token, ",", "")
		}
	case strings.Count(token, ".") > 1:
		// Multiple dots: all but the last are thousands separators.
		head := strings.ReplaceAll(token[:lastDot], ".", "")
		token = head + token[lastDot:]
	}

	return token
}

// DetectCurrency guesses the ISO code from a currency symbol in the price
// text. Empty result means "unknown, use the source default".
func DetectCurrency(text string) string {
	switch {
	case strings.Contains(text, "€"):
		return "EUR"
	case strings.Contains(text, "£"):
		return "GBP"
	case strings.Contains(text, "US $"), strings.Contains(text, "$"):
		return "USD"
	case strings.Contains(text, "¥"):
		return "CNY"
	default:
		return ""
	}
}
