package schema

import (
	"fmt"
	"strings"
)

// Payment is one alternative payment method entry.
type Payment struct {
	Method  string `json:"method"`
	Details string `json:"details,omitempty"`
}

// Money is a monetary amount in minor units.
type Money struct {
	Currency string `json:"currency"`
	Cents    int64  `json:"cents"`
}

// Format renders the amount as "CODE 12.34".
func (m Money) Format() string {
	currency := strings.ToUpper(strings.TrimSpace(m.Currency))
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%s %.2f", currency, float64(m.Cents)/100.0)
}

// Value holds one collected field value. Exactly one of the content fields
// is set, matching the owning field's kind; the zero Value means "not
// entered". The one-of layout mirrors how document elements are modeled
// elsewhere in this module.
type Value struct {
	Text     string    `json:"text,omitempty"`
	List     []string  `json:"list,omitempty"`
	Amount   *Money    `json:"amount,omitempty"`
	Payments []Payment `json:"payments,omitempty"`
}

// TextValue wraps a single line or multiline string.
func TextValue(s string) Value { return Value{Text: s} }

// ListValue wraps an ordered list of strings.
func ListValue(items ...string) Value { return Value{List: items} }

// MoneyValue wraps a monetary amount.
func MoneyValue(currency string, cents int64) Value {
	return Value{Amount: &Money{Currency: currency, Cents: cents}}
}

// PaymentsValue wraps a list of payment method entries.
func PaymentsValue(entries ...Payment) Value { return Value{Payments: entries} }

// IsZero reports whether no content was entered. Lists and payment sets
// containing only blank entries count as empty.
func (v Value) IsZero() bool {
	if strings.TrimSpace(v.Text) != "" {
		return false
	}
	for _, item := range v.List {
		if strings.TrimSpace(item) != "" {
			return false
		}
	}
	for _, p := range v.Payments {
		if strings.TrimSpace(p.Method) != "" || strings.TrimSpace(p.Details) != "" {
			return false
		}
	}
	return v.Amount == nil
}

// Kind infers the field kind that best matches the stored content. Used
// when recovering a case whose template no longer exists.
func (v Value) Kind() FieldKind {
	switch {
	case v.Amount != nil:
		return KindCurrency
	case len(v.Payments) > 0:
		return KindPayments
	case len(v.List) > 0:
		return KindList
	case strings.Contains(v.Text, "\n"):
		return KindMultiline
	default:
		return KindText
	}
}

// Strings returns the non-blank list items, trimmed.
func (v Value) Strings() []string {
	out := make([]string, 0, len(v.List))
	for _, item := range v.List {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// First returns the first non-blank entry: the trimmed text for scalar
// values, or the first non-blank list item.
func (v Value) First() string {
	if s := strings.TrimSpace(v.Text); s != "" {
		return s
	}
	for _, item := range v.List {
		if s := strings.TrimSpace(item); s != "" {
			return s
		}
	}
	return ""
}
