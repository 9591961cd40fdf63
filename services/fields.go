package services

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"listing-watch/models"
)

// currencyTokens is ordered: the first currency with a matching token wins.
var currencyTokens = []struct {
	currency models.Currency
	tokens   []string
}{
	{models.CurrencyEUR, []string{"€", "eur", "euro"}},
	{models.CurrencyRON, []string{"lei", "ron", "leu"}},
	{models.CurrencyUSD, []string{"$", "usd", "dollar"}},
}

var (
	digitsRegexp = regexp.MustCompile(`\d+`)
	// thousandsRegexp matches dot-grouped thousands such as 33.000 or 1.250.000.
	thousandsRegexp = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)

	errNoDigits = errors.New("no digits")
)

// ExtractPriceAndCurrency parses price text such as "33.000 €" or
// "120000 lei". Currency defaults to RON when no token matches. On failure
// it returns (0, RON) together with the reason, which callers log.
func ExtractPriceAndCurrency(text string) (float64, models.Currency, error) {
	text = strings.ToLower(strings.TrimSpace(text))

	currency := models.CurrencyRON
	for _, ct := range currencyTokens {
		if containsAny(text, ct.tokens) {
			currency = ct.currency
			break
		}
	}

	// Detection above runs on the full text; tokens are removed before
	// the digit filter.
	cleaned := text
	for _, ct := range currencyTokens {
		for _, tok := range ct.tokens {
			cleaned = strings.ReplaceAll(cleaned, tok, "")
		}
	}
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' {
			return r
		}
		return -1
	}, cleaned)

	if thousandsRegexp.MatchString(cleaned) {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, models.CurrencyRON, fmt.Errorf("price %q: %w", text, err)
	}
	return price, currency, nil
}

// ExtractArea returns the first run of digits in text, e.g. 500 for
// "500 mp teren". Text without digits yields 0 and an error.
func ExtractArea(text string) (float64, error) {
	match := digitsRegexp.FindString(text)
	if match == "" {
		return 0, fmt.Errorf("area %q: %w", text, errNoDigits)
	}
	n, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("area %q: %w", text, err)
	}
	return n, nil
}

// ExtractLocation normalises location text; empty means not specified.
func ExtractLocation(text string) string {
	return normaliseText(text)
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
