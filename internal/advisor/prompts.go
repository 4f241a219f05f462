package advisor

import (
	"fmt"
	"strings"
)

// adviceSystemInstruction constrains the model to conservative, concise
// financial guidance.
const adviceSystemInstruction = "You are an expert personal finance advisor named PocketSage. " +
	"Your advice must always be concise, actionable, and based on conservative, long-term financial principles. " +
	"Never recommend speculative trading."

// Categories is the closed set of labels the classification prompt allows.
var Categories = []string{
	"Groceries",
	"Entertainment",
	"Transport",
	"Income",
	"Savings/Investment",
	"Rent/Mortgage",
	"Utilities",
	"Miscellaneous",
}

// buildClassificationPrompt asks the model for exactly one category name.
func buildClassificationPrompt(description string) string {
	var b strings.Builder
	b.WriteString("Categorize the following raw bank transaction description into ONE of these categories: ")
	for i, c := range Categories {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "'%s'", c)
	}
	b.WriteString(".\n")
	fmt.Fprintf(&b, "Transaction: '%s'\n", description)
	b.WriteString("Respond ONLY with the category name, nothing else. Do not use quotes or punctuation.")
	return b.String()
}

// isKnownCategory reports whether label is a member of the closed set.
func isKnownCategory(label string) bool {
	for _, c := range Categories {
		if c == label {
			return true
		}
	}
	return false
}
