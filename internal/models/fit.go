package models

import "strings"

// Fit is the cut of a pair of jeans
type Fit string

const (
	FitStraight  Fit = "Straight"
	FitSlim      Fit = "Slim"
	FitSkinny    Fit = "Skinny"
	FitRegular   Fit = "Regular"
	FitRelaxed   Fit = "Relaxed"
	FitBootcut   Fit = "Bootcut"
	FitFlare     Fit = "Flare"
	FitMom       Fit = "Mom"
	FitWide      Fit = "Wide"
	FitBoyfriend Fit = "Boyfriend"
)

// Fits lists every known fit
var Fits = []Fit{FitStraight, FitSlim, FitSkinny, FitRegular, FitRelaxed, FitBootcut, FitFlare, FitMom, FitWide, FitBoyfriend}

// ParseFit matches s against the known fits, ignoring case
func ParseFit(s string) (Fit, bool) {
	for _, f := range Fits {
		if strings.EqualFold(string(f), s) {
			return f, true
		}
	}
	return "", false
}

// InferFit returns the first known fit named in a product name, scanning
// words left to right. Returns "" when the name mentions none.
func InferFit(name string) Fit {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '-' || r == '/' || r == ','
	})
	for _, w := range words {
		if f, ok := ParseFit(w); ok {
			return f
		}
	}
	return ""
}
