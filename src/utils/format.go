package utils

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatInt 千分位整数, 例如 1234567 -> "1,234,567"
func FormatInt(n int) string {
	return printer.Sprintf("%d", n)
}

// FormatFloat 千分位小数, NaN 显示为 "-"
func FormatFloat(f float64, prec int) string {
	switch {
	case math.IsNaN(f):
		return "-"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return printer.Sprintf(fmt.Sprintf("%%.%df", prec), f)
}
