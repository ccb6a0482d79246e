package ai

import (
	"fmt"
	"regexp"
	"strconv"

	apperrors "matchroom/errors"
)

// InvalidResult is the sentinel string rendered when the model's output
// could not be parsed into a valid percentage.
const InvalidResult = "Invalid result"

var scorePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%?`)

// ParseScore extracts the first numeric substring of the model's
// free-form output and validates it as a percentage in [0,100]. The
// output format is not contractually guaranteed, so anything
// unparsable or out of range yields errors.ErrInvalidScore.
func ParseScore(raw string) (float64, error) {
	match := scorePattern.FindStringSubmatch(raw)
	if match == nil {
		return 0, apperrors.ErrInvalidScore
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, apperrors.ErrInvalidScore
	}
	if value < 0 || value > 100 {
		return 0, apperrors.ErrInvalidScore
	}
	return value, nil
}

// FormatPercent renders a score the way stage notifications and stored
// reports expose it: "57.32 %".
func FormatPercent(value float64) string {
	return fmt.Sprintf("%.2f %%", value)
}

// FormatScore renders an optional score, "None" when absent.
func FormatScore(value *float64) string {
	if value == nil {
		return "None"
	}
	return fmt.Sprintf("%.2f", *value)
}
