package pool

import (
	"fmt"
	"strings"
)

// ValidateResults checks a proposed completion payload and returns a
// normalized copy (flags defaulted to NORMAL). Values are deliberately
// not required to parse as numbers: qualitative lab results are free
// text. An invalid payload never reaches the state machine or the store.
func ValidateResults(results []ResultEntry) ([]ResultEntry, error) {
	ve := newValidationError()
	if len(results) == 0 {
		ve.add("results", "at least one result entry is required")
		return nil, ve
	}

	out := make([]ResultEntry, len(results))
	for i, r := range results {
		if strings.TrimSpace(r.Label) == "" {
			ve.add(fmt.Sprintf("results[%d].label", i), "label is required")
		}
		if strings.TrimSpace(r.Value) == "" {
			ve.add(fmt.Sprintf("results[%d].value", i), "value is required")
		}
		switch r.Flag {
		case "":
			r.Flag = FlagNormal
		case FlagNormal, FlagCritical:
		default:
			ve.add(fmt.Sprintf("results[%d].flag", i),
				fmt.Sprintf("flag must be %s or %s", FlagNormal, FlagCritical))
		}
		out[i] = r
	}

	if err := ve.err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateCancelReason rejects blank cancellation reasons.
func ValidateCancelReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		ve := newValidationError()
		ve.add("reason", "cancellation reason is required")
		return "", ve
	}
	return reason, nil
}
