package validate

import (
	"regexp"
	"strings"
)

// ContainerType classifies a container number's grammar.
type ContainerType string

const (
	TypeSingle  ContainerType = "SINGLE"
	TypeDouble  ContainerType = "DOUBLE"
	TypeInvalid ContainerType = "INVALID"
)

// noContainer is the sentinel the terminal writes when no container number
// was recorded for a crossing.
const noContainer = "N/A"

// singlePattern is the ISO-style container grammar used at the gate:
// 4 uppercase letters followed by 7 digits.
var singlePattern = regexp.MustCompile(`^[A-Z]{4}[0-9]{7}$`)

// FormatResult is the outcome of a container number format check.
type FormatResult struct {
	IsValid bool          `json:"is_valid"`
	Type    ContainerType `json:"type"`
	Reason  string        `json:"reason,omitempty"`
}

// ValidateFormat checks a container number against the single and double
// container grammars. A double container is two single tokens joined by "/",
// both sides validated independently.
func ValidateFormat(containerNo string) FormatResult {
	trimmed := strings.TrimSpace(containerNo)
	if trimmed == "" || trimmed == noContainer {
		return FormatResult{
			IsValid: false,
			Type:    TypeInvalid,
			Reason:  "No container number provided",
		}
	}

	if strings.Contains(trimmed, "/") {
		parts := strings.Split(trimmed, "/")
		if len(parts) != 2 {
			return FormatResult{
				IsValid: false,
				Type:    TypeInvalid,
				Reason:  "Double container must have exactly two parts",
			}
		}
		for _, part := range parts {
			if !singlePattern.MatchString(part) {
				return FormatResult{
					IsValid: false,
					Type:    TypeInvalid,
					Reason:  "Invalid double container part: " + part,
				}
			}
		}
		return FormatResult{IsValid: true, Type: TypeDouble}
	}

	if !singlePattern.MatchString(trimmed) {
		return FormatResult{
			IsValid: false,
			Type:    TypeInvalid,
			Reason:  "Container number must be 4 letters followed by 7 digits",
		}
	}
	return FormatResult{IsValid: true, Type: TypeSingle}
}
