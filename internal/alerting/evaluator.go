package alerting

// Comparison operators supported by alert rules.
const (
	OperatorGreaterThan    = ">"
	OperatorLessThan       = "<"
	OperatorGreaterOrEqual = ">="
	OperatorLessOrEqual    = "<="
	OperatorEqual          = "=="
)

// Operators lists every supported operator, for validation and the API.
func Operators() []string {
	return []string{
		OperatorGreaterThan, OperatorLessThan,
		OperatorGreaterOrEqual, OperatorLessOrEqual,
		OperatorEqual,
	}
}

// ValidOperator reports whether op is a supported comparison operator.
func ValidOperator(op string) bool {
	switch op {
	case OperatorGreaterThan, OperatorLessThan,
		OperatorGreaterOrEqual, OperatorLessOrEqual, OperatorEqual:
		return true
	default:
		return false
	}
}

// Compare evaluates value against threshold. Unknown operators never
// match.
func Compare(value float64, op string, threshold float64) bool {
	switch op {
	case OperatorGreaterThan:
		return value > threshold
	case OperatorLessThan:
		return value < threshold
	case OperatorGreaterOrEqual:
		return value >= threshold
	case OperatorLessOrEqual:
		return value <= threshold
	case OperatorEqual:
		return value == threshold
	default:
		return false
	}
}
