package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		op        string
		threshold float64
		want      bool
	}{
		{"greater than true", 0.8, OperatorGreaterThan, 0.5, true},
		{"greater than false on equal", 0.5, OperatorGreaterThan, 0.5, false},
		{"less than", 0.2, OperatorLessThan, 0.5, true},
		{"greater or equal on equal", 0.5, OperatorGreaterOrEqual, 0.5, true},
		{"less or equal", 0.6, OperatorLessOrEqual, 0.5, false},
		{"equal", 3, OperatorEqual, 3, true},
		{"unknown operator never matches", 1, "~", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.value, tt.op, tt.threshold))
		})
	}
}

func TestValidOperator(t *testing.T) {
	for _, op := range Operators() {
		assert.True(t, ValidOperator(op), "operator %s", op)
	}
	assert.False(t, ValidOperator("!="))
	assert.False(t, ValidOperator(""))
}
