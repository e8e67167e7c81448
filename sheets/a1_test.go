package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnLetter(t *testing.T) {
	tests := []struct {
		col  int
		want string
	}{
		{1, "A"},
		{2, "B"},
		{26, "Z"},
		{27, "AA"},
		{28, "AB"},
		{52, "AZ"},
		{53, "BA"},
		{702, "ZZ"},
		{703, "AAA"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ColumnLetter(tt.col))
		})
	}
}

func TestA1(t *testing.T) {
	assert.Equal(t, "'Sheet1'!B4", A1("Sheet1", 4, 2))
	assert.Equal(t, "'Q3 Audit'!AA10", A1("Q3 Audit", 10, 27))
}

func TestFindHeaderColumn(t *testing.T) {
	headers := []string{"ID", "Requirement", " Compliance Statement ", "Owner"}

	t.Run("exact match", func(t *testing.T) {
		assert.Equal(t, 2, FindHeaderColumn(headers, []string{"Requirement"}))
	})

	t.Run("case insensitive", func(t *testing.T) {
		assert.Equal(t, 2, FindHeaderColumn(headers, []string{"requirement"}))
	})

	t.Run("trims whitespace", func(t *testing.T) {
		assert.Equal(t, 3, FindHeaderColumn(headers, []string{"compliance statement"}))
	})

	t.Run("first matching candidate wins", func(t *testing.T) {
		assert.Equal(t, 3, FindHeaderColumn(headers, []string{"Compliance Statement", "Compliance_Statement"}))
	})

	t.Run("falls through candidates", func(t *testing.T) {
		assert.Equal(t, 3, FindHeaderColumn(headers, []string{"Compliance_Statement", "Compliance Statement"}))
	})

	t.Run("not found", func(t *testing.T) {
		assert.Equal(t, 0, FindHeaderColumn(headers, []string{"Status"}))
	})

	t.Run("empty headers", func(t *testing.T) {
		assert.Equal(t, 0, FindHeaderColumn(nil, []string{"Requirement"}))
	})
}
