package parser

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
)

func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestXLSXParse(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"Date", "Description", "Amount", "Reference"},
		{"2026-02-03", "JOLLIBEE AYALA", "-250.00", "X-001"},
		{"2026-02-05", "SALARY FEBRUARY", "25000.00", "X-002"},
	})

	records, err := NewXLSXParser().Parse(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "JOLLIBEE AYALA", records[0].Description)
	assert.Equal(t, model.KindExpense, records[0].Kind)
	assert.Equal(t, "250", records[0].Amount.String())

	assert.Equal(t, model.KindIncome, records[1].Kind)
	assert.Equal(t, "X-002", records[1].Reference)
}

func TestXLSXSkipsUnusableRows(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"Date", "Description", "Amount"},
		{"2026-02-03", "GRAB RIDE", "-185.00"},
		{"not a date", "GHOST ROW", "-10.00"},
		{"2026-02-04", "NO AMOUNT", ""},
	})

	records, err := NewXLSXParser().Parse(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "GRAB RIDE", records[0].Description)
}

func TestXLSXParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "not a workbook", data: []byte("plain text, not a zip")},
		{name: "header only", data: buildWorkbook(t, [][]any{{"Date", "Description", "Amount"}})},
		{name: "missing columns", data: buildWorkbook(t, [][]any{
			{"Foo", "Bar"},
			{"a", "b"},
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewXLSXParser().Parse(context.Background(), tt.data)
			require.Error(t, err)

			var parseErr *common.ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, "xlsx", parseErr.Format)
		})
	}
}
