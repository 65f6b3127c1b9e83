package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseDataset(t *testing.T) {
	input := "Transaction ID,Date,Age\n1,2023-11-24,34\n2,2023-02-27\n"

	ds, err := ParseDataset(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseDataset() error = %v", err)
	}

	if got := len(ds.Columns); got != 3 {
		t.Errorf("len(Columns) = %d, want 3", got)
	}
	if ds.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", ds.Len())
	}
	if got := ds.Cell(1, 2); got != "" {
		t.Errorf("Cell(1, 2) on short row = %q, want empty", got)
	}
	if got := ds.Cell(0, 2); got != "34" {
		t.Errorf("Cell(0, 2) = %q, want 34", got)
	}
}

func TestParseDataset_HeaderOnly(t *testing.T) {
	ds, err := ParseDataset(strings.NewReader("a,b\n"))
	if err != nil {
		t.Fatalf("ParseDataset() error = %v", err)
	}
	if ds.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ds.Len())
	}
}

func TestParseDataset_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too many fields", "a,b\n1,2,3\n"},
		{"bare quote", "a,b\n\"1,2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDataset(strings.NewReader(tt.input)); err == nil {
				t.Error("ParseDataset() error = nil, want error")
			}
		})
	}
}

func TestReadDataset_StripsBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retail_sales_dataset.csv")
	content := "\xEF\xBB\xBFTransaction ID,Age\n1,34\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	ds, err := ReadDataset(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadDataset() error = %v", err)
	}
	if ds.Columns[0] != "Transaction ID" {
		t.Errorf("Columns[0] = %q, want BOM stripped", ds.Columns[0])
	}
	if ds.Source != "retail_sales_dataset.csv" {
		t.Errorf("Source = %q", ds.Source)
	}
}

func TestReadDataset_MissingFile(t *testing.T) {
	_, err := ReadDataset(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	if err == nil {
		t.Fatal("ReadDataset() error = nil, want error")
	}
	if got := MapError(err).Code; got != "LOAD003" {
		t.Errorf("MapError code = %s, want LOAD003", got)
	}
}

func TestDataset_WithConstantColumn(t *testing.T) {
	ds := &Dataset{
		Columns: []string{"a"},
		Rows:    [][]string{{"1"}, {}},
		Source:  "x.csv",
	}

	stamped := ds.WithConstantColumn("ds", "2024-01-31")

	if len(ds.Columns) != 1 {
		t.Errorf("receiver modified: %v", ds.Columns)
	}
	if !stamped.HasColumn("DS") {
		t.Error("HasColumn(DS) = false, want true")
	}
	for i := range stamped.Rows {
		if got := stamped.Cell(i, 1); got != "2024-01-31" {
			t.Errorf("row %d stamp = %q", i, got)
		}
	}
	if stamped.Source != "x.csv" {
		t.Errorf("Source = %q", stamped.Source)
	}
}

func TestWrapForStreaming_CountsRawBytes(t *testing.T) {
	r, counter := WrapForStreaming(strings.NewReader("\xEF\xBB\xBFab"))

	buf := make([]byte, 16)
	var got []byte
	for {
		n, err := r.Read(buf)
		got = append(got, buf[:n]...)
		if err != nil {
			break
		}
	}

	if string(got) != "ab" {
		t.Errorf("read %q, want %q", got, "ab")
	}
	if counter.BytesRead() != 5 {
		t.Errorf("BytesRead() = %d, want 5", counter.BytesRead())
	}
}

func TestBOMSkippingReader_ShortInput(t *testing.T) {
	r := NewBOMSkippingReader(strings.NewReader("a"))
	buf := make([]byte, 4)
	n, _ := r.Read(buf)
	if string(buf[:n]) != "a" {
		t.Errorf("read %q, want a", buf[:n])
	}
}

func TestParseDataset_ReplacesIllFormedUTF8(t *testing.T) {
	r, _ := WrapForStreaming(strings.NewReader("Product Category\nBeaut\xE9\n"))

	ds, err := ParseDataset(r)
	if err != nil {
		t.Fatalf("ParseDataset() error = %v", err)
	}
	if got := ds.Cell(0, 0); got != "Beaut�" {
		t.Errorf("cell = %q, want replacement character", got)
	}
}
