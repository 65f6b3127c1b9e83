package core

import "testing"

func TestRegistry(t *testing.T) {
	Clear()
	t.Cleanup(Clear)

	Register(TableDefinition{
		Key: "b_table",
		Columns: []Column{
			{Name: "Price per Unit", Type: TypeNumeric},
		},
	})
	Register(TableDefinition{Key: "a_table", Columns: []Column{{Name: "id"}}})

	def, ok := Get("b_table")
	if !ok {
		t.Fatal("Get(b_table) not found")
	}
	if def.Columns[0].Name != "price_per_unit" {
		t.Errorf("column name = %q, want normalized", def.Columns[0].Name)
	}

	if _, ok := Get("missing"); ok {
		t.Error("Get(missing) found")
	}

	all := All()
	if len(all) != 2 || all[0].Key != "a_table" {
		t.Errorf("All() = %v, want sorted by key", all)
	}
}

func TestRegister_Panics(t *testing.T) {
	tests := []struct {
		name string
		defs []TableDefinition
	}{
		{
			name: "duplicate key",
			defs: []TableDefinition{{Key: "x"}, {Key: "x"}},
		},
		{
			name: "duplicate normalized column",
			defs: []TableDefinition{{Key: "y", Columns: []Column{{Name: "Age"}, {Name: " age "}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Clear()
			t.Cleanup(Clear)

			defer func() {
				if recover() == nil {
					t.Error("Register did not panic")
				}
			}()
			for _, d := range tt.defs {
				Register(d)
			}
		})
	}
}
