package types

import "fmt"

// ColType is the set of scalar column types the engine packs into fixed-width
// tuple layouts.
type ColType uint8

const (
	ColTypeInt32 ColType = iota
	ColTypeFloat32
	ColTypeString
)

func (t ColType) String() string {
	switch t {
	case ColTypeInt32:
		return "INT32"
	case ColTypeFloat32:
		return "FLOAT32"
	case ColTypeString:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// ColMeta describes one column of a table: its logical name, scalar type,
// byte width, and its offset inside the table's packed tuple layout.
type ColMeta struct {
	Table   string  `json:"table"`
	Name    string  `json:"name"`
	Type    ColType `json:"type"`
	Len     int     `json:"len"`
	Offset  int     `json:"offset"`
	Indexed bool    `json:"indexed"`
}

// IndexMeta is a composite secondary index: an ordered list of column names
// forming the key, plus the total byte width of that key.
type IndexMeta struct {
	Name     string   `json:"name"`
	Table    string   `json:"table"`
	Columns  []string `json:"columns"`
	KeyWidth int      `json:"key_width"`
	FileID   uint32   `json:"file_id"`
}

// FileName returns the on-disk file name for this composite index, following
// the convention "<table>.<col1>_..._<coln>.idx".
func (im IndexMeta) FileName() string {
	name := im.Table + "."
	for i, c := range im.Columns {
		if i > 0 {
			name += "_"
		}
		name += c
	}
	return name + ".idx"
}

// TabMeta is the full metadata for one table: its ordered column list, plus
// the indexes declared over it.
type TabMeta struct {
	Name       string      `json:"name"`
	Cols       []ColMeta   `json:"cols"`
	Indexes    []IndexMeta `json:"indexes"`
	RecordSize int         `json:"record_size"`
	HeapFileID uint32      `json:"heap_file_id"`
}

// ColByName returns the column metadata for name, or an error if the table
// has no such column.
func (t TabMeta) ColByName(name string) (ColMeta, error) {
	for _, c := range t.Cols {
		if c.Name == name {
			return c, nil
		}
	}
	return ColMeta{}, fmt.Errorf("column %q not found in table %q", name, t.Name)
}

// IndexByColumns returns the index metadata matching the given ordered column
// list, or an error if no such composite index exists.
func (t TabMeta) IndexByColumns(cols []string) (IndexMeta, error) {
	for _, im := range t.Indexes {
		if sameColumns(im.Columns, cols) {
			return im, nil
		}
	}
	return IndexMeta{}, fmt.Errorf("no index on columns %v of table %q", cols, t.Name)
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ComputeLayout assigns Offset to every column in order and sets RecordSize
// to the resulting packed tuple width. Called once when a table is created.
func (t *TabMeta) ComputeLayout() {
	offset := 0
	for i := range t.Cols {
		t.Cols[i].Offset = offset
		offset += t.Cols[i].Len
	}
	t.RecordSize = offset
}
