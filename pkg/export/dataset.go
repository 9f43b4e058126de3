package export

// Dataset defines tabular export content. MinWidths optionally pins a
// minimum column width (in characters) per header for renderers that size
// columns to their content.
type Dataset struct {
	Headers   []string
	Rows      []map[string]string
	MinWidths map[string]float64
}
