// Package checkpoint saves the inventory of an interrupted compaction run so
// the run can be resumed without rescanning.
package checkpoint

// Metadata describes a saved checkpoint.
type Metadata struct {
	Version   int    `json:"version"`
	Root      string `json:"root"`
	RootHash  string `json:"root_hash"`
	Mode      string `json:"mode"`
	RunID     string `json:"run_id"`
	CreatedAt string `json:"created_at"`
	Processed int    `json:"processed"`
	Remaining int    `json:"remaining"`
}
