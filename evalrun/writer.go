package evalrun

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// csvColumns is the fixed summary column order.
var csvColumns = []string{
	"task_id",
	"success_compile",
	"success_tests",
	"success_behaviour",
	"success_static",
	"steps",
	"notes",
	"chat_path",
}

// WriteJSON saves results as a 2-space indented JSON array, creating
// parent directories as needed.
func WriteJSON(results []Result, path string) error {
	if results == nil {
		results = []Result{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating summary directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// WriteCSV saves results as a CSV table with a fixed header row.
func WriteCSV(results []Result, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating summary directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating summary file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvColumns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range results {
		row := []string{
			r.TaskID,
			strconv.FormatBool(r.SuccessCompile),
			strconv.FormatBool(r.SuccessTests),
			strconv.FormatBool(r.SuccessBehaviour),
			strconv.FormatBool(r.SuccessStatic),
			strconv.Itoa(r.Steps),
			r.Notes,
			r.ChatPath,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing row for %s: %w", r.TaskID, err)
		}
	}
	w.Flush()
	return w.Error()
}
