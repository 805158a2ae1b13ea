// Package output provides utilities for formatting and writing cash-flow schedules.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iwvelando/land-cashflow/pkg/constants"
	"github.com/iwvelando/land-cashflow/pkg/schedule"
	"github.com/iwvelando/land-cashflow/pkg/validation"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// ContentType returns the MIME type of an output format.
func ContentType(format string) string {
	switch format {
	case constants.OutputFormatCSV:
		return "text/csv"
	case constants.OutputFormatJSON:
		return "application/json"
	case constants.OutputFormatYAML:
		return "application/yaml"
	case constants.OutputFormatMsgpack:
		return "application/msgpack"
	case constants.OutputFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension returns the file extension of an output format.
func Extension(format string) string {
	switch format {
	case constants.OutputFormatPretty:
		return "txt"
	case constants.OutputFormatMsgpack:
		return "msgpack"
	default:
		return format
	}
}

// Write renders the schedule to w in the given format.
func Write(w io.Writer, s *schedule.Schedule, format string) error {
	if err := validation.ValidateOutputFormat(format); err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("schedule is required")
	}

	switch format {
	case constants.OutputFormatPretty:
		return Pretty(w, s)
	case constants.OutputFormatCSV:
		return CSV(w, s)
	case constants.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case constants.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case constants.OutputFormatMsgpack:
		return msgpack.NewEncoder(w).Encode(s)
	case constants.OutputFormatXLSX:
		f, err := Workbook(s)
		if err != nil {
			return err
		}
		defer func() {
			_ = f.Close()
		}()
		_, err = f.WriteTo(w)
		return err
	}
	return nil
}
