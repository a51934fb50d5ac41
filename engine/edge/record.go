package edge

import (
	"encoding/json"

	"github.com/beakerflow/beaker/engine/beaker"
)

// ErrorRecord is the fixed schema written to error-routed beakers: the
// failing item, the error's message, and a best-effort class label.
type ErrorRecord struct {
	Item             json.RawMessage `json:"item"`
	ExceptionMessage string          `json:"exception_message"`
	ExceptionClass   string          `json:"exception_class_name"`
}

// ErrorSchema is the well-known schema every error-map destination must
// declare; Graph construction rejects any other schema on those beakers.
var ErrorSchema beaker.Schema = beaker.NewTypedSchema[ErrorRecord]("beaker.Error", nil)
