package services

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match them with errors.Is on anything returned by the engine.
var (
	ErrValidation    = errors.New("invalid export request")
	ErrRenderTimeout = errors.New("render timed out")
	ErrRenderProcess = errors.New("rendering engine failed")
	ErrResource      = errors.New("template storage failed")
	ErrNotFound      = errors.New("quotation not found")
)

// Export stages reported in ExportError.Stage.
const (
	StageSettings = "settings"
	StageFetch    = "fetch"
	StageQR       = "qr"
	StageDocument = "document"
	StageRender   = "render"
	StagePackage  = "package"
)

// ExportError carries enough context for a caller to report a failed export
// to the end user.
type ExportError struct {
	Kind        error
	QuotationID string
	Format      string
	Stage       string
	Err         error
}

func (e *ExportError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.QuotationID != "" {
		fmt.Fprintf(&b, " (quotation %s", e.QuotationID)
		if e.Format != "" {
			fmt.Fprintf(&b, ", %s", e.Format)
		}
		if e.Stage != "" {
			fmt.Fprintf(&b, ", stage %s", e.Stage)
		}
		b.WriteString(")")
	} else if e.Stage != "" {
		fmt.Fprintf(&b, " (stage %s)", e.Stage)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ExportError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ValidationError lists every hard error found while resolving a request.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return "invalid export settings: " + strings.Join(e.Errors, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsRetryable reports whether the failed operation may succeed if repeated.
// Only render timeouts qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRenderTimeout)
}

func asExportError(err error) (*ExportError, bool) {
	var ee *ExportError
	ok := errors.As(err, &ee)
	return ee, ok
}

// withContext attaches quotation/format/stage context to err, keeping an
// existing kind when err already is an ExportError.
func withContext(err error, kind error, quotationID, format, stage string) error {
	if err == nil {
		return nil
	}
	var ee *ExportError
	if errors.As(err, &ee) {
		out := *ee
		if out.QuotationID == "" {
			out.QuotationID = quotationID
		}
		if out.Format == "" {
			out.Format = format
		}
		if out.Stage == "" {
			out.Stage = stage
		}
		return &out
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return &ExportError{Kind: kind, QuotationID: quotationID, Format: format, Stage: stage, Err: err}
}
