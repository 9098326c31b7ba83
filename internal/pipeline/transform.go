package pipeline

import "fmt"

// Mode selects how the transform engine shapes an event into an
// OutputRecord, per spec.md §3.4/§4.4.
type Mode string

const (
	ModeTemplate Mode = "template"
	ModeFields   Mode = "fields"
	ModeCode     Mode = "code" // reserved; the engine renders it as the raw template and logs a warning
)

// Template names the built-in rendering used by ModeTemplate.
type Template string

const (
	TemplateTrade     Template = "trade"
	TemplateTransfer  Template = "transfer"
	TemplateMigration Template = "migration"
	TemplateRaw       Template = "raw"
)

// FieldSpec is one output field under ModeFields: a dotted source path
// plus an ordered list of named pipes applied to the resolved value.
type FieldSpec struct {
	Name   string
	Path   string
	Pipes  []string
}

// Transform is a pipeline's reshaping configuration.
type Transform struct {
	Mode     Mode
	Template Template  // for ModeTemplate
	Fields   []FieldSpec // for ModeFields
}

func (t Transform) Validate() error {
	switch t.Mode {
	case ModeTemplate:
		switch t.Template {
		case TemplateTrade, TemplateTransfer, TemplateMigration, TemplateRaw:
		default:
			return fmt.Errorf("transform: unknown template %q", t.Template)
		}
	case ModeFields:
		if len(t.Fields) == 0 {
			return fmt.Errorf("transform: fields mode requires at least one field")
		}
		for _, f := range t.Fields {
			if f.Name == "" || f.Path == "" {
				return fmt.Errorf("transform: field spec requires name and path")
			}
		}
	case ModeCode:
		// reserved; rendered as raw, nothing to validate.
	default:
		return fmt.Errorf("transform: unknown mode %q", t.Mode)
	}
	return nil
}
