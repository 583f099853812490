// Package cms holds the document schemas edited in the studio and the store
// the documents live in.
package cms

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// FieldType is the type of a schema field.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeText      FieldType = "text"
	TypeSlug      FieldType = "slug"
	TypeReference FieldType = "reference"
	TypeNumber    FieldType = "number"
	TypeMarkdown  FieldType = "markdown"
)

// InputUploadWidget marks a string field edited through the image upload
// widget. Its value is the public URL returned by the upload endpoint.
const InputUploadWidget = "upload-widget"

// Field describes one document field.
type Field struct {
	Name        string
	Title       string
	Type        FieldType
	Description string

	Required bool
	// Min and Max bound string length (in characters) when non-zero.
	Min, Max int
	// Message replaces the default validation message.
	Message string

	// Source is the field a slug is generated from.
	Source string
	// To is the document type a reference points at.
	To string
	// Input names a custom editing widget.
	Input string
}

// Schema describes a document type.
type Schema struct {
	Name   string
	Title  string
	Type   string
	Fields []Field
}

// Field returns the named field.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// StartupSchema is the startup document type.
var StartupSchema = Schema{
	Name:  "startup",
	Title: "Startup",
	Type:  "document",
	Fields: []Field{
		{Name: "title", Type: TypeString},
		{Name: "slug", Type: TypeSlug, Source: "title"},
		{Name: "author", Type: TypeReference, To: "author"},
		{Name: "views", Type: TypeNumber},
		{Name: "description", Type: TypeText},
		{Name: "category", Type: TypeString, Min: 1, Max: 20, Required: true, Message: "Please enter a category"},
		{
			Name:        "image",
			Type:        TypeString,
			Title:       "Image",
			Description: "Upload an image to Bunny CDN",
			Required:    true,
			Input:       InputUploadWidget,
		},
		{Name: "pitch", Type: TypeMarkdown},
	},
}

// AuthorSchema is the author document type referenced by startups.
var AuthorSchema = Schema{
	Name:  "author",
	Title: "Author",
	Type:  "document",
	Fields: []Field{
		{Name: "name", Type: TypeString, Required: true},
		{Name: "username", Type: TypeString},
		{Name: "email", Type: TypeString},
		{Name: "bio", Type: TypeText},
	},
}

// FieldError is a single failed field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Schema string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return e.Schema + ": " + strings.Join(msgs, "; ")
}

// Validate checks values against the schema. Values are keyed by field name;
// strings are trimmed before checking.
func (s Schema) Validate(values map[string]any) error {
	verr := &ValidationError{Schema: s.Name}
	fail := func(f Field, def string) {
		msg := def
		if f.Message != "" {
			msg = f.Message
		}
		verr.Fields = append(verr.Fields, FieldError{Field: f.Name, Message: msg})
	}

	for _, f := range s.Fields {
		raw, present := values[f.Name]
		if !present || raw == nil {
			if f.Required {
				fail(f, "Required")
			}
			continue
		}

		if f.Type == TypeNumber {
			switch raw.(type) {
			case int, int64, float64:
			default:
				fail(f, "Must be a number")
			}
			continue
		}

		str, ok := raw.(string)
		if !ok {
			fail(f, "Must be a string")
			continue
		}
		str = strings.TrimSpace(str)
		n := utf8.RuneCountInString(str)
		switch {
		case f.Required && n == 0:
			fail(f, "Required")
		case n == 0:
		case f.Min > 0 && n < f.Min:
			fail(f, fmt.Sprintf("Must be at least %d characters", f.Min))
		case f.Max > 0 && n > f.Max:
			fail(f, fmt.Sprintf("Must be at most %d characters", f.Max))
		case f.Input == InputUploadWidget && !isAbsoluteURL(str):
			fail(f, "Must be an uploaded image URL")
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
