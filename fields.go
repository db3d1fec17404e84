package cloudvfs

import (
	"strings"
	"time"
)

// FieldType is the value kind of a content field.
type FieldType int

const (
	FieldString FieldType = iota
	FieldNumeric32
	FieldNumeric64
	FieldBoolean
	FieldDateTime
)

func (t FieldType) String() string {
	switch t {
	case FieldNumeric32:
		return "numeric32"
	case FieldNumeric64:
		return "numeric64"
	case FieldBoolean:
		return "boolean"
	case FieldDateTime:
		return "datetime"
	default:
		return "string"
	}
}

// ContentField is one blob metadata column a host can display.
type ContentField struct {
	Name string
	Type FieldType

	// Value extracts the field. It reports false when the blob carries no
	// value for it.
	Value func(p *BlobProperties) (any, bool)
}

func stringField(name string, get func(p *BlobProperties) string) ContentField {
	return ContentField{Name: name, Type: FieldString, Value: func(p *BlobProperties) (any, bool) {
		v := get(p)
		return v, v != ""
	}}
}

func timeField(name string, get func(p *BlobProperties) time.Time) ContentField {
	return ContentField{Name: name, Type: FieldDateTime, Value: func(p *BlobProperties) (any, bool) {
		v := get(p)
		return v, !v.IsZero()
	}}
}

func boolField(name string, get func(p *BlobProperties) bool) ContentField {
	return ContentField{Name: name, Type: FieldBoolean, Value: func(p *BlobProperties) (any, bool) {
		return get(p), true
	}}
}

var contentFields = []ContentField{
	{Name: "Size", Type: FieldNumeric64, Value: func(p *BlobProperties) (any, bool) { return p.Size, true }},
	timeField("LastModified", func(p *BlobProperties) time.Time { return p.LastModified }),
	timeField("CreatedOn", func(p *BlobProperties) time.Time { return p.CreatedOn }),
	stringField("AccessTier", func(p *BlobProperties) string { return p.AccessTier }),
	boolField("AccessTierInferred", func(p *BlobProperties) bool { return p.AccessTierInferred }),
	stringField("BlobType", func(p *BlobProperties) string { return p.BlobType }),
	stringField("ContentType", func(p *BlobProperties) string { return p.ContentType }),
	stringField("ContentEncoding", func(p *BlobProperties) string { return p.ContentEncoding }),
	stringField("ContentLanguage", func(p *BlobProperties) string { return p.ContentLanguage }),
	stringField("CacheControl", func(p *BlobProperties) string { return p.CacheControl }),
	stringField("ContentMD5", func(p *BlobProperties) string { return p.ContentMD5 }),
	stringField("ETag", func(p *BlobProperties) string { return p.ETag }),
	stringField("LeaseState", func(p *BlobProperties) string { return p.LeaseState }),
	stringField("LeaseStatus", func(p *BlobProperties) string { return p.LeaseStatus }),
	stringField("CopyStatus", func(p *BlobProperties) string { return p.CopyStatus }),
	boolField("ServerEncrypted", func(p *BlobProperties) bool { return p.ServerEncrypted }),
	{Name: "MetadataCount", Type: FieldNumeric32, Value: func(p *BlobProperties) (any, bool) {
		return int32(len(p.Metadata)), true
	}},
}

// DefaultFields names the columns shown when a host has no saved layout.
var DefaultFields = []string{"Size", "LastModified", "AccessTier", "BlobType"}

// ContentFields returns the field table in display order.
func ContentFields() []ContentField {
	return append([]ContentField(nil), contentFields...)
}

// LookupField finds a field by name, ignoring case.
func LookupField(name string) (ContentField, bool) {
	for _, f := range contentFields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return ContentField{}, false
}
