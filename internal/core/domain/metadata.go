package domain

import "encoding/json"

// Metadata keys recognised by the engine. Stores persist metadata as a
// single JSON object using these keys, so rows stay readable by any
// upstream tooling that treats metadata as an open bag.
const (
	MetaKeyType           = "type"
	MetaKeyFileName       = "file_name"
	MetaKeyFileID         = "file_id"
	MetaKeyPageLabel      = "page_label"
	MetaKeyThumbnailDocID = "thumbnail_doc_id"
	MetaKeySection        = "section"
	MetaKeyImageOrigin    = "image_origin"
	MetaKeyTableOrigin    = "table_origin"
	MetaKeyWindow         = "window"
	MetaKeyText           = "text"
)

// ChunkMetadata is the typed view of a chunk's metadata: the recognised
// fields as struct members, everything else in Extra. Unknown keys from
// upstream ingestion survive a round trip untouched.
type ChunkMetadata struct {
	// Type classifies the chunk content.
	Type ChunkType

	// FileName is the originating file's display name.
	FileName string

	// FileID identifies the originating file for scope filtering.
	FileID string

	// PageLabel is the page within the originating file.
	PageLabel string

	// ThumbnailDocID back-references a rendered page image chunk.
	// It is a reference, not ownership.
	ThumbnailDocID string

	// Section is the document section heading, when known.
	Section string

	// ImageOrigin is the source location for image chunks.
	ImageOrigin string

	// TableOrigin is the source location for table chunks.
	TableOrigin string

	// Window is the expanded context text around the chunk.
	Window string

	// Text is a redundant copy of the chunk text, kept so content can
	// be recovered from metadata alone if the text column is lost.
	Text string

	// Extra holds unrecognised keys from upstream ingestion.
	Extra map[string]any
}

// Field returns the metadata value for a JSON key, recognised or not.
func (m ChunkMetadata) Field(key string) (any, bool) {
	switch key {
	case MetaKeyType:
		if m.Type == "" {
			return nil, false
		}
		return string(m.Type), true
	case MetaKeyFileName:
		return stringField(m.FileName)
	case MetaKeyFileID:
		return stringField(m.FileID)
	case MetaKeyPageLabel:
		return stringField(m.PageLabel)
	case MetaKeyThumbnailDocID:
		return stringField(m.ThumbnailDocID)
	case MetaKeySection:
		return stringField(m.Section)
	case MetaKeyImageOrigin:
		return stringField(m.ImageOrigin)
	case MetaKeyTableOrigin:
		return stringField(m.TableOrigin)
	case MetaKeyWindow:
		return stringField(m.Window)
	case MetaKeyText:
		return stringField(m.Text)
	default:
		v, ok := m.Extra[key]
		return v, ok
	}
}

func stringField(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	return s, true
}

// MarshalJSON flattens the struct and Extra into one JSON object.
// Recognised fields win over same-named Extra entries.
func (m ChunkMetadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+10)
	for k, v := range m.Extra {
		out[k] = v
	}
	setIfNonEmpty(out, MetaKeyType, string(m.Type))
	setIfNonEmpty(out, MetaKeyFileName, m.FileName)
	setIfNonEmpty(out, MetaKeyFileID, m.FileID)
	setIfNonEmpty(out, MetaKeyPageLabel, m.PageLabel)
	setIfNonEmpty(out, MetaKeyThumbnailDocID, m.ThumbnailDocID)
	setIfNonEmpty(out, MetaKeySection, m.Section)
	setIfNonEmpty(out, MetaKeyImageOrigin, m.ImageOrigin)
	setIfNonEmpty(out, MetaKeyTableOrigin, m.TableOrigin)
	setIfNonEmpty(out, MetaKeyWindow, m.Window)
	setIfNonEmpty(out, MetaKeyText, m.Text)
	return json.Marshal(out)
}

// UnmarshalJSON pulls recognised keys into struct fields and keeps the
// rest in Extra.
func (m *ChunkMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = ChunkMetadata{}
	for k, v := range raw {
		s, isString := v.(string)
		switch {
		case k == MetaKeyType && isString:
			m.Type = ChunkType(s)
		case k == MetaKeyFileName && isString:
			m.FileName = s
		case k == MetaKeyFileID && isString:
			m.FileID = s
		case k == MetaKeyPageLabel && isString:
			m.PageLabel = s
		case k == MetaKeyThumbnailDocID && isString:
			m.ThumbnailDocID = s
		case k == MetaKeySection && isString:
			m.Section = s
		case k == MetaKeyImageOrigin && isString:
			m.ImageOrigin = s
		case k == MetaKeyTableOrigin && isString:
			m.TableOrigin = s
		case k == MetaKeyWindow && isString:
			m.Window = s
		case k == MetaKeyText && isString:
			m.Text = s
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]any)
			}
			m.Extra[k] = v
		}
	}
	return nil
}

func setIfNonEmpty(out map[string]any, key, value string) {
	if value != "" {
		out[key] = value
	}
}
