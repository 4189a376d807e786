package model

import (
	"encoding/json"
	"errors"
)

const DocumentVersion = "1.0"

type Metadata struct {
	Version    string `json:"version"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
	ExportedAt string `json:"exported_at,omitempty"`
	Total      int    `json:"total,omitempty"`
}

// Document is the full persisted schedule set.
type Document struct {
	Schedules []Schedule `json:"schedules"`
	Metadata  Metadata   `json:"metadata"`
}

// Clone deep-copies the schedule list.
func (d Document) Clone() Document {
	out := Document{Metadata: d.Metadata, Schedules: make([]Schedule, len(d.Schedules))}
	for i, s := range d.Schedules {
		out.Schedules[i] = s.Clone()
	}
	return out
}

// NewDocument returns a document holding only the default schedule.
func NewDocument(now string) Document {
	return Document{
		Schedules: []Schedule{DefaultSchedule()},
		Metadata: Metadata{
			Version:   DocumentVersion,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// DecodeDocument parses a stored document. A bare schedule object (the
// single-schedule layout of early versions) is wrapped into the array form
// with id "1".
func DecodeDocument(data []byte) (Document, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return Document{}, err
	}

	if _, ok := probe["schedules"]; !ok {
		if _, single := probe["event_name"]; !single {
			return Document{}, errors.New("document has neither schedules nor event_name")
		}
		var s Schedule
		if err := json.Unmarshal(data, &s); err != nil {
			return Document{}, err
		}
		s.ID = "1"
		return Document{
			Schedules: []Schedule{s},
			Metadata:  Metadata{Version: DocumentVersion},
		}, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, err
	}
	if doc.Schedules == nil {
		doc.Schedules = []Schedule{}
	}
	return doc, nil
}

// EncodeDocument renders the document as indented JSON.
func EncodeDocument(doc Document) ([]byte, error) {
	if doc.Schedules == nil {
		doc.Schedules = []Schedule{}
	}
	return json.MarshalIndent(doc, "", "  ")
}
