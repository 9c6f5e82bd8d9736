package models

import (
	"encoding/json"
	"fmt"
)

// Kind distinguishes files from directories in entries and change events.
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "dir"
)

// ChangeType is the wire discriminator of a ChangeEvent.
type ChangeType string

const (
	ChangeCreated     ChangeType = "created"
	ChangeChanged     ChangeType = "changed"
	ChangeDeleted     ChangeType = "deleted"
	ChangeBulkChanged ChangeType = "bulkChanged"
)

// ChangeEvent is a workspace change notification. The set of variants is
// closed: Created, Changed, Deleted and BulkChanged. Consumers switch on the
// concrete type.
type ChangeEvent interface {
	Type() ChangeType
	// AffectedPaths returns every workspace-relative path the event refers to.
	AffectedPaths() []string
	isChangeEvent()
}

// Created reports a new file or directory.
type Created struct {
	Path string
	Kind Kind
}

// Changed reports modified file content.
type Changed struct {
	Path string
}

// Deleted reports a removed file or directory.
type Deleted struct {
	Path string
	Kind Kind
}

// BulkChanged reports several content modifications coalesced in one
// debounce window.
type BulkChanged struct {
	Paths []string
}

func (Created) Type() ChangeType     { return ChangeCreated }
func (Changed) Type() ChangeType     { return ChangeChanged }
func (Deleted) Type() ChangeType     { return ChangeDeleted }
func (BulkChanged) Type() ChangeType { return ChangeBulkChanged }

func (e Created) AffectedPaths() []string     { return []string{e.Path} }
func (e Changed) AffectedPaths() []string     { return []string{e.Path} }
func (e Deleted) AffectedPaths() []string     { return []string{e.Path} }
func (e BulkChanged) AffectedPaths() []string { return append([]string(nil), e.Paths...) }

func (Created) isChangeEvent()     {}
func (Changed) isChangeEvent()     {}
func (Deleted) isChangeEvent()     {}
func (BulkChanged) isChangeEvent() {}

// changeWire is the JSON shape shared by every variant.
type changeWire struct {
	Type  ChangeType `json:"type"`
	Path  string     `json:"path,omitempty"`
	Kind  Kind       `json:"kind,omitempty"`
	Paths []string   `json:"paths,omitempty"`
}

func (e Created) MarshalJSON() ([]byte, error) {
	return json.Marshal(changeWire{Type: ChangeCreated, Path: e.Path, Kind: e.Kind})
}

func (e Changed) MarshalJSON() ([]byte, error) {
	return json.Marshal(changeWire{Type: ChangeChanged, Path: e.Path})
}

func (e Deleted) MarshalJSON() ([]byte, error) {
	return json.Marshal(changeWire{Type: ChangeDeleted, Path: e.Path, Kind: e.Kind})
}

func (e BulkChanged) MarshalJSON() ([]byte, error) {
	paths := e.Paths
	if paths == nil {
		paths = []string{}
	}
	return json.Marshal(changeWire{Type: ChangeBulkChanged, Paths: paths})
}

// UnmarshalChangeEvent decodes the JSON form produced by the variants'
// MarshalJSON methods.
func UnmarshalChangeEvent(data []byte) (ChangeEvent, error) {
	var w changeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode change event: %w", err)
	}

	switch w.Type {
	case ChangeCreated:
		if err := validKind(w.Kind); err != nil {
			return nil, err
		}
		return Created{Path: w.Path, Kind: w.Kind}, nil
	case ChangeChanged:
		return Changed{Path: w.Path}, nil
	case ChangeDeleted:
		if err := validKind(w.Kind); err != nil {
			return nil, err
		}
		return Deleted{Path: w.Path, Kind: w.Kind}, nil
	case ChangeBulkChanged:
		return BulkChanged{Paths: w.Paths}, nil
	default:
		return nil, fmt.Errorf("unknown change event type %q", w.Type)
	}
}

func validKind(k Kind) error {
	if k != KindFile && k != KindDir {
		return fmt.Errorf("unknown entry kind %q", k)
	}
	return nil
}
