// Package schema converts between the two on-disk shapes of a dataset.
//
// The legacy shape is the nested store.Dataset serialized as-is. The
// normalized shape stores flat entity tables under "tables" with a
// "schemaVersion" discriminator, and carries the nested form alongside as a
// mirror so a reader that cannot trust the tables can still recover the
// data through the legacy adapter.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/imkarma/pillars/internal/store"
)

// Shape names an on-disk representation.
type Shape string

const (
	Legacy     Shape = "legacy"
	Normalized Shape = "normalized"
)

// NormalizedVersion is the schemaVersion written by the normalized adapter.
const NormalizedVersion = 2

func (s Shape) IsValid() bool {
	return s == Legacy || s == Normalized
}

// Version is the number recorded next to a blob of this shape.
func (s Shape) Version() int {
	if s == Normalized {
		return NormalizedVersion
	}
	return 1
}

// Adapter reads and writes one shape.
type Adapter interface {
	Shape() Shape
	Decode(payload []byte) (*store.Dataset, error)
	Encode(ds *store.Dataset) ([]byte, error)
}

// AdapterFor returns the adapter for a shape. Unknown shapes get the
// legacy adapter.
func AdapterFor(s Shape) Adapter {
	if s == Normalized {
		return normalizedAdapter{}
	}
	return legacyAdapter{}
}

type header struct {
	SchemaVersion int `json:"schemaVersion"`
}

// Detect reads the discriminator of a payload. Any payload without the
// normalized version tag is legacy.
func Detect(payload []byte) (Shape, error) {
	var h header
	if err := json.Unmarshal(payload, &h); err != nil {
		return "", fmt.Errorf("detect shape: %w", err)
	}
	if h.SchemaVersion == NormalizedVersion {
		return Normalized, nil
	}
	return Legacy, nil
}

// legacyDoc accepts the flat session keys older files used next to the
// nested "sessions" object.
type legacyDoc struct {
	store.Dataset
	CurrentSession *store.FinishSession  `json:"currentSession,omitempty"`
	SessionHistory []store.FinishSession `json:"sessionHistory,omitempty"`
}

type legacyAdapter struct{}

func (legacyAdapter) Shape() Shape { return Legacy }

func (legacyAdapter) Decode(payload []byte) (*store.Dataset, error) {
	var doc legacyDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode legacy dataset: %w", err)
	}
	ds := doc.Dataset
	if ds.Sessions.Current == nil && doc.CurrentSession != nil {
		ds.Sessions.Current = doc.CurrentSession
	}
	if len(ds.Sessions.History) == 0 && len(doc.SessionHistory) > 0 {
		ds.Sessions.History = doc.SessionHistory
	}
	return &ds, nil
}

func (legacyAdapter) Encode(ds *store.Dataset) ([]byte, error) {
	data, err := json.Marshal(ds)
	if err != nil {
		return nil, fmt.Errorf("encode legacy dataset: %w", err)
	}
	return data, nil
}

type normalizedDoc struct {
	SchemaVersion int     `json:"schemaVersion"`
	Tables        *Tables `json:"tables"`
	store.Dataset
}

type normalizedAdapter struct{}

func (normalizedAdapter) Shape() Shape { return Normalized }

// Decode reads the tables, validates them and rebuilds the nested form.
// The embedded mirror is ignored here; it only matters on fallback.
func (normalizedAdapter) Decode(payload []byte) (*store.Dataset, error) {
	var doc normalizedDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode normalized dataset: %w", err)
	}
	if doc.SchemaVersion != NormalizedVersion {
		return nil, fmt.Errorf("decode normalized dataset: unsupported schema version %d", doc.SchemaVersion)
	}
	if doc.Tables == nil {
		return nil, &InconsistencyError{Problems: []string{"tables missing"}}
	}
	if err := doc.Tables.Validate(); err != nil {
		return nil, err
	}
	return Denormalize(doc.Tables), nil
}

// Encode refuses datasets whose tables would not validate, so a corrupt
// normalized blob is never written.
func (normalizedAdapter) Encode(ds *store.Dataset) ([]byte, error) {
	t := Normalize(ds)
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("encode normalized dataset: %w", err)
	}
	data, err := json.Marshal(normalizedDoc{
		SchemaVersion: NormalizedVersion,
		Tables:        t,
		Dataset:       *ds,
	})
	if err != nil {
		return nil, fmt.Errorf("encode normalized dataset: %w", err)
	}
	return data, nil
}

// Result describes how a payload was read.
type Result struct {
	Dataset  *store.Dataset
	Shape    Shape // shape to keep writing in
	Detected Shape // shape found on disk
	Migrated bool  // legacy payload that will be written normalized; never set with Fallback
	Fallback bool  // normalized tag present but tables unusable
	Problems []string
	Repairs  []string
}

// Load decodes a stored payload of either shape.
//
// A normalized payload whose tables fail validation is re-read as legacy.
// A legacy payload is migrated to normalized only if its normalized form
// validates; otherwise it stays legacy. Defaults are applied in every case.
// An error is returned only when the payload cannot be read as either shape.
func Load(payload []byte) (*Result, error) {
	detected, err := Detect(payload)
	if err != nil {
		return nil, err
	}
	res := &Result{Detected: detected}

	var ds *store.Dataset
	if detected == Normalized {
		ds, err = normalizedAdapter{}.Decode(payload)
		if err == nil {
			res.Shape = Normalized
		} else {
			res.Fallback = true
			res.Problems = append(res.Problems, problemsOf(err)...)
		}
	}

	if ds == nil {
		ds, err = legacyAdapter{}.Decode(payload)
		if err != nil {
			return nil, err
		}
	}

	res.Repairs = ApplyDefaults(ds)

	if res.Shape == "" {
		if verr := Normalize(ds).Validate(); verr != nil {
			res.Shape = Legacy
			res.Problems = append(res.Problems, problemsOf(verr)...)
		} else {
			res.Shape = Normalized
			res.Migrated = !res.Fallback
		}
	}

	res.Dataset = ds
	return res, nil
}

func problemsOf(err error) []string {
	var ie *InconsistencyError
	if errors.As(err, &ie) {
		return ie.Problems
	}
	return []string{err.Error()}
}
