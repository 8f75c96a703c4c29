package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"cellmlhub/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// record is the persisted envelope around one entity payload.
type record struct {
	model.VersionedRecord
	Kind   model.Kind      `json:"kind"`
	Entity json.RawMessage `json:"entity"`
}

func EncodeEntity(e model.Entity) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", model.RefOf(e), err)
	}
	return json.Marshal(record{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		Kind:            e.Kind(),
		Entity:          payload,
	})
}

func DecodeEntity(data []byte) (model.Entity, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if err := checkVersion(rec.VersionedRecord); err != nil {
		return nil, err
	}
	e, err := model.New(rec.Kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rec.Entity, e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", rec.Kind, err)
	}
	return e, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
