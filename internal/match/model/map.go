package model

import (
	"encoding/json"

	appErr "codebattle/pkg/errors"
)

// Cell is one board coordinate as the judge emits it: [x, y].
type Cell [2]int

// MapData is a generated match map. Walls and Coins must both be non-empty
// for the map to be playable.
type MapData struct {
	Walls []Cell `json:"walls"`
	Coins []Cell `json:"coins"`
}

// ParseMapData decodes and validates one judge init output block.
func ParseMapData(raw []byte) (MapData, error) {
	var m MapData
	if err := json.Unmarshal(raw, &m); err != nil {
		return MapData{}, appErr.Wrapf(err, appErr.SandboxOutputBroken, "decode map data failed")
	}
	if err := m.Validate(); err != nil {
		return MapData{}, err
	}
	return m, nil
}

// Validate checks the playability invariant.
func (m MapData) Validate() error {
	if len(m.Walls) == 0 {
		return appErr.New(appErr.InvalidMap).WithMessage("map has no walls")
	}
	if len(m.Coins) == 0 {
		return appErr.New(appErr.InvalidMap).WithMessage("map has no coins")
	}
	return nil
}

// JSON returns the canonical JSON form stored in the room record.
func (m MapData) JSON() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", appErr.Wrap(err, appErr.InternalServerError)
	}
	return string(data), nil
}
