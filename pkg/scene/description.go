package scene

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Section names, as they appear in scene files.
const (
	SectionSituation     = "situation"
	SectionControlDevice = "control_device"
	SectionRoadUser      = "road_user"
	SectionIntention     = "intention"
)

// Description is one scene as produced by the upstream scene describer.
// Every entry is a parenthesized, comma-separated tuple such as
// "(traffic_light, relevant, red, green)".
type Description struct {
	Situation     []string `json:"situation" yaml:"situation"`
	ControlDevice []string `json:"control_device" yaml:"control_device"`
	RoadUser      []string `json:"road_user" yaml:"road_user"`
	Intention     []string `json:"intention" yaml:"intention"`
}

// Len returns the total number of statements in the description.
func (d Description) Len() int {
	return len(d.Situation) + len(d.ControlDevice) + len(d.RoadUser) + len(d.Intention)
}

// Fingerprint hashes the statements of the description. Absent and empty
// sections hash alike; statement order is significant.
func (d Description) Fingerprint() string {
	canonical := Description{
		Situation:     nonNil(d.Situation),
		ControlDevice: nonNil(d.ControlDevice),
		RoadUser:      nonNil(d.RoadUser),
		Intention:     nonNil(d.Intention),
	}
	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
