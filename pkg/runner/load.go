package runner

import (
	"drivelogic-hq/reasoner/pkg/scene"
)

// LoadScenes reads a scene file and returns its scenes in scene-id order.
func LoadScenes(path string) ([]Scene, error) {
	descs, order, err := scene.LoadFile(path)
	if err != nil {
		return nil, err
	}
	scenes := make([]Scene, 0, len(order))
	for _, id := range order {
		scenes = append(scenes, Scene{ID: id, Description: descs[id]})
	}
	return scenes, nil
}
