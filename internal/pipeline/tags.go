package pipeline

import "github.com/speedwagon-io/homechecks/internal/model"

// Layout says which entity attributes surface as tags.
type Layout struct {
	// TagPrefix is prepended to every tag key, e.g. "sensor_".
	TagPrefix string
	// Inherit tags are attached to the entity and handed down to its children.
	Inherit []string
	// Own tags are attached to the entity's own observations only.
	Own []string
}

func Tag(key, value string) string {
	return key + ":" + value
}

// BuildTags returns inherited followed by one tag per present key.
// Absent attributes are skipped. The result never aliases inherited.
func BuildTags(inherited []string, e *model.Entity, prefix string, keys ...string) []string {
	tags := make([]string, 0, len(inherited)+len(keys))
	tags = append(tags, inherited...)
	for _, k := range keys {
		if v, ok := e.Attr(k).Get(); ok {
			tags = append(tags, Tag(prefix+k, v))
		}
	}
	return tags
}

func cloneTags(tags []string) []string {
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
