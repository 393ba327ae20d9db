package config

import "gopkg.in/yaml.v3"

// Boolean fields that default to true need to know whether the user wrote them.

func (n *NotificationsConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain NotificationsConfig
	var raw plain
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*n = NotificationsConfig(raw)
	n.enabledSpecified = hasKey(value, "enabled")
	n.persistSpecified = hasKey(value, "persist")
	return nil
}

func (h *HTTPConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain HTTPConfig
	var raw plain
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*h = HTTPConfig(raw)
	h.enabledSpecified = hasKey(value, "enabled")
	h.metricsSpecified = hasKey(value, "metrics")
	return nil
}

func hasKey(node *yaml.Node, key string) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}
