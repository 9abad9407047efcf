package dockerhost

import "strings"

// ImageRef joins name and tag, defaulting the tag to latest.
func ImageRef(name, tag string) string {
	if tag == "" {
		tag = "latest"
	}
	return name + ":" + tag
}

// RemoteRef qualifies an image reference with a registry host or namespace.
// A trailing slash on registry is ignored.
func RemoteRef(registry, name, tag string) string {
	registry = strings.TrimRight(strings.TrimSpace(registry), "/")
	if registry == "" {
		return ImageRef(name, tag)
	}
	return registry + "/" + ImageRef(name, tag)
}
