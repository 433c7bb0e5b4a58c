package tracker

import (
	"regexp"
	"sort"
)

// Pattern families for asset identifiers embedded in content bodies. Keys
// look like "folder/uuid.ext" or "folder/slug-hash.ext"; every family
// captures the key portion in group 1. A body that matches no family simply
// yields no references.
var (
	// Direct storage URLs: https://storage.googleapis.com/<bucket>/<key>
	storageURLPattern = regexp.MustCompile(`https?://storage\.googleapis\.com/[^/\s"']+/([A-Za-z0-9_\-./]+\.[A-Za-z0-9]+)`)

	// Inline HTML image/source attributes: src="..." data-key="..."
	inlineAttrPattern = regexp.MustCompile(`(?:src|data-key|data-media-key)\s*=\s*["'](?:https?://[^/"']+/[^/"']+/)?([A-Za-z0-9_\-./]+\.[A-Za-z0-9]+)["']`)

	// Document-model image nodes: {"type":"image",..."key":"<key>"}
	docNodePattern = regexp.MustCompile(`"type"\s*:\s*"image"[^}]*?"key"\s*:\s*"([A-Za-z0-9_\-./]+\.[A-Za-z0-9]+)"`)

	// Markdown image syntax: ![alt](<url-or-key>)
	markdownPattern = regexp.MustCompile(`!\[[^\]]*\]\(\s*(?:https?://[^/)\s]+/[^/)\s]+/)?([A-Za-z0-9_\-./]+\.[A-Za-z0-9]+)\s*\)`)
)

var extractPatterns = []*regexp.Regexp{
	storageURLPattern,
	inlineAttrPattern,
	docNodePattern,
	markdownPattern,
}

// ExtractReferences scans a content body for storage keys across all pattern
// families and returns the deduplicated set, sorted for stable diffing.
func ExtractReferences(content string) []string {
	if content == "" {
		return nil
	}
	seen := make(map[string]struct{})
	for _, p := range extractPatterns {
		for _, match := range p.FindAllStringSubmatch(content, -1) {
			if len(match) > 1 && match[1] != "" {
				seen[match[1]] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
