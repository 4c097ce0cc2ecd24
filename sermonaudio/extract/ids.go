package extract

import (
	"regexp"

	"github.com/tidwall/gjson"
)

var (
	sermonPathPattern  = regexp.MustCompile(`/sermons/(\d+)`)
	sermonFieldPattern = regexp.MustCompile(`"sermonID":\s*"?(\d+)"?`)
)

// IDs pulls sermon IDs out of an enumeration response, feed or page, in
// first-seen order without duplicates. Structured JSON is tried first; the
// textual patterns only run when it yields nothing.
func IDs(body []byte) []string {
	if ids := structuredIDs(body); len(ids) > 0 {
		return dedup(ids)
	}

	return dedup(textualIDs(body))
}

func structuredIDs(body []byte) []string {
	if !gjson.ValidBytes(body) {
		return nil
	}

	results := gjson.GetBytes(body, "results")
	if !results.IsArray() {
		return nil
	}

	var ids []string
	results.ForEach(func(_, item gjson.Result) bool {
		if id := item.Get("sermonID"); id.Exists() && id.String() != "" {
			ids = append(ids, id.String())
		}

		return true
	})

	return ids
}

func textualIDs(body []byte) []string {
	var ids []string
	for _, m := range sermonPathPattern.FindAllSubmatch(body, -1) {
		ids = append(ids, string(m[1]))
	}
	for _, m := range sermonFieldPattern.FindAllSubmatch(body, -1) {
		ids = append(ids, string(m[1]))
	}

	return ids
}

func dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}
