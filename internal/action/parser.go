package action

import (
	"regexp"
	"strings"
)

type tagRule struct {
	typ   Type
	param string
	re    *regexp.Regexp
}

func tag(name string, typ Type, param string) tagRule {
	return tagRule{
		typ:   typ,
		param: param,
		re:    regexp.MustCompile(`(?i)\[` + name + `:\s*([^\]\s][^\]]*)\]`),
	}
}

// tagRules is the extraction order: all matches of one tag type are
// returned, in order of appearance, before the next type is considered.
var tagRules = []tagRule{
	tag("OPEN_APP", OpenApp, ParamApp),
	tag("OPEN_FOLDER", OpenFolder, ParamFolder),
	tag("SEARCH_FILES", SearchFiles, ParamQuery),
	tag("PLAY_MEDIA", PlayMedia, ParamSearchQuery),
	tag("YOUTUBE", YouTube, ParamQuery),
	tag("PLAY_MUSIC", PlayMusic, ParamQuery),
	tag("GOOGLE", Google, ParamQuery),
	tag("OPEN_WEBSITE", OpenWebsite, ParamURL),
}

// Parse splits a model reply into its actions and the text left after every
// recognized tag is removed. Unknown or empty tags stay in the text.
// Parsing the returned text again yields no actions.
func Parse(raw string) ([]Action, string) {
	var actions []Action
	for _, r := range tagRules {
		for _, m := range r.re.FindAllStringSubmatch(raw, -1) {
			actions = append(actions, Action{
				Type:   r.typ,
				Params: map[string]string{r.param: strings.TrimSpace(m[1])},
			})
		}
	}

	// Removing one tag can splice its neighbours into a new one, so strip
	// until nothing matches.
	clean := raw
	for {
		next := clean
		for _, r := range tagRules {
			next = r.re.ReplaceAllLiteralString(next, "")
		}
		if next == clean {
			break
		}
		clean = next
	}

	return actions, strings.TrimSpace(clean)
}
