// Package action extracts the action tags a model embeds in its replies and
// carries them out on the local machine.
package action

import "fmt"

// Type is the closed set of actions the companion can perform.
type Type string

const (
	OpenApp     Type = "open_app"
	OpenFolder  Type = "open_folder"
	OpenFile    Type = "open_file"
	SearchFiles Type = "search_files"
	PlayMedia   Type = "play_media"
	GetDatetime Type = "get_datetime"
	YouTube     Type = "youtube"
	PlayMusic   Type = "play_music"
	Google      Type = "google"
	OpenWebsite Type = "open_website"
)

// Types lists every action type.
var Types = []Type{
	OpenApp, OpenFolder, OpenFile, SearchFiles, PlayMedia,
	GetDatetime, YouTube, PlayMusic, Google, OpenWebsite,
}

// ParseType validates s as an action type.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown action type %q", s)
}

// Action is one requested action with its parameters.
type Action struct {
	Type   Type              `json:"type"`
	Params map[string]string `json:"params"`
}

// Param keys.
const (
	ParamApp         = "app"
	ParamFolder      = "folder"
	ParamPath        = "path"
	ParamQuery       = "query"
	ParamDirectory   = "directory"
	ParamFileType    = "file_type"
	ParamFilePath    = "file_path"
	ParamSearchQuery = "search_query"
	ParamURL         = "url"
)
