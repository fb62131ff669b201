// Package language holds the transcription languages the streaming backend
// can be asked for.
package language

import "sort"

// Default is the language sent when none is configured.
const Default = "ja"

type Language struct {
	Code       string // ISO 639-1, sent as ?language=
	Name       string
	NativeName string
}

// Unset is the empty code: the language parameter is left out and the
// backend picks its own.
var Unset = Language{Code: "", Name: "Backend default"}

var languages = map[string]Language{
	"ja": {"ja", "Japanese", "日本語"},
	"en": {"en", "English", "English"},
	"zh": {"zh", "Chinese", "中文"},
	"ko": {"ko", "Korean", "한국어"},
	"es": {"es", "Spanish", "Español"},
	"fr": {"fr", "French", "Français"},
	"de": {"de", "German", "Deutsch"},
	"it": {"it", "Italian", "Italiano"},
	"pt": {"pt", "Portuguese", "Português"},
	"ru": {"ru", "Russian", "Русский"},
	"nl": {"nl", "Dutch", "Nederlands"},
	"pl": {"pl", "Polish", "Polski"},
	"sv": {"sv", "Swedish", "Svenska"},
	"tr": {"tr", "Turkish", "Türkçe"},
	"uk": {"uk", "Ukrainian", "Українська"},
	"ar": {"ar", "Arabic", "العربية"},
	"hi": {"hi", "Hindi", "हिन्दी"},
	"hy": {"hy", "Armenian", "Հայերեն"},
	"id": {"id", "Indonesian", "Bahasa Indonesia"},
	"ms": {"ms", "Malay", "Bahasa Melayu"},
	"th": {"th", "Thai", "ไทย"},
	"vi": {"vi", "Vietnamese", "Tiếng Việt"},
	"tl": {"tl", "Tagalog", "Tagalog"},
}

// Lookup returns the language for code. The empty code resolves to Unset.
func Lookup(code string) (Language, bool) {
	if code == "" {
		return Unset, true
	}
	lang, ok := languages[code]
	return lang, ok
}

func IsValidCode(code string) bool {
	_, ok := Lookup(code)
	return ok
}

// Label renders code for menus, e.g. "Japanese (日本語)".
func Label(code string) string {
	lang, ok := Lookup(code)
	if !ok {
		return code
	}
	if lang.NativeName == "" || lang.NativeName == lang.Name {
		return lang.Name
	}
	return lang.Name + " (" + lang.NativeName + ")"
}

// List returns the known languages with Default first, the rest by name.
func List() []Language {
	result := make([]Language, 0, len(languages))
	for _, lang := range languages {
		if lang.Code != Default {
			result = append(result, lang)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return append([]Language{languages[Default]}, result...)
}
