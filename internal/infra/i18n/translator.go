package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var LocalesFS embed.FS

// DefaultLang is loaded first; other languages overlay it, so a missing key
// falls back to English rather than to the raw key.
const DefaultLang = "en"

type Translator struct {
	lang         string
	translations map[string]string
}

func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	if langCode == "" {
		langCode = DefaultLang
	}
	base, err := readLocale(fsys, DefaultLang)
	if err != nil {
		return nil, err
	}
	if langCode != DefaultLang {
		overlay, err := readLocale(fsys, langCode)
		if err != nil {
			return nil, err
		}
		for k, v := range overlay {
			base[k] = v
		}
	}
	return &Translator{lang: langCode, translations: base}, nil
}

func readLocale(fsys fs.FS, lang string) (map[string]string, error) {
	p := path.Join("locales", lang+".yaml")
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return nil, fmt.Errorf("read translation file %s: %w", p, err)
	}
	return parse(data)
}

func parse(data []byte) (map[string]string, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("parse translation file: %w", err)
	}
	if translations == nil {
		translations = map[string]string{}
	}
	return translations, nil
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	tr, err := parse(data)
	if err != nil {
		return nil, err
	}
	return &Translator{translations: tr}, nil
}

// T looks up key and formats it with args. Unknown keys come back verbatim.
func (t *Translator) T(key string, args ...any) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

func (t *Translator) Lang() string { return t.lang }
