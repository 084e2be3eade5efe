package config

import (
	"bytes"
	"fmt"

	"gopkg.in/ini.v1"
)

// INI parses and writes INI documents for koanf. Each section becomes a
// nested map keyed by the section name; keys are lower-cased. Comments are
// whole lines only, so '#' and ';' inside a value are kept.
type INI struct{}

// IniParser returns the koanf parser for .harvest files.
func IniParser() *INI {
	return &INI{}
}

// Unmarshal parses b into {"Section": {"key": "value"}}.
func (p *INI) Unmarshal(b []byte) (map[string]interface{}, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		InsensitiveKeys:     true,
		IgnoreInlineComment: true,
	}, b)
	if err != nil {
		return nil, fmt.Errorf("parse ini: %w", err)
	}

	out := make(map[string]interface{})
	for _, sec := range f.Sections() {
		keys := sec.Keys()
		if len(keys) == 0 {
			continue
		}
		m := make(map[string]interface{}, len(keys))
		for _, k := range keys {
			m[k.Name()] = k.Value()
		}
		out[sec.Name()] = m
	}
	return out, nil
}

// Marshal writes o, which must be one level of sections, back to INI.
func (p *INI) Marshal(o map[string]interface{}) ([]byte, error) {
	f := ini.Empty()
	for name, v := range o {
		values, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("section %q is %T, not a map", name, v)
		}
		sec, err := f.NewSection(name)
		if err != nil {
			return nil, err
		}
		for key, value := range values {
			if _, err := sec.NewKey(key, fmt.Sprint(value)); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
