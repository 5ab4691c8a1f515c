package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2/unstable"
	"go.yaml.in/yaml/v3"
)

const decoderSection = "decoder"

// decoderKeyOrder returns the decoder option names in the order they are written in data.
func decoderKeyOrder(data []byte, format Format) ([]string, error) {
	switch format {
	case FormatYAML:
		return yamlDecoderOrder(data)
	case FormatJSON:
		return jsonDecoderOrder(data)
	case FormatTOML:
		return tomlDecoderOrder(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func yamlDecoderOrder(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nil
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != decoderSection {
			continue
		}
		section := root.Content[i+1]
		if section.Kind != yaml.MappingNode {
			return nil, nil
		}
		keys := make([]string, 0, len(section.Content)/2)
		for j := 0; j+1 < len(section.Content); j += 2 {
			keys = append(keys, section.Content[j].Value)
		}
		return keys, nil
	}

	return nil, nil
}

// jsonKeys records the member names of a JSON object in document order.
type jsonKeys []string

func (k *jsonKeys) UnmarshalJSON(b []byte) error {
	d := json.NewDecoder(bytes.NewReader(b))
	tok, err := d.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil
	}

	for d.More() {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		*k = append(*k, name)

		var skip json.RawMessage
		if err := d.Decode(&skip); err != nil {
			return err
		}
	}

	return nil
}

func jsonDecoderOrder(data []byte) ([]string, error) {
	var doc struct {
		Decoder jsonKeys `json:"decoder"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return doc.Decoder, nil
}

// tomlDecoderOrder handles a [decoder] table, dotted decoder.key entries and an inline decoder table.
func tomlDecoderOrder(data []byte) ([]string, error) {
	var (
		p         unstable.Parser
		keys      []string
		inDecoder bool
		atRoot    = true
	)
	p.Reset(data)

	for p.NextExpression() {
		e := p.Expression()
		switch e.Kind {
		case unstable.Table, unstable.ArrayTable:
			parts := keyParts(e)
			atRoot = false
			inDecoder = e.Kind == unstable.Table && len(parts) == 1 && parts[0] == decoderSection
		case unstable.KeyValue:
			parts := keyParts(e)
			switch {
			case inDecoder && len(parts) > 0:
				keys = append(keys, parts[0])
			case atRoot && len(parts) == 2 && parts[0] == decoderSection:
				keys = append(keys, parts[1])
			case atRoot && len(parts) == 1 && parts[0] == decoderSection && e.Value().Kind == unstable.InlineTable:
				it := e.Value().Children()
				for it.Next() {
					if inner := keyParts(it.Node()); len(inner) > 0 {
						keys = append(keys, inner[0])
					}
				}
			}
		}
	}
	if err := p.Error(); err != nil {
		return nil, err
	}

	return uniqueKeys(keys), nil
}

func keyParts(n *unstable.Node) []string {
	switch n.Kind {
	case unstable.KeyValue, unstable.Table, unstable.ArrayTable:
	default:
		return nil
	}

	var parts []string
	it := n.Key()
	for it.Next() {
		parts = append(parts, string(it.Node().Data))
	}

	return parts
}

func uniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}

	return out
}
