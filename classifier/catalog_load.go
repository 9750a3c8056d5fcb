package classifier

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	legacyPriority = 50
	defaultWeight  = 1.0
	maxPriority    = 100
)

//go:embed builtin_catalog.json
var builtinCatalog []byte

// CatalogFormat names the encoding of a catalog document.
type CatalogFormat string

const (
	FormatJSON CatalogFormat = "json"
	FormatYAML CatalogFormat = "yaml"
	FormatTOML CatalogFormat = "toml"
)

// FormatForPath picks a catalog format from the file extension.
func FormatForPath(path string) CatalogFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadCatalog reads and decodes the catalog at path. Individual malformed
// entries are skipped with a warning; only an unreadable or undecodable
// document is an error.
func LoadCatalog(path string, logger *zap.Logger) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CatalogLoadError{Path: path, Err: err}
	}
	cat, err := ParseCatalog(data, FormatForPath(path), logger)
	if err != nil {
		var le *CatalogLoadError
		if errors.As(err, &le) {
			le.Path = path
			return nil, le
		}
		return nil, &CatalogLoadError{Path: path, Err: err}
	}
	return cat, nil
}

// LoadBuiltinCatalog decodes the catalog compiled into the binary.
func LoadBuiltinCatalog(logger *zap.Logger) (*Catalog, error) {
	cat, err := ParseCatalog(builtinCatalog, FormatJSON, logger)
	if err != nil {
		return nil, &CatalogLoadError{Path: "builtin", Err: err}
	}
	return cat, nil
}

// ParseCatalog decodes a catalog document. Structured documents and the
// legacy shapes (plain string keywords, name-keyed categories) are detected
// automatically and produce the same in-memory Catalog.
func ParseCatalog(data []byte, format CatalogFormat, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		root *rawNode
		err  error
	)
	switch format {
	case FormatTOML:
		root, err = decodeTOML(data)
	case FormatJSON:
		root, err = decodeJSON(data)
	default:
		root, err = decodeYAML(data)
	}
	if err != nil {
		return nil, &CatalogLoadError{Err: err}
	}
	p := catalogParser{logger: logger}
	cat, err := p.parse(root)
	if err != nil {
		return nil, &CatalogLoadError{Err: err}
	}
	p.warnDuplicateMediumIDs(cat)
	return cat, nil
}

// warnDuplicateMediumIDs reports medium ids defined under more than one large
// category. Keyword scores for such ids are pooled under the first definition.
func (p catalogParser) warnDuplicateMediumIDs(cat *Catalog) {
	owner := make(map[string]string)
	for _, l := range cat.Large {
		for _, m := range l.Medium {
			first, seen := owner[m.ID]
			if !seen {
				owner[m.ID] = l.ID
				continue
			}
			p.logger.Warn("duplicate medium category id",
				zap.String("medium", m.ID),
				zap.String("large", l.ID),
				zap.String("first_large", first))
		}
	}
}

type rawKind int

const (
	rawNull rawKind = iota
	rawScalar
	rawList
	rawMap
)

// rawNode is an order-preserving document tree shared by the YAML/JSON and
// TOML decoders.
type rawNode struct {
	kind   rawKind
	value  string
	items  []*rawNode
	keys   []string
	fields []*rawNode
}

func (n *rawNode) get(keys ...string) *rawNode {
	if n == nil || n.kind != rawMap {
		return nil
	}
	for _, want := range keys {
		for i, k := range n.keys {
			if k == want && n.fields[i].kind != rawNull {
				return n.fields[i]
			}
		}
	}
	return nil
}

func (n *rawNode) has(key string) bool {
	return n.get(key) != nil
}

func (n *rawNode) str(keys ...string) string {
	v := n.get(keys...)
	if v == nil || v.kind != rawScalar {
		return ""
	}
	return strings.TrimSpace(v.value)
}

func decodeYAML(data []byte) (*rawNode, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc.Kind == 0 {
		return nil, errors.New("empty document")
	}
	return fromYAML(&doc), nil
}

func fromYAML(n *yaml.Node) *rawNode {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return &rawNode{kind: rawNull}
		}
		return fromYAML(n.Content[0])
	case yaml.AliasNode:
		return fromYAML(n.Alias)
	case yaml.SequenceNode:
		out := &rawNode{kind: rawList}
		for _, c := range n.Content {
			out.items = append(out.items, fromYAML(c))
		}
		return out
	case yaml.MappingNode:
		out := &rawNode{kind: rawMap}
		for i := 0; i+1 < len(n.Content); i += 2 {
			out.keys = append(out.keys, n.Content[i].Value)
			out.fields = append(out.fields, fromYAML(n.Content[i+1]))
		}
		return out
	default:
		if n.Tag == "!!null" {
			return &rawNode{kind: rawNull}
		}
		return &rawNode{kind: rawScalar, value: n.Value}
	}
}

func decodeJSON(data []byte) (*rawNode, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	root, err := readJSONValue(dec)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode document: trailing data")
	}
	return root, nil
}

func readJSONValue(dec *json.Decoder) (*rawNode, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			out := &rawNode{kind: rawList}
			for dec.More() {
				item, err := readJSONValue(dec)
				if err != nil {
					return nil, err
				}
				out.items = append(out.items, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return out, nil
		case '{':
			out := &rawNode{kind: rawMap}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				val, err := readJSONValue(dec)
				if err != nil {
					return nil, err
				}
				out.keys = append(out.keys, key)
				out.fields = append(out.fields, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return out, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	case nil:
		return &rawNode{kind: rawNull}, nil
	case string:
		return &rawNode{kind: rawScalar, value: t}, nil
	case json.Number:
		return &rawNode{kind: rawScalar, value: t.String()}, nil
	case bool:
		return &rawNode{kind: rawScalar, value: strconv.FormatBool(t)}, nil
	default:
		return &rawNode{kind: rawScalar, value: fmt.Sprint(t)}, nil
	}
}

func decodeTOML(data []byte) (*rawNode, error) {
	var doc map[string]any
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	order := make(map[string]int)
	for i, k := range md.Keys() {
		key := strings.Join(k, "\x00")
		if _, ok := order[key]; !ok {
			order[key] = i
		}
	}
	return fromTOML(doc, nil, order), nil
}

func fromTOML(v any, path []string, order map[string]int) *rawNode {
	switch val := v.(type) {
	case nil:
		return &rawNode{kind: rawNull}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		pos := func(k string) int {
			if p, ok := order[strings.Join(append(append([]string(nil), path...), k), "\x00")]; ok {
				return p
			}
			return math.MaxInt
		}
		sort.SliceStable(keys, func(i, j int) bool {
			pi, pj := pos(keys[i]), pos(keys[j])
			if pi == pj {
				return keys[i] < keys[j]
			}
			return pi < pj
		})
		out := &rawNode{kind: rawMap}
		for _, k := range keys {
			out.keys = append(out.keys, k)
			out.fields = append(out.fields, fromTOML(val[k], append(append([]string(nil), path...), k), order))
		}
		return out
	case []map[string]any:
		out := &rawNode{kind: rawList}
		for _, item := range val {
			out.items = append(out.items, fromTOML(item, path, order))
		}
		return out
	case []any:
		out := &rawNode{kind: rawList}
		for _, item := range val {
			out.items = append(out.items, fromTOML(item, path, order))
		}
		return out
	case string:
		return &rawNode{kind: rawScalar, value: val}
	case int64:
		return &rawNode{kind: rawScalar, value: strconv.FormatInt(val, 10)}
	case float64:
		return &rawNode{kind: rawScalar, value: strconv.FormatFloat(val, 'g', -1, 64)}
	case bool:
		return &rawNode{kind: rawScalar, value: strconv.FormatBool(val)}
	default:
		return &rawNode{kind: rawScalar, value: fmt.Sprint(val)}
	}
}

type catalogParser struct {
	logger *zap.Logger
}

func (p catalogParser) parse(root *rawNode) (*Catalog, error) {
	switch root.kind {
	case rawList:
		return p.parseLargeList(root), nil
	case rawMap:
		if cats := root.get("categories"); cats != nil {
			if cats.kind != rawList {
				return nil, errors.New("categories must be a list")
			}
			return p.parseLargeList(cats), nil
		}
		return p.parseFlat(root), nil
	case rawNull:
		return EmptyCatalog(), nil
	default:
		return nil, errors.New("unsupported catalog shape: top level must be a list or a mapping")
	}
}

func (p catalogParser) parseLargeList(list *rawNode) *Catalog {
	cat := &Catalog{}
	for i, item := range list.items {
		large, ok := p.parseLarge(item, i)
		if !ok {
			continue
		}
		cat.Large = append(cat.Large, large)
	}
	return cat
}

func (p catalogParser) parseLarge(n *rawNode, idx int) (LargeCategory, bool) {
	if n.kind != rawMap {
		p.logger.Warn("skipping large category: not a mapping", zap.Int("index", idx))
		return LargeCategory{}, false
	}
	id := n.str("large_category_id", "id")
	name := n.str("large_category_name_ja", "large_category_name", "name", "large_category")
	if id == "" && name == "" {
		p.logger.Warn("skipping large category: missing id and name", zap.Int("index", idx))
		return LargeCategory{}, false
	}
	if id == "" {
		id = name
	}
	if name == "" {
		name = id
	}
	legacy := n.has("large_category") && !n.has("large_category_id")
	large := LargeCategory{ID: id, Name: name}
	mediums := n.get("medium_categories")
	if mediums == nil {
		return large, true
	}
	if mediums.kind != rawList {
		p.logger.Warn("medium_categories is not a list", zap.String("large", id))
		return large, true
	}
	for j, m := range mediums.items {
		medium, ok := p.parseMedium(m, id, j, legacy)
		if !ok {
			continue
		}
		large.Medium = append(large.Medium, medium)
	}
	return large, true
}

func (p catalogParser) parseMedium(n *rawNode, largeID string, idx int, legacy bool) (MediumCategory, bool) {
	if n.kind != rawMap {
		p.logger.Warn("skipping medium category: not a mapping", zap.String("large", largeID), zap.Int("index", idx))
		return MediumCategory{}, false
	}
	id := n.str("medium_category_id", "id")
	name := n.str("medium_category_name_ja", "medium_category_name", "name", "medium_category")
	if id == "" && name == "" {
		p.logger.Warn("skipping medium category: missing id and name", zap.String("large", largeID), zap.Int("index", idx))
		return MediumCategory{}, false
	}
	if id == "" {
		id = name
	}
	if name == "" {
		name = id
	}
	legacy = legacy || (n.has("medium_category") && !n.has("medium_category_id"))
	priority := 0
	if legacy {
		priority = legacyPriority
	}
	if raw := n.get("priority"); raw != nil {
		priority = p.parsePriority(raw, id, priority)
	}
	medium := MediumCategory{ID: id, Name: name, Priority: priority}
	medium.Keywords = p.parseKeywords(n.get("keywords", "terms"), id)
	return medium, true
}

func (p catalogParser) parsePriority(raw *rawNode, mediumID string, fallback int) int {
	if raw.kind != rawScalar {
		p.logger.Warn("ignoring non-scalar priority", zap.String("medium", mediumID))
		return fallback
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw.value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		p.logger.Warn("ignoring invalid priority", zap.String("medium", mediumID), zap.String("value", raw.value))
		return fallback
	}
	pr := int(math.Round(v))
	if pr < 0 || pr > maxPriority {
		clamped := min(max(pr, 0), maxPriority)
		p.logger.Warn("priority out of range, clamped",
			zap.String("medium", mediumID), zap.Int("value", pr), zap.Int("clamped", clamped))
		pr = clamped
	}
	return pr
}

func (p catalogParser) parseKeywords(list *rawNode, mediumID string) []Keyword {
	if list == nil {
		return nil
	}
	if list.kind != rawList {
		p.logger.Warn("keywords is not a list", zap.String("medium", mediumID))
		return nil
	}
	out := make([]Keyword, 0, len(list.items))
	for i, item := range list.items {
		kw, reason := parseKeyword(item)
		if reason != "" {
			p.logger.Warn("skipping malformed keyword",
				zap.String("medium", mediumID), zap.Int("index", i), zap.String("reason", reason))
			continue
		}
		out = append(out, kw)
	}
	return out
}

func parseKeyword(n *rawNode) (Keyword, string) {
	switch n.kind {
	case rawScalar:
		term := strings.TrimSpace(n.value)
		if term == "" {
			return Keyword{}, "empty term"
		}
		return Keyword{Term: term, Weight: defaultWeight}, ""
	case rawMap:
		term := n.str("term", "keyword")
		if term == "" {
			return Keyword{}, "missing term"
		}
		weight := defaultWeight
		if raw := n.get("weight"); raw != nil {
			if raw.kind != rawScalar {
				return Keyword{}, "weight is not a number"
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(raw.value), 64)
			if err != nil {
				return Keyword{}, "weight is not a number"
			}
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return Keyword{}, "weight out of range"
			}
			weight = v
		}
		return Keyword{Term: term, Weight: weight}, ""
	default:
		return Keyword{}, "unsupported keyword entry"
	}
}

// parseFlat handles the legacy name-keyed shape:
//
//	{large: {medium: [kw, ...]}}  or  {large: [kw, ...]}
func (p catalogParser) parseFlat(root *rawNode) *Catalog {
	cat := &Catalog{}
	for i, largeName := range root.keys {
		largeName = strings.TrimSpace(largeName)
		val := root.fields[i]
		if largeName == "" {
			p.logger.Warn("skipping large category: empty name", zap.Int("index", i))
			continue
		}
		large := LargeCategory{ID: largeName, Name: largeName}
		switch val.kind {
		case rawList:
			large.Medium = append(large.Medium, MediumCategory{
				ID:       largeName,
				Name:     largeName,
				Priority: legacyPriority,
				Keywords: p.parseKeywords(val, largeName),
			})
		case rawMap:
			for j, mediumName := range val.keys {
				mediumName = strings.TrimSpace(mediumName)
				if mediumName == "" {
					p.logger.Warn("skipping medium category: empty name", zap.String("large", largeName))
					continue
				}
				large.Medium = append(large.Medium, MediumCategory{
					ID:       mediumName,
					Name:     mediumName,
					Priority: legacyPriority,
					Keywords: p.parseKeywords(val.fields[j], mediumName),
				})
			}
		default:
			p.logger.Warn("skipping large category: expected list or mapping", zap.String("large", largeName))
			continue
		}
		cat.Large = append(cat.Large, large)
	}
	return cat
}
