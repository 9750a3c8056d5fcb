package classifier

// Keyword is a catalog term with its relative weight inside a medium category.
type Keyword struct {
	Term   string  `json:"term" yaml:"term"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// MediumCategory is the finest classification unit shown to users.
type MediumCategory struct {
	ID       string    `json:"medium_category_id" yaml:"medium_category_id"`
	Name     string    `json:"medium_category_name_ja" yaml:"medium_category_name_ja"`
	Priority int       `json:"priority" yaml:"priority"`
	Keywords []Keyword `json:"keywords" yaml:"keywords"`
}

// LargeCategory groups medium categories.
type LargeCategory struct {
	ID     string           `json:"large_category_id" yaml:"large_category_id"`
	Name   string           `json:"large_category_name_ja" yaml:"large_category_name_ja"`
	Medium []MediumCategory `json:"medium_categories" yaml:"medium_categories"`
}

// Catalog is the two-level taxonomy. It is never mutated after loading;
// a reload builds a new Catalog.
type Catalog struct {
	Large []LargeCategory `json:"categories" yaml:"categories"`
}

// CatalogStats summarizes a catalog for logging.
type CatalogStats struct {
	Large    int
	Medium   int
	Keywords int
}

// EmptyCatalog returns a catalog with no categories. Every classifier built
// from it produces only fallback results.
func EmptyCatalog() *Catalog {
	return &Catalog{}
}

// Stats counts the categories and keywords in the catalog.
func (c *Catalog) Stats() CatalogStats {
	var st CatalogStats
	if c == nil {
		return st
	}
	st.Large = len(c.Large)
	for _, l := range c.Large {
		st.Medium += len(l.Medium)
		for _, m := range l.Medium {
			st.Keywords += len(m.Keywords)
		}
	}
	return st
}

// Lookup finds a medium category by id, returning its parent as well.
func (c *Catalog) Lookup(mediumID string) (*LargeCategory, *MediumCategory, bool) {
	if c == nil {
		return nil, nil, false
	}
	for i := range c.Large {
		l := &c.Large[i]
		for j := range l.Medium {
			if l.Medium[j].ID == mediumID {
				return l, &l.Medium[j], true
			}
		}
	}
	return nil, nil, false
}

// FindTerm returns the first category, in catalog order, owning a keyword
// whose normalized form equals the normalized term.
func (c *Catalog) FindTerm(term string) (*LargeCategory, *MediumCategory, bool) {
	if c == nil {
		return nil, nil, false
	}
	want := NormalizeText(term)
	if want == "" {
		return nil, nil, false
	}
	for i := range c.Large {
		l := &c.Large[i]
		for j := range l.Medium {
			for _, kw := range l.Medium[j].Keywords {
				if NormalizeText(kw.Term) == want {
					return l, &l.Medium[j], true
				}
			}
		}
	}
	return nil, nil, false
}

// Terms lists every keyword term once, in catalog order, deduplicated by
// normalized form. Terms that normalize to nothing are dropped.
func (c *Catalog) Terms() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, l := range c.Large {
		for _, m := range l.Medium {
			for _, kw := range m.Keywords {
				key := NormalizeText(kw.Term)
				if key == "" {
					continue
				}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, kw.Term)
			}
		}
	}
	return out
}
