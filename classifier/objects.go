package classifier

import (
	"slices"

	"go.uber.org/zap"
)

const (
	priorityObjectBoost  = 1.2
	ordinaryObjectFactor = 0.8
)

// objectTarget is the category a detector label maps to.
type objectTarget struct {
	largeID, largeName   string
	mediumID, mediumName string
	name                 string
}

// objectTable covers the detector labels that describe lost property.
// Ids match the built-in catalog; names are replaced by the loaded
// catalog's names when it defines the same medium id.
var objectTable = map[string]objectTarget{
	"umbrella":       {"umbrellas", "かさ類", "umbrella", "傘", "傘"},
	"handbag":        {"bags", "かばん類", "handbag", "手提げかばん", "ハンドバッグ"},
	"backpack":       {"bags", "かばん類", "backpack", "リュックサック", "リュックサック"},
	"suitcase":       {"bags", "かばん類", "suitcase", "スーツケース", "スーツケース"},
	"cell phone":     {"phones", "携帯電話類", "mobile_phone", "携帯電話", "携帯電話"},
	"laptop":         {"electronics", "電気製品類", "computer", "パソコン", "ノートパソコン"},
	"keyboard":       {"electronics", "電気製品類", "accessory_device", "周辺機器", "キーボード"},
	"mouse":          {"electronics", "電気製品類", "accessory_device", "周辺機器", "マウス"},
	"remote":         {"electronics", "電気製品類", "accessory_device", "周辺機器", "リモコン"},
	"clock":          {"jewelry_watches", "時計類・貴金属類", "watch", "時計", "時計"},
	"tie":            {"clothing", "衣類・履物類", "accessories", "帽子・手袋・マフラー", "ネクタイ"},
	"book":           {"books_stationery", "書籍・文房具類", "book", "書籍", "本"},
	"scissors":       {"books_stationery", "書籍・文房具類", "stationery", "文房具", "はさみ"},
	"bottle":         {"daily_goods", "生活用品類", "drinkware", "水筒・容器", "ボトル"},
	"cup":            {"daily_goods", "生活用品類", "drinkware", "水筒・容器", "カップ"},
	"teddy bear":     {"toys_sports", "趣味・娯楽用品類", "toy", "玩具", "ぬいぐるみ"},
	"sports ball":    {"toys_sports", "趣味・娯楽用品類", "sports", "スポーツ用品", "ボール"},
	"baseball glove": {"toys_sports", "趣味・娯楽用品類", "sports", "スポーツ用品", "グローブ"},
	"tennis racket":  {"toys_sports", "趣味・娯楽用品類", "sports", "スポーツ用品", "ラケット"},
}

// priorityObjects are small, high-value items that are boosted.
var priorityObjects = map[string]struct{}{
	"umbrella":   {},
	"handbag":    {},
	"backpack":   {},
	"cell phone": {},
	"laptop":     {},
	"suitcase":   {},
}

// ObjectLabels returns the detector labels the object classifier understands, sorted.
func ObjectLabels() []string {
	out := make([]string, 0, len(objectTable))
	for label := range objectTable {
		out = append(out, label)
	}
	slices.Sort(out)
	return out
}

// ObjectMatch is the winning detection with its mapped category.
type ObjectMatch struct {
	Object   DetectedObject
	Adjusted float64 // may exceed 1
	target   objectTarget
}

// ObjectClassifier maps detector output to categories.
type ObjectClassifier struct {
	catalog *Catalog
	logger  *zap.Logger
}

// NewObjectClassifier uses cat only to resolve category names.
func NewObjectClassifier(cat *Catalog, logger *zap.Logger) *ObjectClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObjectClassifier{catalog: cat, logger: logger}
}

// Evaluate picks the known object with the highest adjusted confidence. Ties
// keep the earlier object. It reports false when no label is known.
func (oc *ObjectClassifier) Evaluate(objs []DetectedObject) (ObjectMatch, bool) {
	var best ObjectMatch
	found := false
	for _, obj := range objs {
		target, ok := objectTable[obj.Label]
		if !ok {
			continue
		}
		factor := ordinaryObjectFactor
		if _, boosted := priorityObjects[obj.Label]; boosted {
			factor = priorityObjectBoost
		}
		adjusted := obj.Confidence * factor
		if !found || adjusted > best.Adjusted {
			best = ObjectMatch{Object: obj, Adjusted: adjusted, target: target}
			found = true
		}
	}
	return best, found
}

// ClassifyByObjects returns the category of the best object with its adjusted
// confidence clamped to [0,1], or the fallback when no label is known.
func (oc *ObjectClassifier) ClassifyByObjects(objs []DetectedObject) ClassificationResult {
	m, ok := oc.Evaluate(objs)
	if !ok || m.Adjusted <= 0 {
		return FallbackResult()
	}
	return oc.resultFor(m, round2(clamp01(m.Adjusted)))
}

func (oc *ObjectClassifier) resultFor(m ObjectMatch, confidence float64) ClassificationResult {
	t := m.target
	res := ClassificationResult{
		LargeCategoryID:    t.largeID,
		LargeCategoryName:  t.largeName,
		MediumCategoryID:   t.mediumID,
		MediumCategoryName: t.mediumName,
		Name:               t.name,
		Confidence:         confidence,
		MatchedKeywords:    []MatchedKeyword{{Keyword: m.Object.Label, Score: round2(m.Adjusted)}},
		Source:             SourceObject,
	}
	if large, medium, ok := oc.catalog.Lookup(t.mediumID); ok {
		res.LargeCategoryID = large.ID
		res.LargeCategoryName = large.Name
		res.MediumCategoryName = medium.Name
	}
	return res
}
