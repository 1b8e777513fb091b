// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

// Package taste holds the closed feature vocabulary, the sanitizer for
// untrusted generated dishes, and the prompt builders. Everything here is
// pure: no I/O, no clock, no randomness.
package taste

// featureIDs is the closed vocabulary in its canonical order. The order is
// part of the deck prompt and must not change.
var featureIDs = []string{
	"chuanStyle", "cantoneseStyle", "japaneseStyle", "thaiStyle",
	"spicy", "numbing", "sweet", "sour", "umami", "salty", "smoky", "herbal", "rich", "light", "fresh",
	"crispy", "tender", "chewy", "juicy", "brothy",
	"stirFried", "grilled", "braised", "deepFried", "steamed", "raw",
	"noodle", "rice", "seafood", "beef", "pork", "chicken", "lamb", "duck", "tofu", "mushroom", "cheese", "cilantro", "garlic",
	"highProtein", "lowCarb", "veggieForward",
}

var featureNames = map[string]string{
	"chuanStyle": "川味", "cantoneseStyle": "粤式", "japaneseStyle": "日式", "thaiStyle": "泰式",
	"spicy": "辛辣", "numbing": "麻感", "sweet": "偏甜", "sour": "偏酸", "umami": "鲜味", "salty": "咸香",
	"smoky": "烟火香", "herbal": "香草香料", "rich": "厚重浓郁", "light": "清爽清淡", "fresh": "清新感",
	"crispy": "酥脆", "tender": "软嫩", "chewy": "筋道", "juicy": "多汁", "brothy": "汤感",
	"stirFried": "爆炒", "grilled": "炙烤", "braised": "红烧/炖煮", "deepFried": "油炸", "steamed": "清蒸", "raw": "冷食/生食",
	"noodle": "面食", "rice": "米饭搭配", "seafood": "海鲜", "beef": "牛肉", "pork": "猪肉", "chicken": "鸡肉", "lamb": "羊肉",
	"duck": "鸭肉", "tofu": "豆腐", "mushroom": "菌菇", "cheese": "芝士奶香", "cilantro": "香菜", "garlic": "蒜香",
	"highProtein": "高蛋白偏好", "lowCarb": "低碳倾向", "veggieForward": "蔬菜导向",
}

// FeatureIDs returns a copy of the vocabulary in canonical order.
func FeatureIDs() []string {
	out := make([]string, len(featureIDs))
	copy(out, featureIDs)
	return out
}

// IsFeature reports whether id belongs to the vocabulary.
func IsFeature(id string) bool {
	_, ok := featureNames[id]
	return ok
}

// DisplayName returns the Chinese label for id, or id itself when unknown.
func DisplayName(id string) string {
	if name, ok := featureNames[id]; ok {
		return name
	}
	return id
}
