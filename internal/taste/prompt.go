// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package taste

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tomtom215/tastedeck/internal/models"
)

// Prompt limits.
const (
	deckPairLimit     = 5
	analyzePairLimit  = 6
	recentLikesLimit  = 8
	bannedNamesLimit  = 160
	recentEventsLimit = 18
	eventFeatureLimit = 4

	none     = "无"
	listSep  = "、"
	idSep    = ", "
	fallback = "- 无"
)

const deckPromptTemplate = `你是餐饮推荐系统的数据生成器，请输出 JSON，不要输出任何额外文本。

目标：仅生成 %[1]d 个用于口味学习的中文菜品卡片。

约束：
- 只能返回一个 JSON 对象，格式：
  {
    "dishes": [
      {"name": "菜名", "subtitle": "简短描述", "signals": {"featureId": 0.0}}
    ]
  }
- dishes 数组长度必须等于 %[1]d。
- name：中文为主，2-10字，不能重复，且不能出现在“禁用菜名”列表里。
- subtitle：中文为主，8-24字。
- signals：只允许以下 featureId，值范围 0.2-1.0：
  %[2]s
- 每个菜至少 3 个 signals，最多 6 个。
- 结合用户偏好提高多样性，避免全是同一种菜系。

用户画像输入：
- top_positive: %[3]s
- top_negative: %[4]s
- recent_likes: %[5]s

禁用菜名（不能重复生成）：
%[6]s`

const analyzePromptTemplate = `你是中文餐饮口味分析助手。请输出 JSON，不要输出其他内容。

输出格式：
{
  "summary": "一句到两句的用户口味画像总结",
  "avoid": "一句当前应避开的口味建议",
  "strategy": "一句下次点菜策略"
}

输入：
- total_swipes: %[1]d
- top_positive: %[2]s
- top_negative: %[3]s
- recent_events:
%[4]s

要求：
- 中文输出，简洁，不要夸张。
- 结论要可执行，不要空话。`

// BuildDeckPrompt renders the JSON-only instruction asking for exactly
// needed dishes. The banned-name block merges the profile's avoid names
// with usedNames, deduplicated and sorted, capped at 160 entries.
func BuildDeckPrompt(profile *models.TasteProfile, needed int, usedNames []string) string {
	recentLikes := none
	if len(profile.RecentLikes) > 0 {
		recentLikes = strings.Join(headStrings(profile.RecentLikes, recentLikesLimit), listSep)
	}

	banned := mergeNames(profile.AvoidNames, usedNames)
	usedBlock := none
	if len(banned) > 0 {
		usedBlock = strings.Join(headStrings(banned, bannedNamesLimit), listSep)
	}

	prompt := fmt.Sprintf(deckPromptTemplate,
		needed,
		strings.Join(featureIDs, idSep),
		FeaturePairs(profile.TopPositive, deckPairLimit),
		FeaturePairs(profile.TopNegative, deckPairLimit),
		recentLikes,
		usedBlock,
	)
	return strings.TrimSpace(prompt)
}

// BuildAnalyzePrompt renders the analyzer instruction for req.
func BuildAnalyzePrompt(req *models.AnalyzeRequest) string {
	events := req.RecentEvents
	if len(events) > recentEventsLimit {
		events = events[:recentEventsLimit]
	}

	lines := make([]string, 0, len(events))
	for _, ev := range events {
		feats := headStrings(ev.Features, eventFeatureLimit)
		labels := none
		if len(feats) > 0 {
			names := make([]string, len(feats))
			for i, id := range feats {
				names[i] = DisplayName(id)
			}
			labels = strings.Join(names, listSep)
		}
		lines = append(lines, fmt.Sprintf("- %s: %s (%s)", ev.Action, ev.DishName, labels))
	}

	eventBlock := fallback
	if len(lines) > 0 {
		eventBlock = strings.Join(lines, "\n")
	}

	prompt := fmt.Sprintf(analyzePromptTemplate,
		req.TotalSwipes,
		FeaturePairs(req.TopPositive, analyzePairLimit),
		FeaturePairs(req.TopNegative, analyzePairLimit),
		eventBlock,
	)
	return strings.TrimSpace(prompt)
}

// BuildImagePrompt returns the picture prompt for one dish.
func BuildImagePrompt(name string) string {
	return "生成一个" + name + "的图片，俯视角，图像比例2:3，食物主体在下方2/3区域内"
}

// FeaturePairs formats at most limit scores as 名称(0.00) joined by 、,
// or 无 when there are none.
func FeaturePairs(items []models.FeatureScore, limit int) string {
	if len(items) == 0 {
		return none
	}
	if len(items) > limit {
		items = items[:limit]
	}
	parts := make([]string, len(items))
	for i, f := range items {
		parts[i] = fmt.Sprintf("%s(%.2f)", DisplayName(f.ID), f.Score)
	}
	return strings.Join(parts, listSep)
}

// NormalizeNames trims names and drops blanks, keeping order and duplicates.
func NormalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func mergeNames(groups ...[]string) []string {
	set := make(map[string]struct{})
	for _, g := range groups {
		for _, n := range NormalizeNames(g) {
			set[n] = struct{}{}
		}
	}
	merged := make([]string, 0, len(set))
	for n := range set {
		merged = append(merged, n)
	}
	sort.Strings(merged)
	return merged
}

func headStrings(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
