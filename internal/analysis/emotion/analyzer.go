package emotion

import (
	"sort"
	"strings"
)

// Label 表示写入消息 emotion_detected 字段、并注入提示词的情绪标签。
type Label string

const (
	Neutral    Label = ""
	Sadness    Label = "tristesse"
	Anxiety    Label = "anxiété"
	Anger      Label = "colère"
	Fatigue    Label = "épuisement"
	Loneliness Label = "solitude"
	Joy        Label = "joie"
)

// Decision 给出情绪识别结果及其得分。
type Decision struct {
	Emotion Label
	Score   int
}

// minScore 低于该得分时视为中性，避免单个弱信号改变回复语气。
const minScore = 3

var keywordBuckets = map[Label][]string{
	Sadness: {
		"triste", "tristesse", "déprim", "pleur", "chagrin", "malheureu", "le cœur lourd", "le moral à zéro",
		"effondré", "désespér", "sad",
	},
	Anxiety: {
		"angoiss", "anxi", "stress", "peur", "inquiet", "inquiète", "panique", "crise d'angoisse", "boule au ventre",
		"nerveu", "anxious", "worried",
	},
	Anger: {
		"colère", "énervé", "énervée", "furieu", "enragé", "agacé", "agacée", "marre", "ras-le-bol", "insupportable",
		"angry",
	},
	Fatigue: {
		"épuisé", "épuisée", "épuisement", "fatigué", "fatiguée", "à bout", "vidé", "vidée", "burn-out", "burnout",
		"plus de force", "exhausted",
	},
	Loneliness: {
		"me sens seul", "tout seul", "toute seule", "solitude", "isolé", "isolée", "personne ne me comprend",
		"abandonné", "abandonnée", "lonely",
	},
	Joy: {
		"heureux", "heureuse", "suis content", "suis contente", "soulagé", "soulagée", "suis fier", "suis fière",
		"joie", "génial",
		"ça va mieux", "happy",
	},
}

// Analyze 根据用户文本推断情绪标签；没有足够信号时返回 Neutral。
func Analyze(text string) Decision {
	d := scoreText(text)
	if d.Score < minScore {
		return Decision{Emotion: Neutral}
	}
	return d
}

func scoreText(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Emotion: Neutral}
	}

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				scores[label] += 3
			}
		}
	}

	// 感叹号只加强已经出现的情绪，不单独决定标签。
	if n := strings.Count(text, "!"); n > 0 {
		for label := range scores {
			scores[label] += n
		}
	}

	// 同分时按标签排序，保证结果稳定。
	labels := make([]Label, 0, len(scores))
	for label := range scores {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	best := Decision{Emotion: Neutral}
	for _, label := range labels {
		if scores[label] > best.Score {
			best = Decision{Emotion: label, Score: scores[label]}
		}
	}
	return best
}
