package analyzer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/audithq/site-auditor/internal/audit"
)

const (
	duplicateThreshold = 0.85
	topKeywords        = 10
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	sentenceEndRe = regexp.MustCompile(`[.!?]+`)
	vowelGroupRe  = regexp.MustCompile(`[aeiouy]+`)
	nonWordRe     = regexp.MustCompile(`[^a-z0-9_\s]`)
	fontSizeRe    = regexp.MustCompile(`font-size:\s*(\d+)px`)
)

// Content scores readability, keyword density, duplication, and overall
// content quality. Boilerplate regions (script, style, nav, header, footer,
// aside) are excluded before any text statistic is computed. The input
// document is not modified.
func Content(doc *goquery.Document) audit.ContentResult {
	body := goquery.CloneDocument(doc)
	body.Find("script, style, nav, header, footer, aside").Remove()
	text := strings.TrimSpace(whitespaceRe.ReplaceAllString(body.Find("body").Text(), " "))

	var paragraphs []string
	body.Find("p").Each(func(_ int, s *goquery.Selection) {
		paragraphs = append(paragraphs, strings.TrimSpace(s.Text()))
	})
	headingCount := body.Find("h1, h2, h3, h4, h5, h6").Length()

	wordCount := len(strings.Fields(text))
	readability := readabilityScore(text)
	density := keywordDensity(text)
	duplicate := duplicateContent(paragraphs)
	quality := contentQuality(text, wordCount, headingCount, len(paragraphs))

	score := overallContentScore(wordCount, readability, quality.Score)

	issues := []string{}
	if wordCount < 300 {
		issues = append(issues, "Content too short (recommended: 300+ words)")
		score -= 20
	}
	if readability < 60 {
		issues = append(issues, "Content may be difficult to read")
		score -= 15
	}
	if quality.Score < 70 {
		issues = append(issues, "Content quality could be improved")
		score -= 10
	}
	issues = append(issues, duplicate.Issues...)

	return audit.ContentResult{
		WordCount:        wordCount,
		ReadabilityScore: readability,
		KeywordDensity:   density,
		DuplicateContent: duplicate,
		ContentQuality:   quality,
		Score:            clampScore(roundToInt(score)),
		Issues:           issues,
	}
}

// readabilityScore is the simplified Flesch Reading Ease approximation:
// 206.835 - 1.015*(words/sentences) - 84.6*(syllables/words), clamped.
func readabilityScore(text string) int {
	words := strings.Fields(text)
	var sentences []string
	for _, s := range sentenceEndRe.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			sentences = append(sentences, s)
		}
	}
	if len(words) == 0 || len(sentences) == 0 {
		return 0
	}
	syllables := countSyllables(words)
	avgWordsPerSentence := float64(len(words)) / float64(len(sentences))
	avgSyllablesPerWord := float64(syllables) / float64(len(words))
	score := 206.835 - 1.015*avgWordsPerSentence - 84.6*avgSyllablesPerWord
	return clampScore(roundToInt(score))
}

// countSyllables approximates syllables as vowel-group matches per word,
// minus one for a trailing "e" when the count exceeds one, floored at one.
func countSyllables(words []string) int {
	total := 0
	for _, word := range words {
		w := strings.ToLower(word)
		n := len(vowelGroupRe.FindAllString(w, -1))
		if strings.HasSuffix(w, "e") && n > 1 {
			n--
		}
		if n == 0 {
			n = 1
		}
		total += n
	}
	return total
}

// keywordDensity reports the ten most frequent words longer than three
// characters as percentages of the filtered word count, rounded to two
// decimals. Ties break alphabetically so the output is deterministic.
func keywordDensity(text string) map[string]float64 {
	cleaned := nonWordRe.ReplaceAllString(strings.ToLower(text), "")
	var words []string
	for _, w := range strings.Fields(cleaned) {
		if len(w) > 3 {
			words = append(words, w)
		}
	}
	freq := make(map[string]int)
	for _, w := range words {
		freq[w]++
	}

	keys := make([]string, 0, len(freq))
	for w := range freq {
		keys = append(keys, w)
	}
	sort.Slice(keys, func(i, j int) bool {
		if freq[keys[i]] != freq[keys[j]] {
			return freq[keys[i]] > freq[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > topKeywords {
		keys = keys[:topKeywords]
	}

	density := make(map[string]float64, len(keys))
	for _, w := range keys {
		density[w] = round2(float64(freq[w]) / float64(len(words)) * 100)
	}
	return density
}

// duplicateContent counts paragraph pairs whose Jaccard word-set similarity
// exceeds the duplicate threshold and reports the ratio against the
// paragraph count.
func duplicateContent(paragraphs []string) audit.DuplicateContentAnalysis {
	duplicateCount := 0
	for i := 0; i < len(paragraphs); i++ {
		for j := i + 1; j < len(paragraphs); j++ {
			if jaccardSimilarity(paragraphs[i], paragraphs[j]) > duplicateThreshold {
				duplicateCount++
			}
		}
	}

	percentage := 0.0
	if len(paragraphs) > 0 {
		percentage = float64(duplicateCount) / float64(len(paragraphs)) * 100
	}

	issues := []string{}
	if percentage > 10 {
		issues = append(issues, "High percentage of duplicate content detected")
	}

	return audit.DuplicateContentAnalysis{
		Percentage: round2(percentage),
		Issues:     issues,
	}
}

func jaccardSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

// contentQuality averages three factors: length relative to a 1000-word
// target, lexical uniqueness, and document structure from heading and
// paragraph counts.
func contentQuality(text string, wordCount, headings, paragraphs int) audit.ContentQualityAnalysis {
	lengthScore := float64(wordCount) / 1000 * 100
	if lengthScore > 100 {
		lengthScore = 100
	}

	uniquenessScore := 0.0
	if total := len(strings.Fields(text)); total > 0 {
		uniquenessScore = float64(len(wordSet(text))) / float64(total) * 100
	}

	structureScore := float64(headings*10 + paragraphs*2)
	if structureScore > 100 {
		structureScore = 100
	}

	overall := (lengthScore + uniquenessScore + structureScore) / 3
	return audit.ContentQualityAnalysis{
		Score: roundToInt(overall),
		Factors: audit.QualityFactors{
			Length:     roundToInt(lengthScore),
			Uniqueness: roundToInt(uniquenessScore),
			Structure:  roundToInt(structureScore),
		},
	}
}

// overallContentScore applies word-count and readability penalties to a 100
// base, then averages the running score with the quality score.
func overallContentScore(wordCount, readability, qualityScore int) float64 {
	score := 100.0
	if wordCount < 300 {
		score -= 30
	} else if wordCount < 500 {
		score -= 15
	}
	if readability < 40 {
		score -= 25
	} else if readability < 60 {
		score -= 15
	}
	score = (score + float64(qualityScore)) / 2
	if score < 0 {
		score = 0
	}
	return score
}
