/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package scorers

import (
	"math"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
)

var (
	spaceRe     = regexp.MustCompile(`\s+`)
	sentSplitRe = regexp.MustCompile(`[。！？!?；;\n]+`)
)

// TextEventAnalysis scores generated analysis reports against reference
// documents. It combines factual consistency (ROUGE-2/L), semantic
// consistency (Jaccard and chrF), coverage (ROUGE-1 recall) and a
// readability term, minus a repetition penalty.
//
// Column names default to "reference" (ground truth) and "report"
// (predictions) and can be overridden via gt_text_col / pred_text_col.
type TextEventAnalysis struct{}

func (s *TextEventAnalysis) Score(workspace string, params map[string]any) (*schemas.Result, error) {
	gt, pred, err := s.loadPairs(workspace, params)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]float64, 0, len(gt.Order))
	for _, id := range gt.Order {
		ref := normalizeText(gt.Get(id, textCol(params, "gt_text_col", "reference")))
		hyp := normalizeText(pred.Get(id, textCol(params, "pred_text_col", "report")))
		rows = append(rows, scoreTextPair(ref, hyp))
	}
	metrics := aggregateTextMetrics(rows)

	score := metrics["composite_score"]
	result := schemas.NewResult()
	result.Summary = map[string]any{
		"score":                score,
		"factual_consistency":  metrics["factual_consistency"],
		"semantic_consistency": metrics["semantic_consistency"],
		"coverage":             metrics["coverage"],
		"readability":          metrics["readability"],
		"rank":                 rankHigherBetter(score, 0.85, 0.75, 0.65),
		"pass":                 score >= paramFloat(params, "pass_threshold", 0.70),
	}
	result.Metrics = metrics
	result.Versioning = versioning("text_event_analysis", "1.0.0",
		"Text Event Analysis (ROUGE/LCS/Jaccard/chrF + repetition)")
	return result, nil
}

// Validate runs the data loading and consistency checks without scoring.
func (s *TextEventAnalysis) Validate(workspace string, params map[string]any) error {
	_, _, err := s.loadPairs(workspace, params)
	return err
}

func (s *TextEventAnalysis) loadPairs(workspace string, params map[string]any) (gt, pred *LabelTable, err error) {
	gtCol := textCol(params, "gt_text_col", "reference")
	predCol := textCol(params, "pred_text_col", "report")
	gt, err = LoadLabelCSV(filepath.Join(workspace, "input", "gt.csv"), gtCol)
	if err != nil {
		return nil, nil, err
	}
	pred, err = LoadLabelCSV(filepath.Join(workspace, "output", "pred.csv"), predCol)
	if err != nil {
		return nil, nil, err
	}
	if err = CheckIDConsistency(gt, pred); err != nil {
		return nil, nil, err
	}
	return gt, pred, nil
}

func textCol(params map[string]any, key, def string) string {
	return paramString(params, key, def)
}

func normalizeText(s string) string {
	return spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// tokenizeWords splits on whitespace when the text contains any, otherwise
// falls back to per-character tokens (CJK text without spaces).
func tokenizeWords(s string) []string {
	if s == "" {
		return nil
	}
	if strings.ContainsAny(s, " \t") {
		return spaceRe.Split(s, -1)
	}
	return tokenizeChars(s)
}

func tokenizeChars(s string) []string {
	runes := []rune(s)
	tokens := make([]string, len(runes))
	for i, r := range runes {
		tokens[i] = string(r)
	}
	return tokens
}

func ngrams(seq []string, n int) []string {
	if n <= 0 || len(seq) < n {
		return nil
	}
	grams := make([]string, 0, len(seq)-n+1)
	for i := 0; i+n <= len(seq); i++ {
		grams = append(grams, strings.Join(seq[i:i+n], "\x1f"))
	}
	return grams
}

// prfFromOverlap computes clipped n-gram precision, recall and F1.
func prfFromOverlap(ref, hyp []string) (p, r, f1 float64) {
	refCount := map[string]int{}
	for _, g := range ref {
		refCount[g]++
	}
	hypCount := map[string]int{}
	for _, g := range hyp {
		hypCount[g]++
	}
	var overlap int
	for g, hc := range hypCount {
		if rc := refCount[g]; rc < hc {
			overlap += rc
		} else {
			overlap += hc
		}
	}
	p = float64(overlap) / float64(maxInt(len(hyp), 1))
	r = float64(overlap) / float64(maxInt(len(ref), 1))
	if p+r > 0 {
		f1 = 2 * p * r / (p + r)
	}
	return p, r, f1
}

// lcsLen computes longest common subsequence length with a one-row DP.
func lcsLen(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	dp := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			tmp := dp[j]
			if a[i-1] == b[j-1] {
				dp[j] = prev + 1
			} else if dp[j-1] > dp[j] {
				dp[j] = dp[j-1]
			}
			prev = tmp
		}
	}
	return dp[len(b)]
}

func jaccard(a, b []string) float64 {
	sa := map[string]bool{}
	for _, t := range a {
		sa[t] = true
	}
	sb := map[string]bool{}
	for _, t := range b {
		sb[t] = true
	}
	if len(sa) == 0 && len(sb) == 0 {
		return 1.0
	}
	var inter int
	union := len(sb)
	for t := range sa {
		if sb[t] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func distinct(tokens []string, n int) float64 {
	grams := ngrams(tokens, n)
	if len(grams) == 0 {
		return 0
	}
	unique := map[string]bool{}
	for _, g := range grams {
		unique[g] = true
	}
	return float64(len(unique)) / float64(len(grams))
}

func repeatRatio(tokens []string, n int) float64 {
	grams := ngrams(tokens, n)
	if len(grams) == 0 {
		return 0
	}
	counts := map[string]int{}
	for _, g := range grams {
		counts[g]++
	}
	var repeats int
	for _, c := range counts {
		if c > 1 {
			repeats += c
		}
	}
	return float64(repeats) / float64(len(grams))
}

// chrF is the character n-gram F-beta score, averaging precision and recall
// over orders 1..6 with beta 2.
func chrF(refChars, hypChars []string) float64 {
	const orders = 6
	const beta = 2.0
	var pSum, rSum float64
	for k := 1; k <= orders; k++ {
		p, r, _ := prfFromOverlap(ngrams(refChars, k), ngrams(hypChars, k))
		pSum += p
		rSum += r
	}
	p := pSum / orders
	r := rSum / orders
	beta2 := beta * beta
	if beta2*p+r == 0 {
		return 0
	}
	return (1 + beta2) * p * r / (beta2*p + r)
}

func scoreTextPair(ref, hyp string) map[string]float64 {
	refW := tokenizeWords(ref)
	hypW := tokenizeWords(hyp)
	refC := tokenizeChars(ref)
	hypC := tokenizeChars(hyp)

	r1p, r1r, r1f := prfFromOverlap(ngrams(refW, 1), ngrams(hypW, 1))
	r2p, r2r, r2f := prfFromOverlap(ngrams(refW, 2), ngrams(hypW, 2))

	l := lcsLen(refW, hypW)
	rlp := float64(l) / float64(maxInt(len(hypW), 1))
	rlr := float64(l) / float64(maxInt(len(refW), 1))
	var rlf float64
	if rlp+rlr > 0 {
		rlf = 2 * rlp * rlr / (rlp + rlr)
	}

	coverage := r1r

	jacc := jaccard(refW, hypW)
	chrf := chrF(refC, hypC)
	semantic := jacc
	if chrf > semantic {
		semantic = chrf
	}

	// Sentence length term: gaussian reward centered on 30 words.
	var sentLens []int
	for _, sent := range sentSplitRe.Split(hyp, -1) {
		if strings.TrimSpace(sent) == "" {
			continue
		}
		sentLens = append(sentLens, len(tokenizeWords(sent)))
	}
	avgSentLen := float64(len(hypW))
	if len(sentLens) > 0 {
		var sum int
		for _, n := range sentLens {
			sum += n
		}
		avgSentLen = float64(sum) / float64(len(sentLens))
	}
	const mu, sigma = 30.0, 10.0
	lenScore := math.Exp(-((avgSentLen - mu) * (avgSentLen - mu)) / (2 * sigma * sigma))

	rep3 := repeatRatio(hypW, 3)
	rep2 := repeatRatio(hypW, 2)
	distinct1 := distinct(hypW, 1)
	distinct2 := distinct(hypW, 2)
	readability := clamp01(0.6*lenScore + 0.2*distinct1 + 0.2*distinct2)
	repetitionPenalty := math.Min(0.2, 0.5*rep3+0.25*rep2)

	factual := 0.4*r2f + 0.6*rlf
	composite := clamp01(0.4*factual + 0.3*semantic + 0.2*coverage + 0.1*readability - repetitionPenalty)

	return map[string]float64{
		"rouge1_p":             r1p,
		"rouge1_r":             r1r,
		"rouge1_f":             r1f,
		"rouge2_p":             r2p,
		"rouge2_r":             r2r,
		"rouge2_f":             r2f,
		"rougeL_p":             rlp,
		"rougeL_r":             rlr,
		"rougeL_f":             rlf,
		"lcs_len":              float64(l),
		"lcs_ratio":            float64(l) / float64(maxInt(len(refW), 1)),
		"semantic_jaccard":     jacc,
		"chrf":                 chrf,
		"semantic_consistency": semantic,
		"coverage":             coverage,
		"avg_sentence_length":  avgSentLen,
		"distinct_1":           distinct1,
		"distinct_2":           distinct2,
		"repeat_2gram":         rep2,
		"repeat_3gram":         rep3,
		"readability":          readability,
		"factual_consistency":  factual,
		"repetition_penalty":   repetitionPenalty,
		"composite_score":      composite,
	}
}

func aggregateTextMetrics(rows []map[string]float64) map[string]float64 {
	if len(rows) == 0 {
		return map[string]float64{"composite_score": 0}
	}
	out := map[string]float64{}
	for key := range rows[0] {
		var sum float64
		for _, row := range rows {
			sum += row[key]
		}
		out[key] = sum / float64(len(rows))
	}
	out["samples"] = float64(len(rows))
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
