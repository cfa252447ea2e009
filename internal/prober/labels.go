package prober

import (
	"strconv"
	"strings"
)

// NormalizeLabel accepts only plain decimal day numbers between 1 and 31,
// everything else (prices, years, "0", "32") is rejected.
func NormalizeLabel(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > 2 {
		return "", false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > 31 {
		return "", false
	}
	return strconv.Itoa(n), true
}

// AvailableLabels runs every element through the classifier and returns the
// labels of the available ones, deduplicated in first-seen order.
func AvailableLabels(classifier Classifier, elements []SlotElement) []string {
	seen := map[string]struct{}{}
	labels := []string{}
	for _, el := range elements {
		label, ok := NormalizeLabel(el.Label)
		if !ok {
			continue
		}
		if !classifier.Classify(el) {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	return labels
}
