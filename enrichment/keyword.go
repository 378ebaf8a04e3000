// Package enrichment derives tags for diary entries. The Keyword generator
// works offline from word frequency; it stands in for a remote generation
// API behind the same contract.
package enrichment

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/dai175/smart-photo-diary-sub001/diary_errors"
)

// FreshFor is how long cached tags count as fresh.
const FreshFor = 7 * 24 * time.Hour

// Fresh reports whether tags stamped at taggedAt are still usable at now.
func Fresh(taggedAt, now time.Time) bool {
	return !taggedAt.IsZero() && now.Sub(taggedAt) < FreshFor
}

type Keyword struct {
	// MaxTags caps the result, default 5.
	MaxTags int
	// MinWordLen drops short words, default 4.
	MinWordLen int
}

var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "almost": {}, "along": {},
	"also": {}, "always": {}, "around": {}, "because": {}, "been": {},
	"before": {}, "being": {}, "between": {}, "could": {}, "every": {},
	"finally": {}, "first": {}, "from": {}, "going": {}, "have": {},
	"just": {}, "little": {}, "maybe": {}, "more": {}, "most": {},
	"much": {}, "never": {}, "only": {}, "other": {}, "over": {},
	"really": {}, "some": {}, "something": {}, "still": {}, "than": {},
	"that": {}, "their": {}, "them": {}, "then": {}, "there": {},
	"these": {}, "they": {}, "this": {}, "though": {}, "through": {},
	"time": {}, "today": {}, "took": {}, "very": {}, "were": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "while": {},
	"will": {}, "with": {}, "would": {}, "your": {},
}

// GenerateTags picks the most frequent non-stopword words of title and
// content, title words weighted double, plus a month tag derived from the
// capture date and "photos" when photos are attached.
func (k *Keyword) GenerateTags(ctx context.Context, title, content string, date time.Time, photoCount int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(diary_errors.ErrEnrichmentFailed, err)
	}
	maxTags := k.MaxTags
	if maxTags == 0 {
		maxTags = 5
	}
	minLen := k.MinWordLen
	if minLen == 0 {
		minLen = 4
	}

	freq := map[string]int{}
	order := []string{}
	count := func(text string, weight int) {
		for _, word := range tokenize(text) {
			if len(word) < minLen {
				continue
			}
			if _, stop := stopwords[word]; stop {
				continue
			}
			if _, seen := freq[word]; !seen {
				order = append(order, word)
			}
			freq[word] += weight
		}
	}
	count(title, 2)
	count(content, 1)

	// frequency, then first appearance
	sort.SliceStable(order, func(i, j int) bool {
		return freq[order[i]] > freq[order[j]]
	})
	tags := []string{}
	for _, word := range order {
		if len(tags) == maxTags {
			break
		}
		tags = append(tags, word)
	}
	if photoCount > 0 {
		tags = append(tags, "photos")
	}
	if !date.IsZero() {
		tags = append(tags, strings.ToLower(date.Month().String()))
	}
	if len(tags) == 0 {
		return nil, diary_errors.ErrEnrichmentEmpty
	}
	return tags, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
