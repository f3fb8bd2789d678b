package docs

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

// WordAnalyzerName is the name of the analyzer registered in the index mapping.
const WordAnalyzerName = "docs_word"

// WordAnalyzer splits text into lower-cased words on Unicode word boundaries.
// It defines what a "whole word" is for exact matching.
type WordAnalyzer struct {
	analyzer analysis.Analyzer
}

// CreateWordAnalyzer builds the word analyzer from a bleve index mapping:
// the unicode tokenizer followed by the lowercase filter.
func CreateWordAnalyzer() (*WordAnalyzer, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(WordAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = WordAnalyzerName

	analyzer := indexMapping.AnalyzerNamed(WordAnalyzerName)
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer %s not available", WordAnalyzerName)
	}

	return &WordAnalyzer{analyzer: analyzer}, nil
}

// Terms returns the words of s in order. Punctuation and whitespace produce no terms.
func (a *WordAnalyzer) Terms(s string) []string {
	if s == "" {
		return nil
	}
	stream := a.analyzer.Analyze([]byte(s))
	terms := make([]string, 0, len(stream))
	for _, token := range stream {
		terms = append(terms, string(token.Term))
	}
	return terms
}

// containsSequence returns true if needle occurs as a contiguous run in haystack.
func containsSequence(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i] != needle[0] {
			continue
		}
		match := true
		for j := 1; j < len(needle); j++ {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
