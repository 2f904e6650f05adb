package reply

import (
	"math"
	"strings"
	"unicode"
)

// tfidfIndex 极简 TF-IDF 文档索引。
//
// 知识库规模是个位数到百位数，线性打分足够；
// 不做词干化，只做小写与标点切分。
type tfidfIndex struct {
	docs []map[string]int // 每篇文档的词频
	df   map[string]int   // 词 -> 含该词的文档数
}

func newTFIDFIndex() *tfidfIndex {
	return &tfidfIndex{df: make(map[string]int)}
}

// AddDocument 将一篇文档加入索引。
func (idx *tfidfIndex) AddDocument(text string) {
	tf := make(map[string]int)
	for _, term := range tokenize(text) {
		tf[term]++
	}
	for term := range tf {
		idx.df[term]++
	}
	idx.docs = append(idx.docs, tf)
}

// Scores 计算查询对每篇文档的 TF-IDF 相似度，顺序与加入顺序一致。
func (idx *tfidfIndex) Scores(query string) []float64 {
	terms := tokenize(query)
	scores := make([]float64, len(idx.docs))

	n := float64(len(idx.docs))
	for _, term := range terms {
		df, ok := idx.df[term]
		if !ok {
			continue
		}
		idf := math.Log(1 + n/float64(1+df))
		for i, doc := range idx.docs {
			if tf, ok := doc[term]; ok {
				scores[i] += float64(tf) * idf
			}
		}
	}
	return scores
}

// tokenize 小写化并按非字母数字切分。
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
