package searchindex

import (
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/anyfind/anyfind/internal/tokenize"
)

// tokenizerName is registered with bleve's analyzer registry so the
// index mapping can reference it by name, the same way bleve's own
// built-in tokenizers are wired.
const tokenizerName = "anyfind_path"

// pathTokenizer adapts internal/tokenize.Tokens to bleve's
// analysis.Tokenizer interface, so file names and pinyin strings are
// split exactly the way spec.md §4.C7 requires rather than by one of
// bleve's generic tokenizers.
type pathTokenizer struct{}

func (pathTokenizer) Tokenize(input []byte) analysis.TokenStream {
	terms := tokenize.Tokens(string(input))
	stream := make(analysis.TokenStream, 0, len(terms))
	offset := 0
	for i, term := range terms {
		start := offset
		end := start + len(term)
		stream = append(stream, &analysis.Token{
			Term:     []byte(term),
			Start:    start,
			End:      end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
		offset = end + 1
	}
	return stream
}

func tokenizerConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	return pathTokenizer{}, nil
}

func init() {
	registry.RegisterTokenizer(tokenizerName, tokenizerConstructor)
}
