package domain

import "fmt"

// Media content types.
const (
	MediaTypeArticle = "article"
	MediaTypeVideo   = "video"
)

// Media is a candidate entity for the recommendation pipeline.
type Media struct {
	MediaID    string
	Type       string
	Title      string
	Content    string
	Transcript string
}

// EmbeddingText composes the text fed to the embedding model.
// Articles embed title+content, videos title+transcript. Unknown types
// produce an empty string and are dropped before ranking.
func (m Media) EmbeddingText() string {
	switch m.Type {
	case MediaTypeArticle:
		return fmt.Sprintf("Title: %s. Content: %s", m.Title, m.Content)
	case MediaTypeVideo:
		return fmt.Sprintf("Title: %s. Transcript: %s", m.Title, m.Transcript)
	}
	return ""
}
