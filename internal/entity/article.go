package entity

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Article represents a normalized news/social item persisted after ingestion.
// The canonical URL is the upsert identity key; Hash is advisory metadata for
// duplicate-flagging jobs and intentionally may collide across distinct URLs.
type Article struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Source       string          `gorm:"not null" json:"source"`
	URL          string          `gorm:"unique;not null" json:"url"`
	URLCanonical string          `json:"url_canonical"`
	PublishedAt  time.Time       `gorm:"not null" json:"published_at"`
	RetrievedAt  time.Time       `json:"retrieved_at"`
	Title        string          `json:"title"`
	Text         string          `json:"text"`
	Lang         string          `json:"lang"`
	Hash         string          `json:"hash"`
	Credibility  float64         `json:"credibility"`
	Meta         datatypes.JSON  `gorm:"type:jsonb" json:"meta,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Tickers      []ArticleTicker `gorm:"foreignKey:ArticleID;constraint:OnDelete:CASCADE" json:"tickers,omitempty"`
}

// TableName specifies the table name for the Article model.
func (Article) TableName() string {
	return "article"
}

// ArticleTicker links an article to a ticker with match provenance. At most
// one row exists per (article, ticker) pair.
type ArticleTicker struct {
	ArticleID    int64          `gorm:"primaryKey" json:"article_id"`
	Ticker       string         `gorm:"primaryKey;size:10" json:"ticker"`
	Confidence   float64        `json:"confidence"`
	Method       string         `json:"method"`
	MatchedTerms pq.StringArray `gorm:"type:text[]" json:"matched_terms"`
	CharSpans    datatypes.JSON `gorm:"type:jsonb" json:"char_spans,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the ArticleTicker model.
func (ArticleTicker) TableName() string {
	return "article_ticker"
}

// ArticleEmbedding holds the single vector per article used for novelty
// similarity checks.
type ArticleEmbedding struct {
	ArticleID int64           `gorm:"primaryKey" json:"article_id"`
	Embedding pq.Float64Array `gorm:"type:float8[];not null" json:"embedding"`
	Model     string          `gorm:"not null" json:"model"`
	Dims      int             `gorm:"not null" json:"dims"`
}

// TableName specifies the table name for the ArticleEmbedding model.
func (ArticleEmbedding) TableName() string {
	return "article_embed"
}
