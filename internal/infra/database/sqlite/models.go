package sqlite

import "time"

// NewsArticle news_articles 행
type NewsArticle struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	Ticker         string    `gorm:"not null;index"`
	Headline       string    `gorm:"not null"`
	Source         string    `gorm:"column:source"`
	URL            string    `gorm:"column:url;uniqueIndex"`
	PublishedAt    time.Time `gorm:"not null;index"`
	SentimentScore *float64  `gorm:"column:sentiment_score"`
	SentimentLabel *string   `gorm:"column:sentiment_label"`
}

func (NewsArticle) TableName() string { return "news_articles" }

// StockPrice stock_prices 행, date는 YYYY-MM-DD 문자열
type StockPrice struct {
	Ticker     string  `gorm:"primaryKey"`
	Date       string  `gorm:"primaryKey"`
	ClosePrice float64 `gorm:"not null"`
}

func (StockPrice) TableName() string { return "stock_prices" }

// EffectRow sentiment_price_effects 행
type EffectRow struct {
	NewsID         int64   `gorm:"primaryKey;autoIncrement:false"`
	Ticker         string  `gorm:"not null;index:idx_effects_ticker_score,priority:1"`
	EventDate      string  `gorm:"not null;index"`
	Score          float64 `gorm:"not null;index:idx_effects_ticker_score,priority:2"`
	Label          string  `gorm:"not null"`
	PriceBefore    float64 `gorm:"not null"`
	PriceAfter     float64 `gorm:"not null"`
	PriceChangePct float64 `gorm:"not null"`
	BeforeSource   string  `gorm:"not null"`
	AfterSource    string  `gorm:"not null"`
	Corrected      bool    `gorm:"not null;default:false"`
	Synthetic      bool    `gorm:"not null;default:false"`
}

func (EffectRow) TableName() string { return "sentiment_price_effects" }
