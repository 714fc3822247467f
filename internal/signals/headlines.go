package signals

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"agent-trader/internal/logger"
	"agent-trader/internal/trace"
	"agent-trader/internal/types"
)

// NewsSource defines one headline source to scrape.
type NewsSource struct {
	Name             string
	URL              string // {symbol} is substituted
	HeadlineSelector string
	RateLimit        time.Duration
}

// Headlines scrapes financial headlines per symbol and keyword-scores them
// into a NewsSignal. Market signals are delegated to an inner provider;
// this collaborator only produces the news side.
type Headlines struct {
	market  *Simulated
	sources []NewsSource
	cache   *newsCache
	timeout time.Duration
}

// NewHeadlines builds the scraping provider. cacheTTL bounds how often a
// symbol is re-scraped.
func NewHeadlines(market *Simulated, cacheTTL time.Duration) *Headlines {
	return &Headlines{
		market:  market,
		sources: defaultSources(),
		cache:   newNewsCache(cacheTTL),
		timeout: 15 * time.Second,
	}
}

func defaultSources() []NewsSource {
	return []NewsSource{
		{
			Name:             "Finviz",
			URL:              "https://finviz.com/quote.ashx?t={symbol}",
			HeadlineSelector: "table.fullview-news-outer a",
			RateLimit:        2 * time.Second,
		},
		{
			Name:             "YahooFinance",
			URL:              "https://finance.yahoo.com/quote/{symbol}/news",
			HeadlineSelector: "h3 a",
			RateLimit:        2 * time.Second,
		},
	}
}

func (h *Headlines) MarketSignal(ctx context.Context, symbol string) (types.MarketSignal, error) {
	return h.market.MarketSignal(ctx, symbol)
}

func (h *Headlines) NewsSignal(ctx context.Context, symbol string) (types.NewsSignal, error) {
	ctx, span := trace.StartSpan(ctx, "signals.NewsSignal")
	defer span.End()

	if cached, ok := h.cache.get(symbol); ok {
		logger.Debug(ctx, "News signal served from cache", "symbol", symbol)
		return cached, nil
	}

	headlines := h.scrape(ctx, symbol)
	if len(headlines) == 0 {
		// Scrape failure never blocks the pipeline; a neutral signal is
		// the safe degenerate case.
		logger.Warn(ctx, "No headlines scraped, returning neutral news signal", "symbol", symbol)
		return types.NewsSignal{Sentiment: "neutral"}, nil
	}

	signal := scoreHeadlines(headlines)
	h.cache.set(symbol, signal)
	h.cache.cleanup()

	logger.Info(ctx, "News signal computed", "symbol", symbol,
		"headlines", len(headlines), "sentiment", signal.Sentiment, "score", signal.Score)
	return signal, nil
}

func (h *Headlines) scrape(ctx context.Context, symbol string) []string {
	var headlines []string
	for _, source := range h.sources {
		c := colly.NewCollector(colly.MaxDepth(1))
		c.SetRequestTimeout(h.timeout)

		c.OnHTML(source.HeadlineSelector, func(e *colly.HTMLElement) {
			if isSponsored(e.DOM) {
				return
			}
			text := strings.TrimSpace(e.Text)
			if text != "" && len(headlines) < 40 {
				headlines = append(headlines, text)
			}
		})

		url := strings.ReplaceAll(source.URL, "{symbol}", symbol)
		if err := c.Visit(url); err != nil {
			logger.Debug(ctx, "Headline source failed", "source", source.Name, "symbol", symbol, "error", err)
			continue
		}
		c.Wait()
		time.Sleep(source.RateLimit)
	}
	return headlines
}

// isSponsored walks the headline's enclosing row looking for sponsored or
// ad markers, which would otherwise skew the keyword scoring.
func isSponsored(sel *goquery.Selection) bool {
	row := sel.Closest("tr, li, article")
	if row.Length() == 0 {
		return false
	}
	text := strings.ToLower(row.Text())
	if strings.Contains(text, "sponsored") || strings.Contains(text, "paid partnership") {
		return true
	}
	class, _ := row.Attr("class")
	return strings.Contains(strings.ToLower(class), "sponsor")
}

var (
	positiveWords = []string{"beats", "surge", "rally", "upgrade", "record", "growth", "profit", "strong", "raises", "outperform", "jumps", "soars"}
	negativeWords = []string{"miss", "plunge", "downgrade", "lawsuit", "recall", "layoff", "falls", "weak", "cuts", "warning", "drops", "probe"}
	impactWords   = []string{"earnings", "acquisition", "merger", "sec", "bankruptcy", "guidance"}
)

// scoreHeadlines keyword-scores headlines into a composite in [-1,1].
func scoreHeadlines(headlines []string) types.NewsSignal {
	var total float64
	highImpact := 0
	for _, headline := range headlines {
		lower := strings.ToLower(headline)
		score := 0.0
		for _, w := range positiveWords {
			if strings.Contains(lower, w) {
				score += 1
			}
		}
		for _, w := range negativeWords {
			if strings.Contains(lower, w) {
				score -= 1
			}
		}
		for _, w := range impactWords {
			if strings.Contains(lower, w) {
				highImpact++
				break
			}
		}
		total += clampScore(score / 2)
	}

	signal := types.NewsSignal{
		Score:      clampScore(total / float64(len(headlines))),
		HighImpact: highImpact,
	}
	switch {
	case signal.Score > 0.1:
		signal.Sentiment = "positive"
	case signal.Score < -0.1:
		signal.Sentiment = "negative"
	default:
		signal.Sentiment = "neutral"
	}
	return signal
}
