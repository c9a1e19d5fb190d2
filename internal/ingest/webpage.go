package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"memoria/internal/graph"
	"memoria/internal/memory"
	apperrors "memoria/pkg/errors"
)

const (
	maxFetchBytes    = 512 * 1024
	maxParagraphs    = 20
	fetchConcurrency = 4
	defaultUserAgent = "Mozilla/5.0 (compatible; MemoriaBot/1.0)"
	ingestAuthorID   = "ingest"
	ingestAuthorName = "Web ingest"
)

// Ingester pulls paragraphs out of webpages and feeds them through the
// extractor, so documents become memories the same way messages do.
type Ingester struct {
	store      graph.Store
	extractor  *memory.Extractor
	httpClient *http.Client
	logger     *zap.Logger
}

// NewIngester creates a webpage ingester.
func NewIngester(store graph.Store, extractor *memory.Extractor, logger *zap.Logger) *Ingester {
	return &Ingester{
		store:     store,
		extractor: extractor,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Result summarizes one ingested page.
type Result struct {
	URL        string `json:"url"`
	Paragraphs int    `json:"paragraphs"`
	Stored     int    `json:"stored"`
}

// IngestURL fetches one page and stores whatever the extractor finds in
// its paragraphs. Returns how many memories were stored.
func (i *Ingester) IngestURL(ctx context.Context, guildID, channelID, rawURL string) (*Result, error) {
	paragraphs, err := i.fetchParagraphs(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	stored := 0
	for idx, p := range paragraphs {
		msg := memory.Message{
			AuthorID:   ingestAuthorID,
			AuthorName: ingestAuthorName,
			Content:    p,
			GuildID:    guildID,
			ChannelID:  channelID,
			MessageID:  fmt.Sprintf("%s#%d", rawURL, idx),
		}
		extracted := i.extractor.Extract(msg)
		if extracted == nil {
			continue
		}
		if _, err := i.store.CreateMemory(ctx, guildID, channelID, msg.MessageID, extracted); err != nil {
			i.logger.Warn("Failed to store ingested memory",
				zap.String("url", rawURL),
				zap.Int("paragraph", idx),
				zap.Error(err),
			)
			continue
		}
		stored++
	}

	i.logger.Info("Webpage ingested",
		zap.String("url", rawURL),
		zap.String("guild_id", guildID),
		zap.Int("paragraphs", len(paragraphs)),
		zap.Int("stored", stored),
	)

	return &Result{URL: rawURL, Paragraphs: len(paragraphs), Stored: stored}, nil
}

// IngestURLs ingests several pages concurrently. One failing URL fails
// the batch; partial results come back alongside the error.
func (i *Ingester) IngestURLs(ctx context.Context, guildID, channelID string, urls []string) ([]Result, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	var mu sync.Mutex
	var results []Result

	for _, u := range urls {
		u := u
		g.Go(func() error {
			res, err := i.IngestURL(ctx, guildID, channelID, u)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, *res)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

// fetchParagraphs downloads the page and extracts its paragraph texts.
func (i *Ingester) fetchParagraphs(ctx context.Context, rawURL string) ([]string, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperrors.NewIngestFetchFailed(rawURL, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewIngestFetchFailed(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewIngestFetchFailed(rawURL, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, apperrors.NewIngestFetchFailed(rawURL, err)
	}

	doc.Find("script, style, nav, footer, header").Remove()

	var paragraphs []string
	doc.Find("p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if len(text) < 40 {
			return true
		}
		paragraphs = append(paragraphs, text)
		return len(paragraphs) < maxParagraphs
	})

	return paragraphs, nil
}
