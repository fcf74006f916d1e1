package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/bugmaschine/vembed/internal/providers"
	"github.com/bugmaschine/vembed/pkg/logger"
)

// Stage names the step that produced a Result.
type Stage string

const (
	StageLocal   Stage = "local"
	StageLanded  Stage = "landed"
	StageIframe  Stage = "iframe"
	StageSource  Stage = "source"
	StageRefresh Stage = "refresh"
	StageMedia   Stage = "media"
)

type Result struct {
	EmbedURL    string        `json:"embedUrl"`
	Provider    providers.Tag `json:"provider"`
	ResolvedURL string        `json:"resolvedUrl"`
	Stage       Stage         `json:"stage,omitempty"`
}

// Resolver turns redirector and page URLs into embeddable player URLs.
type Resolver struct {
	fetcher Fetcher
}

func New(f Fetcher) *Resolver {
	return &Resolver{fetcher: f}
}

// Resolve runs the local rewrite, then fetches raw and inspects the landed URL and
// page. It returns ErrInvalidURL without touching the network for malformed input.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*Result, error) {
	input := providers.Normalize(raw)
	if !providers.IsValidURL(input) {
		return nil, ErrInvalidURL
	}
	log := logger.FromContext(ctx).With("url", input)

	if embed, ok := providers.ToEmbedURL(input); ok {
		log.Debug("resolved locally", "embed", embed)
		return &Result{
			EmbedURL:    embed,
			Provider:    providers.Classify(embed),
			ResolvedURL: input,
			Stage:       StageLocal,
		}, nil
	}

	page, fetchErr := r.fetcher.Fetch(ctx, input)
	if page == nil || page.URL == nil {
		if fetchErr == nil {
			fetchErr = errors.New("fetcher returned no page")
		}
		return nil, &Error{Stage: "fetch", URL: input, Err: fetchErr}
	}
	landed := page.URL.String()
	log = log.With("landed", landed)

	if embed, ok := providers.ToEmbedURL(landed); ok {
		log.Debug("resolved from landed url", "embed", embed)
		return &Result{
			EmbedURL:    embed,
			Provider:    providers.Classify(embed),
			ResolvedURL: landed,
			Stage:       StageLanded,
		}, nil
	}

	// error pages (403 from anti-bot fronts) still get scanned; the status only
	// matters when they hold no player
	if page.IsHTML() && len(page.Body) > 0 {
		res, err := r.scanHTML(page)
		if err != nil && fetchErr == nil {
			return nil, &Error{Stage: "scan", URL: input, ResolvedURL: landed, Err: err}
		}
		if res != nil {
			log.Debug("resolved from page", "embed", res.EmbedURL, "stage", res.Stage, "status", page.StatusCode)
			return res, nil
		}
	}

	if fetchErr != nil {
		return nil, &Error{Stage: "fetch", URL: input, ResolvedURL: landed, Err: fetchErr}
	}

	if page.IsPlaylist() && isValidPlaylist(page.Body) {
		log.Debug("landed on hls playlist")
		return &Result{
			EmbedURL:    landed,
			Provider:    providers.Unknown,
			ResolvedURL: landed,
			Stage:       StageMedia,
		}, nil
	}

	log.Debug("nothing embeddable found", "content_type", page.ContentType, "status", page.StatusCode)
	return nil, &Error{Stage: "scan", URL: input, ResolvedURL: landed, Err: ErrNotEmbeddable}
}

// scanHTML returns nil, nil when the page has no usable reference.
func (r *Resolver) scanHTML(page *Page) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	landed := page.URL.String()

	if c, ok := findPlayer(doc, page.URL); ok {
		if embed, ok := providers.ToEmbedURL(c.URL); ok {
			return &Result{EmbedURL: embed, Provider: providers.Classify(embed), ResolvedURL: landed, Stage: c.Stage}, nil
		}
		return &Result{EmbedURL: c.URL, Provider: providers.Unknown, ResolvedURL: landed, Stage: c.Stage}, nil
	}

	if target, ok := findClientRedirect(doc, page.URL); ok {
		if embed, ok := providers.ToEmbedURL(target); ok {
			return &Result{EmbedURL: embed, Provider: providers.Classify(embed), ResolvedURL: landed, Stage: StageRefresh}, nil
		}
	}
	return nil, nil
}
