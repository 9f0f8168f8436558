package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"pubg-rank-bot/internal/config"
	"pubg-rank-bot/internal/constants"
	"pubg-rank-bot/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

// DakGGClient drives the profile refresh flow of dak.gg: load the profile, post a
// renew request per region with the page's csrf token, then load the profile again.
type DakGGClient struct {
	baseURL       string
	client        *fasthttp.Client
	maxRetries    int
	retryInterval time.Duration
	logger        zerolog.Logger
}

func NewDakGGClient(cfg *config.Config, logger zerolog.Logger) *DakGGClient {
	client := &fasthttp.Client{
		MaxConnsPerHost:     16,
		ReadTimeout:         constants.ExternalAPITimeout,
		WriteTimeout:        constants.ExternalAPITimeout,
		MaxIdleConnDuration: 1 * time.Minute,
	}
	return newDakGGClient(cfg.DakGGBaseURL, client, cfg.FetchRetries, constants.FetchRetryInterval, logger)
}

func newDakGGClient(baseURL string, client *fasthttp.Client, maxRetries int, retryInterval time.Duration, logger zerolog.Logger) *DakGGClient {
	return &DakGGClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        client,
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
		logger:        logger,
	}
}

func (c *DakGGClient) ProfileURL(account string) string {
	return fmt.Sprintf("%s/profile/%s", c.baseURL, url.PathEscape(account))
}

// Fetch refreshes the given regions of the profile and returns the reloaded page.
// With no regions, the region active on the profile page is refreshed.
func (c *DakGGClient) Fetch(ctx context.Context, account string, regions []string) ([]byte, error) {
	profileURL := c.ProfileURL(account)
	jar := make(map[string]string)

	page, err := c.do(ctx, fasthttp.MethodGet, profileURL, nil, nil, jar)
	if err != nil {
		c.logger.Error().Err(err).Str("account", account).Msg("failed to load profile")
		return nil, err
	}

	token, activeRegion, err := inspectProfile(page)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	if token == "" {
		c.logger.Warn().Str("account", account).Msg("csrf token not found")
		return nil, fmt.Errorf("%w: %w", domain.ErrFetchFailed, domain.ErrTokenMissing)
	}

	if len(regions) == 0 {
		if activeRegion == "" {
			return nil, fmt.Errorf("%w: active region not found", domain.ErrFetchFailed)
		}
		regions = []string{NormalizeRegion(activeRegion)}
	}

	headers := map[string]string{
		"X-CSRF-TOKEN":     token,
		"X-Requested-With": "XMLHttpRequest",
	}
	for _, region := range regions {
		region = strings.ToLower(strings.TrimSpace(region))
		c.logger.Debug().Str("account", account).Str("region", region).Msg("renewing profile region")

		form := fasthttp.AcquireArgs()
		form.Set("region", region)
		_, err := c.do(ctx, fasthttp.MethodPost, profileURL+"/renew", headers, form, jar)
		fasthttp.ReleaseArgs(form)
		var se *statusError
		if errors.As(err, &se) {
			// renew status is advisory, the reload below is what counts
			c.logger.Warn().Int("status", se.code).Str("account", account).Str("region", region).Msg("renew rejected, continuing")
			continue
		}
		if err != nil {
			c.logger.Error().Err(err).Str("account", account).Str("region", region).Msg("failed to renew profile")
			return nil, err
		}
	}

	page, err = c.do(ctx, fasthttp.MethodGet, profileURL, nil, nil, jar)
	if err != nil {
		c.logger.Error().Err(err).Str("account", account).Msg("failed to reload profile")
		return nil, err
	}

	c.logger.Debug().Str("account", account).Strs("regions", regions).Int("bytes", len(page)).Msg("profile fetched")
	return page, nil
}

// NormalizeRegion maps region codes read from the page to the codes accepted by renew.
func NormalizeRegion(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "rjp" {
		return "krjp"
	}
	return code
}

func regionFromHref(href string) string {
	if len(href) > 3 {
		href = href[len(href)-3:]
	}
	return strings.Trim(href, "/")
}

func inspectProfile(page []byte) (token, region string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", "", err
	}
	token = strings.TrimSpace(doc.Find(`meta[name="csrf-token"]`).First().AttrOr("content", ""))
	if href, ok := doc.Find("li.active a").First().Attr("href"); ok {
		region = regionFromHref(href)
	}
	return token, region, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API error: %d", e.code)
}

func (c *DakGGClient) do(ctx context.Context, method, uri string, headers map[string]string, form *fasthttp.Args, jar map[string]string) ([]byte, error) {
	backoff := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewConstant(c.retryInterval))

	var body []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		body, err = c.roundTrip(ctx, method, uri, headers, form, jar)
		if err == nil {
			return nil
		}
		var se *statusError
		if errors.As(err, &se) && se.code < fasthttp.StatusInternalServerError {
			return err
		}
		c.logger.Debug().Err(err).Str("method", method).Str("url", uri).Msg("request failed")
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", domain.ErrFetchFailed, method, uri, err)
	}
	return body, nil
}

func (c *DakGGClient) roundTrip(ctx context.Context, method, uri string, headers map[string]string, form *fasthttp.Args, jar map[string]string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	req.Header.SetUserAgent(constants.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for k, v := range jar {
		req.Header.SetCookie(k, v)
	}
	if form != nil {
		req.Header.SetContentType("application/x-www-form-urlencoded")
		req.SetBody(form.QueryString())
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.ExternalAPITimeout)
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, err
	}

	resp.Header.VisitAllCookie(func(_, value []byte) {
		cookie := fasthttp.AcquireCookie()
		defer fasthttp.ReleaseCookie(cookie)
		if err := cookie.ParseBytes(value); err == nil {
			jar[string(cookie.Key())] = string(cookie.Value())
		}
	})

	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return nil, &statusError{code: code}
	}

	return append([]byte(nil), resp.Body()...), nil
}
