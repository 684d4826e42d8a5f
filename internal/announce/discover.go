package announce

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/hitoshi/aula/internal/model"
)

// feedCandidate はHTMLから検出されたフィード候補。
type feedCandidate struct {
	URL    string
	IsAtom bool
}

// DiscoverFeedURL はコースのホームページURLからお知らせフィードURLを検出する。
// URL自体がRSS/Atomフィードの場合はそのまま返す。
// HTMLの場合はheadタグのrel="alternate"リンクから検出し、
// 同一ホスト > Atom > 先頭 の優先順位で選択する。
func (s *Service) DiscoverFeedURL(ctx context.Context, pageURL string) (string, error) {
	if pageURL == "" {
		return "", model.NewInvalidAnnouncementsURLError("URL vacía")
	}

	if err := s.ssrfGuard.ValidateURL(pageURL); err != nil {
		return "", model.NewInvalidAnnouncementsURLError(err.Error())
	}

	client := s.ssrfGuard.NewSafeClient(s.timeout, s.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", model.NewInvalidAnnouncementsURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Aula/1.0 Announcements Reader")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")

	resp, err := client.Do(req)
	if err != nil {
		return "", model.NewUpstreamFaultError("Error al detectar el canal de anuncios")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return "", model.NewUpstreamFaultError("Error al detectar el canal de anuncios")
	}

	contentType := resp.Header.Get("Content-Type")
	if isDirectFeed(contentType, body) {
		return pageURL, nil
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.Contains(strings.ToLower(mediaType), "html") {
		return "", model.NewInvalidAnnouncementsURLError("la página no contiene un canal RSS/Atom")
	}

	candidates := parseFeedLinks(body, pageURL)
	if len(candidates) == 0 {
		return "", model.NewInvalidAnnouncementsURLError("la página no contiene un canal RSS/Atom")
	}

	return selectBestFeed(candidates, pageURL), nil
}

// isDirectFeed はContent-Typeとボディの先頭からRSS/Atomフィードかを判定する。
func isDirectFeed(contentType string, body []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	switch mediaType {
	case "application/rss+xml", "application/atom+xml":
		return true
	case "text/xml", "application/xml":
	default:
		return false
	}

	if len(body) == 0 {
		return false
	}

	checkSize := 4096
	if len(body) < checkSize {
		checkSize = len(body)
	}
	prefix := strings.ToLower(string(body[:checkSize]))

	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// parseFeedLinks はHTMLのheadタグからrel="alternate"のフィードリンクを集める。
// 相対URLはbaseURLを基準に解決する。
func parseFeedLinks(htmlBody []byte, baseURL string) []feedCandidate {
	var candidates []feedCandidate

	baseU, err := url.Parse(baseURL)
	if err != nil {
		return candidates
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return candidates

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}
			if tagName == "body" {
				return candidates
			}
			if !inHead || tagName != "link" || !hasAttr {
				continue
			}

			var rel, linkType, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}

			if rel != "alternate" || href == "" {
				continue
			}

			var isAtom bool
			switch linkType {
			case "application/atom+xml":
				isAtom = true
			case "application/rss+xml":
				isAtom = false
			default:
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			candidates = append(candidates, feedCandidate{
				URL:    baseU.ResolveReference(ref).String(),
				IsAtom: isAtom,
			})

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return candidates
			}
		}
	}
}

// selectBestFeed は候補から最適なフィードを選ぶ。
// 優先順位: 同一ホスト > Atom > 先頭。
func selectBestFeed(candidates []feedCandidate, pageURL string) string {
	pageHost := hostOf(pageURL)

	bestIdx := 0
	bestScore := -1
	for i, c := range candidates {
		score := 0
		if hostOf(c.URL) == pageHost {
			score += 100
		}
		if c.IsAtom {
			score += 10
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return candidates[bestIdx].URL
}

// hostOf はURLから小文字のホスト名を取り出す。
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
