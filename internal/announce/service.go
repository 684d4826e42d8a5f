// Package announce はコースのお知らせフィード（RSS/Atom）の取得を提供する。
//
// フィードURLはコースに任意で設定され、取得のたびにSSRF検証を通す。
// 本文の要約は保存せず、返却前にサニタイズする。
package announce

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/aula/internal/authz"
	"github.com/hitoshi/aula/internal/model"
	"github.com/hitoshi/aula/internal/repository"
	"github.com/hitoshi/aula/internal/security"
)

// Announcement はお知らせフィードの1エントリ。
type Announcement struct {
	Title       string
	Link        string
	Summary     string
	Author      string
	PublishedAt *time.Time
}

// Service はお知らせフィードの取得ユースケースを提供する。
type Service struct {
	courseRepo  repository.CourseRepository
	ssrfGuard   security.SSRFGuardService
	sanitizer   security.ContentSanitizerService
	timeout     time.Duration
	maxBodySize int64
}

// NewService はお知らせServiceを生成する。
func NewService(courseRepo repository.CourseRepository, ssrfGuard security.SSRFGuardService, sanitizer security.ContentSanitizerService, timeout time.Duration, maxBodySize int64) *Service {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if maxBodySize == 0 {
		maxBodySize = 5 * 1024 * 1024
	}
	return &Service{
		courseRepo:  courseRepo,
		ssrfGuard:   ssrfGuard,
		sanitizer:   sanitizer,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// ListByCourse はコースのお知らせ一覧を返す。
// フィードURL未設定のコースでは空リストを返す。
// 認証済みプロフィールであれば閲覧できる（コース一覧と同じ規則）。
func (s *Service) ListByCourse(ctx context.Context, actor *model.Profile, courseID string) ([]*Announcement, error) {
	if apiErr := authz.CanListContent(actor); apiErr != nil {
		return nil, apiErr
	}

	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		slog.Error("failed to find course", "error", err, "course_id", courseID)
		return nil, model.NewUpstreamFaultError("Error al cargar los anuncios")
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(courseID)
	}

	if course.AnnouncementsURL == "" {
		return []*Announcement{}, nil
	}

	announcements, err := s.fetch(ctx, course.AnnouncementsURL)
	if err == nil {
		return announcements, nil
	}

	// 登録URLがHTMLページの場合はフィードの自動発見を1回だけ試みる
	discovered, derr := s.DiscoverFeedURL(ctx, course.AnnouncementsURL)
	if derr != nil || discovered == course.AnnouncementsURL {
		return nil, err
	}
	return s.fetch(ctx, discovered)
}

// fetch はフィードを取得・パースしてお知らせに変換する。
func (s *Service) fetch(ctx context.Context, feedURL string) ([]*Announcement, error) {
	// 登録後にDNSが変わる可能性があるため、取得のたびに検証する
	if err := s.ssrfGuard.ValidateURL(feedURL); err != nil {
		slog.Warn("announcements url blocked", "url", feedURL, "error", err)
		return nil, model.NewInvalidAnnouncementsURLError(err.Error())
	}

	client := s.ssrfGuard.NewSafeClient(s.timeout, s.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, model.NewInvalidAnnouncementsURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Aula/1.0 Announcements Reader")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		slog.Error("failed to fetch announcements feed", "error", err, "url", feedURL)
		return nil, model.NewUpstreamFaultError("Error al cargar los anuncios")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("announcements feed returned non-200",
			"url", feedURL, "status", resp.StatusCode)
		return nil, model.NewUpstreamFaultError(
			fmt.Sprintf("Error al cargar los anuncios (HTTP %d)", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		slog.Error("failed to read announcements feed", "error", err, "url", feedURL)
		return nil, model.NewUpstreamFaultError("Error al cargar los anuncios")
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		slog.Error("failed to parse announcements feed", "error", err, "url", feedURL)
		return nil, model.NewUpstreamFaultError("Error al cargar los anuncios")
	}

	return s.convert(parsed.Items), nil
}

// convert はgofeedのエントリをお知らせに変換する。要約はサニタイズ済み。
func (s *Service) convert(items []*gofeed.Item) []*Announcement {
	announcements := make([]*Announcement, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		a := &Announcement{
			Title:   item.Title,
			Link:    item.Link,
			Summary: s.sanitizer.Sanitize(item.Description),
		}

		if item.Author != nil {
			a.Author = item.Author.Name
		}
		if a.Author == "" && len(item.Authors) > 0 && item.Authors[0] != nil {
			a.Author = item.Authors[0].Name
		}

		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			a.PublishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			a.PublishedAt = &t
		}

		announcements = append(announcements, a)
	}
	return announcements
}
