// internal/pages/service.go
//
// Pages Service.
//
/*
Context
--------
Owns the `pages` collection:

  • slugs match `^[a-z0-9]+(-[a-z0-9]+)*$` and are unique,
  • status moves freely between draft, published, and archived,
  • `published_at` is stamped on the first move into published and never
    reset afterwards,
  • `view_count` only changes through IncrementViewCount, which runs under
    a per-page lock so concurrent views are not lost,
  • deleting a page removes its content blocks when a BlockRemover is
    configured (WithBlockCascade).
*/
package pages

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/k9cms/internal/cmserr"
	"github.com/yanizio/k9cms/internal/docstore"
	"github.com/yanizio/k9cms/internal/keylock"
	"github.com/yanizio/k9cms/internal/metrics"
	"github.com/yanizio/k9cms/internal/validation"
)

const invalidSlugMsg = "Invalid slug format. Use lowercase letters, numbers, and hyphens only"

// BlockRemover deletes every content block of a page.
type BlockRemover interface {
	DeletePageBlocks(ctx context.Context, pageID string) (int, error)
}

// Service manages pages.
type Service struct {
	store  docstore.Store
	blocks BlockRemover
	locks  *keylock.Locker
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithBlockCascade makes Delete remove the page's blocks through r.
func WithBlockCascade(r BlockRemover) Option { return func(s *Service) { s.blocks = r } }

// WithLocker shares a keylock.Locker with other services.
func WithLocker(l *keylock.Locker) Option { return func(s *Service) { s.locks = l } }

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService returns a Service over store.
func NewService(store docstore.Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.locks == nil {
		s.locks = keylock.New(5 * time.Second)
	}
	return s
}

/*──────────────────────────── reads ────────────────────────────────────────*/

// List returns pages newest-updated first, narrowed by opts.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Page, error) {
	q := docstore.Query{OrderBy: docstore.FieldUpdatedAt, Direction: docstore.Desc}
	switch {
	case opts.Status != "":
		q.Filters = append(q.Filters, docstore.Eq("status", string(opts.Status)))
	case opts.Published != nil && *opts.Published:
		q.Filters = append(q.Filters, docstore.Eq("status", string(StatusPublished)))
	case opts.Published != nil:
		q.Filters = append(q.Filters, docstore.Eq("status", string(StatusDraft)))
	}
	if opts.Reusable != nil {
		q.Filters = append(q.Filters, docstore.Eq("is_reusable", *opts.Reusable))
	}
	if opts.Template != "" {
		q.Filters = append(q.Filters, docstore.Eq("template", string(opts.Template)))
	}

	docs, err := s.store.List(ctx, Collection, q)
	if err != nil {
		return nil, cmserr.Internal("list pages", err)
	}

	needle := strings.ToLower(strings.TrimSpace(opts.Search))
	out := make([]Page, 0, len(docs))
	for _, d := range docs {
		p, err := decode(d)
		if err != nil {
			return nil, err
		}
		if needle != "" && !p.matches(needle) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (p *Page) matches(needle string) bool {
	if strings.Contains(strings.ToLower(p.Title), needle) ||
		strings.Contains(strings.ToLower(p.Slug), needle) {
		return true
	}
	return p.MetaDescription != nil && strings.Contains(strings.ToLower(*p.MetaDescription), needle)
}

// Get returns page id.
func (s *Service) Get(ctx context.Context, id string) (*Page, error) {
	d, err := s.store.Get(ctx, Collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, cmserr.NotFound("Page")
	}
	if err != nil {
		return nil, cmserr.Internal("get page", err)
	}
	return decode(d)
}

// GetBySlug returns the page with slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Page, error) {
	docs, err := s.store.List(ctx, Collection, docstore.Query{
		Filters: []docstore.Filter{docstore.Eq("slug", slug)},
		Limit:   1,
	})
	if err != nil {
		return nil, cmserr.Internal("get page by slug", err)
	}
	if len(docs) == 0 {
		return nil, cmserr.NotFound("Page")
	}
	return decode(docs[0])
}

/*──────────────────────────── writes ───────────────────────────────────────*/

// Create validates in and stores a new page, returning its id.
func (s *Service) Create(ctx context.Context, in NewPage) (string, error) {
	if err := validation.Struct(&in); err != nil {
		return "", err
	}
	in.normalize()
	if err := s.checkSlug(ctx, in.Slug); err != nil {
		return "", err
	}

	status := in.Status
	if status == "" {
		status = StatusDraft
	}
	tmpl := in.Template
	if tmpl == "" {
		tmpl = TemplateStandard
	}
	var publishedAt *time.Time
	if status == StatusPublished {
		now := s.now().UTC()
		publishedAt = &now
	}
	reusable := false
	if in.IsReusable != nil {
		reusable = *in.IsReusable
	}

	id, err := s.store.Create(ctx, Collection, docstore.Document{
		"slug":             in.Slug,
		"title":            in.Title,
		"meta_description": in.MetaDescription,
		"meta_keywords":    in.MetaKeywords,
		"og_image":         in.OGImage,
		"status":           string(status),
		"template":         string(tmpl),
		"is_reusable":      reusable,
		"category":         in.Category,
		"view_count":       0,
		"published_at":     publishedAt,
	})
	if err != nil {
		return "", cmserr.Internal("create page", err)
	}

	metrics.Mutation("page", "create")
	zap.L().Info("page created", zap.String("id", id), zap.String("slug", in.Slug), zap.String("status", string(status)))
	return id, nil
}

// Update applies p to page id.
func (s *Service) Update(ctx context.Context, id string, p Patch) error {
	if err := validation.Struct(&p); err != nil {
		return err
	}
	p.normalize()
	cur, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return cmserr.Validation("Missing required fields: title")
	}
	if p.Slug != nil && *p.Slug != cur.Slug {
		if err := s.checkSlug(ctx, *p.Slug); err != nil {
			return err
		}
	}

	doc, err := docstore.Encode(p)
	if err != nil {
		return cmserr.Internal("encode page patch", err)
	}
	if p.Status != nil && *p.Status == StatusPublished && cur.PublishedAt == nil {
		doc[docstore.FieldPublishedAt] = s.now().UTC()
	}

	if err := s.store.Update(ctx, Collection, id, doc); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return cmserr.NotFound("Page")
		}
		return cmserr.Internal("update page", err)
	}

	metrics.Mutation("page", "update")
	zap.L().Info("page updated", zap.String("id", id))
	return nil
}

// Delete removes page id, and its blocks when cascading is enabled.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	removed := 0
	if s.blocks != nil {
		n, err := s.blocks.DeletePageBlocks(ctx, id)
		if err != nil {
			return err
		}
		removed = n
	}
	if err := s.store.Delete(ctx, Collection, id); err != nil {
		return cmserr.Internal("delete page", err)
	}

	metrics.Mutation("page", "delete")
	zap.L().Info("page deleted", zap.String("id", id), zap.Int("blocks_removed", removed))
	return nil
}

// Duplicate copies page id under newSlug, or under the first free
// "<slug>-copy", "<slug>-copy-1", … when newSlug is empty.  The copy is
// a fresh draft.  Blocks are not copied.
func (s *Service) Duplicate(ctx context.Context, id, newSlug string) (string, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	slug := newSlug
	if slug == "" {
		for n := 0; ; n++ {
			if err := ctx.Err(); err != nil {
				return "", cmserr.Internal("duplicate page", err)
			}
			candidate := CopySlug(src.Slug, n)
			taken, err := s.store.Exists(ctx, Collection, "slug", candidate)
			if err != nil {
				return "", cmserr.Internal("duplicate page", err)
			}
			if !taken {
				slug = candidate
				break
			}
		}
	}

	reusable := src.IsReusable
	newID, err := s.Create(ctx, NewPage{
		Slug:            slug,
		Title:           src.Title + " (Copy)",
		MetaDescription: src.MetaDescription,
		MetaKeywords:    src.MetaKeywords,
		OGImage:         src.OGImage,
		Status:          StatusDraft,
		Template:        src.Template,
		IsReusable:      &reusable,
		Category:        src.Category,
	})
	if err != nil {
		return "", err
	}
	zap.L().Info("page duplicated", zap.String("from", id), zap.String("to", newID), zap.String("slug", slug))
	return newID, nil
}

// IncrementViewCount adds one to the page's view_count.
func (s *Service) IncrementViewCount(ctx context.Context, id string) error {
	err := s.locks.Do(ctx, "page:"+id, func() error {
		cur, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.store.Update(ctx, Collection, id, docstore.Document{"view_count": cur.ViewCount + 1}); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return cmserr.NotFound("Page")
			}
			return cmserr.Internal("increment view count", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.PageViewsTotal.Inc()
	return nil
}

/*──────────────────────────── helpers ──────────────────────────────────────*/

func (s *Service) checkSlug(ctx context.Context, slug string) error {
	if !IsValidSlug(slug) {
		return cmserr.Validation(invalidSlugMsg)
	}
	taken, err := s.store.Exists(ctx, Collection, "slug", slug)
	if err != nil {
		return cmserr.Internal("check slug", err)
	}
	if taken {
		return cmserr.Conflict("Page with this slug already exists")
	}
	return nil
}

func decode(d docstore.Document) (*Page, error) {
	var p Page
	if err := d.Decode(&p); err != nil {
		return nil, cmserr.Internal("decode page", err)
	}
	return &p, nil
}
